// -- pkg/extract/text.go --
package extract

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Base confidences for pattern hits. An explicit contact container is
// worth more than generic body text; anchors with a contact scheme are
// the strongest signal the DOM offers.
const (
	bodyTextConfidence       = 0.70
	contactSectionConfidence = 0.80
)

// containerKeywords flag elements that typically hold contact details.
var containerKeywords = []string{"contact", "footer", "about", "impressum"}

// TextExtractor pulls candidate contacts out of page markup: pattern
// scans over text, mailto:/tel: anchors, and social profile links.
type TextExtractor struct {
	logger *zap.Logger
}

// NewTextExtractor creates a TextExtractor.
func NewTextExtractor(logger *zap.Logger) *TextExtractor {
	return &TextExtractor{logger: logger.Named("text_extractor")}
}

// Extract scans the given page HTML. A document that fails to parse
// degrades to a flat pattern scan over the raw markup; extraction never
// fails outright.
func (e *TextExtractor) Extract(pageHTML string) []Contact {
	if strings.TrimSpace(pageHTML) == "" {
		return nil
	}

	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		e.logger.Warn("Page markup did not parse, scanning raw text", zap.Error(err))
		return scanText(pageHTML, bodyTextConfidence, "")
	}

	var contacts []Contact
	walk(doc, false, func(n *html.Node, inContactSection bool) {
		switch n.Type {
		case html.ElementNode:
			if n.Data == "a" {
				contacts = append(contacts, anchorContacts(n)...)
			}
		case html.TextNode:
			conf := bodyTextConfidence
			if inContactSection {
				conf = contactSectionConfidence
			}
			contacts = append(contacts, scanText(n.Data, conf, snippet(n.Data))...)
		}
	})

	e.logger.Debug("Text extraction complete", zap.Int("candidates", len(contacts)))
	return contacts
}

// walk traverses the DOM depth-first, tracking whether the current
// subtree sits inside a contact-flavored container.
func walk(n *html.Node, inContactSection bool, visit func(*html.Node, bool)) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript":
			return
		case "footer", "address":
			inContactSection = true
		default:
			if hasContainerKeyword(n) {
				inContactSection = true
			}
		}
	}
	visit(n, inContactSection)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, inContactSection, visit)
	}
}

func hasContainerKeyword(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key != "id" && attr.Key != "class" {
			continue
		}
		val := strings.ToLower(attr.Val)
		for _, kw := range containerKeywords {
			if strings.Contains(val, kw) {
				return true
			}
		}
	}
	return false
}

// anchorContacts extracts contacts carried by an anchor itself:
// mailto:/tel: schemes and social profile hrefs.
func anchorContacts(n *html.Node) []Contact {
	var href string
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = strings.TrimSpace(attr.Val)
			break
		}
	}
	if href == "" {
		return nil
	}

	label := snippet(innerText(n))
	switch {
	case strings.HasPrefix(strings.ToLower(href), "mailto:"):
		value := strings.SplitN(href[len("mailto:"):], "?", 2)[0]
		if value == "" {
			return nil
		}
		return []Contact{{
			Value:      value,
			Kind:       KindEmail,
			Confidence: contactSectionConfidence,
			Source:     SourceText,
			Context:    label,
		}}
	case strings.HasPrefix(strings.ToLower(href), "tel:"):
		value := strings.TrimSpace(href[len("tel:"):])
		if value == "" {
			return nil
		}
		return []Contact{{
			Value:      value,
			Kind:       KindPhone,
			Confidence: contactSectionConfidence,
			Source:     SourceText,
			Context:    label,
		}}
	case socialRe.MatchString(href):
		return []Contact{{
			Value:      href,
			Kind:       KindSocial,
			Confidence: bodyTextConfidence,
			Source:     SourceText,
			Context:    label,
		}}
	}
	return nil
}

// scanText runs the loose patterns over a block of text.
func scanText(text string, confidence float64, context string) []Contact {
	var contacts []Contact

	for _, m := range emailRe.FindAllString(text, -1) {
		contacts = append(contacts, Contact{
			Value: m, Kind: KindEmail, Confidence: confidence,
			Source: SourceText, Context: context,
		})
	}
	for _, m := range socialRe.FindAllString(text, -1) {
		contacts = append(contacts, Contact{
			Value: m, Kind: KindSocial, Confidence: confidence,
			Source: SourceText, Context: context,
		})
	}
	for _, m := range phoneRe.FindAllString(text, -1) {
		if !looksLikePhone(m) {
			continue
		}
		contacts = append(contacts, Contact{
			Value: strings.TrimSpace(m), Kind: KindPhone, Confidence: confidence,
			Source: SourceText, Context: context,
		})
	}
	for _, m := range addressHintRe.FindAllString(text, -1) {
		contacts = append(contacts, Contact{
			Value: strings.TrimSpace(m), Kind: KindAddress, Confidence: confidence,
			Source: SourceText, Context: context,
		})
	}
	return contacts
}

func innerText(n *html.Node) string {
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return sb.String()
}

// snippet normalizes whitespace and bounds the context stored per contact.
func snippet(s string) string {
	const limit = 120
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}
