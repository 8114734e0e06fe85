// -- pkg/decoder/decoder.go --
package decoder

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Decoder turns free-form model text into a typed Action. Parse is a
// total function: any input, including empty or binary garbage, yields
// a valid Action. The grammar is deliberately strict; near-miss
// phrasing degrades to the scroll fallback rather than being guessed at.
type Decoder struct {
	logger *zap.Logger
}

// NewDecoder creates a Decoder. The logger records fallback events so
// unrecognized model output stays observable.
func NewDecoder(logger *zap.Logger) *Decoder {
	return &Decoder{logger: logger.Named("decoder")}
}

// The protocol keywords are uppercase; lowercase near-misses ("let me
// scroll down") intentionally degrade to the fallback. The DONE prefix,
// the trailing SUBMIT marker, and the scroll direction token are
// case-insensitive.
var (
	doneRe   = regexp.MustCompile(`(?is)\ADONE\b[:\s]*(.*)\z`)
	clickRe  = regexp.MustCompile(`\bCLICK\s+(-?\d+(?:\.\d+)?)[\s,]+(-?\d+(?:\.\d+)?)`)
	typeRe   = regexp.MustCompile(`\bTYPE[ \t]+([^\r\n]+)`)
	submitRe = regexp.MustCompile(`(?i)\s+SUBMIT\s*$`)
	scrollRe = regexp.MustCompile(`\bSCROLL\s+((?i:UP|DOWN))\b`)
)

// Parse applies the action grammar in priority order: DONE, CLICK,
// TYPE, SCROLL, then the scroll-down fallback. First match wins.
// Coordinate validation belongs to the browser adapter; the decoder
// only extracts and rounds the numbers.
func (d *Decoder) Parse(text string) Action {
	trimmed := strings.TrimSpace(text)

	if m := doneRe.FindStringSubmatch(trimmed); m != nil {
		summary := strings.TrimSpace(m[1])
		if summary == "" {
			summary = "Task completed"
		}
		return Action{Kind: KindDone, Summary: summary}
	}

	if m := clickRe.FindStringSubmatch(trimmed); m != nil {
		// ParseFloat cannot fail on these submatches.
		x, _ := strconv.ParseFloat(m[1], 64)
		y, _ := strconv.ParseFloat(m[2], 64)
		return Action{
			Kind: KindClick,
			X:    int(math.Round(x)),
			Y:    int(math.Round(y)),
		}
	}

	if m := typeRe.FindStringSubmatch(trimmed); m != nil {
		content := m[1]
		submit := submitRe.MatchString(content)
		if submit {
			content = submitRe.ReplaceAllString(content, "")
		}
		return Action{
			Kind:   KindType,
			Text:   strings.TrimSpace(content),
			Submit: submit,
		}
	}

	if m := scrollRe.FindStringSubmatch(trimmed); m != nil {
		dir := DirectionDown
		if strings.EqualFold(m[1], "UP") {
			dir = DirectionUp
		}
		return Action{Kind: KindScroll, Direction: dir}
	}

	d.logger.Warn("Unrecognized model output, falling back to scroll",
		zap.String("text", truncate(trimmed, 200)))
	return ScrollDown()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
