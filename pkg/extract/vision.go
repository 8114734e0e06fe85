// -- pkg/extract/vision.go --
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/prospector-cli/pkg/gateway"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// visionBaseConfidence is assumed when the model reports no usable
// confidence of its own, and for contacts recovered by the regex
// fallback over an unstructured response.
const visionBaseConfidence = 0.70

// jsonBlockRe lifts a JSON object out of a response that wraps it in a
// markdown code fence or surrounding prose.
var jsonBlockRe = regexp.MustCompile("(?s)(?:```json\\s*|)(\\{.*\\})(?:```|)")

// VisionResult is what a single vision pass yields besides contacts.
type VisionResult struct {
	Contacts []Contact
	Insights []string
	PageType string
}

type visionResponse struct {
	Contacts []visionContact `json:"contacts"`
	Insights []string        `json:"insights"`
	PageType string          `json:"pageType"`
}

type visionContact struct {
	Value      string  `json:"value"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

// VisionExtractor asks the model to read contact details off the
// current screenshot and returns them in structured form.
type VisionExtractor struct {
	gw     gateway.Decider
	logger *zap.Logger
}

// NewVisionExtractor creates a VisionExtractor on top of the shared
// gateway; its calls go through the same pacing gate as everything else.
func NewVisionExtractor(gw gateway.Decider, logger *zap.Logger) *VisionExtractor {
	return &VisionExtractor{
		gw:     gw,
		logger: logger.Named("vision_extractor"),
	}
}

// Extract sends the screenshot with the extraction prompt. A response
// that is not valid structured data falls back to pattern-scanning the
// response text itself; a response is never discarded outright.
func (e *VisionExtractor) Extract(ctx context.Context, screenshot []byte, target string) (VisionResult, error) {
	raw, err := e.gw.Decide(ctx, screenshot, extractionPrompt(target))
	if err != nil {
		return VisionResult{}, fmt.Errorf("vision extraction call: %w", err)
	}

	if result, ok := e.parseStructured(raw); ok {
		return result, nil
	}

	e.logger.Debug("Vision response was not structured, scanning response text",
		zap.Int("response_len", len(raw)))
	contacts := scanText(raw, visionBaseConfidence, "model response")
	for i := range contacts {
		contacts[i].Source = SourceVision
	}
	return VisionResult{Contacts: contacts}, nil
}

func (e *VisionExtractor) parseStructured(raw string) (VisionResult, bool) {
	payload := strings.TrimSpace(raw)
	if m := jsonBlockRe.FindStringSubmatch(payload); len(m) > 1 {
		payload = m[1]
	}

	var parsed visionResponse
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return VisionResult{}, false
	}

	result := VisionResult{
		Insights: parsed.Insights,
		PageType: parsed.PageType,
	}
	for _, vc := range parsed.Contacts {
		value := strings.TrimSpace(vc.Value)
		if value == "" {
			continue
		}
		conf := vc.Confidence
		if conf <= 0 || conf > 1 {
			conf = visionBaseConfidence
		}
		kind := kindFromLabel(vc.Type)
		if kind == KindGeneral {
			kind = classify(value)
		}
		result.Contacts = append(result.Contacts, Contact{
			Value:      value,
			Kind:       kind,
			Confidence: conf,
			Source:     SourceVision,
			Context:    snippet(vc.Context),
		})
	}
	return result, true
}

func kindFromLabel(label string) Kind {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "email", "e-mail":
		return KindEmail
	case "phone", "tel", "telephone", "mobile":
		return KindPhone
	case "address", "location":
		return KindAddress
	case "social", "social_media", "handle":
		return KindSocial
	}
	return KindGeneral
}

func extractionPrompt(target string) string {
	return fmt.Sprintf(`You are reading a webpage screenshot while researching "%s".
Extract every piece of contact information visible in the image.
Respond ONLY with a single JSON object of this exact shape:
{"contacts":[{"value":"...","type":"email|phone|address|social|general","confidence":0.0,"context":"where on the page it appears"}],"insights":["..."],"pageType":"..."}
Use an empty contacts array if nothing is visible. Do not invent values.`, target)
}
