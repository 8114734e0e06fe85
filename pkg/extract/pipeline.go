// -- pkg/extract/pipeline.go --
package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/prospector-cli/internal/config"
	"github.com/xkilldash9x/prospector-cli/pkg/browser"
	"github.com/xkilldash9x/prospector-cli/pkg/gateway"
)

// Pipeline runs both extractors over the current page state and merges
// their outputs. Extractor failures are absorbed: a failed extractor
// contributes zero contacts and never aborts the caller's run.
type Pipeline struct {
	cfg    config.ExtractionConfig
	logger *zap.Logger
	text   *TextExtractor
	vision *VisionExtractor
}

// NewPipeline creates a Pipeline. The gateway is shared with the
// decision loop, so vision passes obey the same request pacing.
func NewPipeline(cfg config.ExtractionConfig, logger *zap.Logger, gw gateway.Decider) *Pipeline {
	logger = logger.Named("extract")
	return &Pipeline{
		cfg:    cfg,
		logger: logger,
		text:   NewTextExtractor(logger),
		vision: NewVisionExtractor(gw, logger),
	}
}

// ContactCap reports the configured ceiling on merged contacts so
// callers accumulating across scans can apply the same bound.
func (p *Pipeline) ContactCap() int { return p.cfg.MaxContacts }

// Scan harvests contacts from the page currently loaded in the port:
// DOM markup feeds the text extractor, the screenshot (when present)
// feeds the vision extractor, and the merge stage reconciles the two.
func (p *Pipeline) Scan(ctx context.Context, port browser.ControlPort, screenshot []byte, target string) []Contact {
	var textContacts []Contact
	pageHTML, err := port.Evaluate(ctx, "document.documentElement.outerHTML")
	if err != nil {
		p.logger.Warn("Could not read page markup, skipping text extraction", zap.Error(err))
	} else {
		textContacts = p.text.Extract(pageHTML)
	}

	var visionContacts []Contact
	if len(screenshot) > 0 {
		result, err := p.vision.Extract(ctx, screenshot, target)
		if err != nil {
			p.logger.Warn("Vision extraction failed, continuing with text results", zap.Error(err))
		} else {
			visionContacts = result.Contacts
			if result.PageType != "" {
				p.logger.Debug("Vision pass classified page",
					zap.String("page_type", result.PageType),
					zap.Int("insights", len(result.Insights)))
			}
		}
	}

	merged := p.Merge(textContacts, visionContacts, target)
	p.logger.Debug("Extraction pass complete",
		zap.Int("text_candidates", len(textContacts)),
		zap.Int("vision_candidates", len(visionContacts)),
		zap.Int("merged", len(merged)))
	return merged
}

// Merge reconciles two extractor outputs using the pipeline's
// configured scoring knobs.
func (p *Pipeline) Merge(text, vision []Contact, target string) []Contact {
	return NewMerger(MergeOptions{
		VisionWeight:  p.cfg.VisionWeight,
		BothBoost:     p.cfg.BothBoost,
		MinConfidence: p.cfg.MinConfidence,
		MaxContacts:   p.cfg.MaxContacts,
		Target:        target,
		Location:      p.cfg.Location,
	}).Merge(text, vision)
}
