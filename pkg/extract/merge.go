// -- pkg/extract/merge.go --
package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Merger combines the two extractors' outputs into one deduplicated,
// validated, scored contact set. Merging is deterministic and
// idempotent: the same inputs always produce the same values in the
// same order.
type Merger struct {
	visionWeight  float64
	bothBoost     float64
	minConfidence float64
	maxContacts   int

	targetTokens []string
	location     string
}

// MergeOptions carries the tunable scoring knobs and the validation
// context for one merge.
type MergeOptions struct {
	VisionWeight  float64
	BothBoost     float64
	MinConfidence float64
	MaxContacts   int
	// Target is the search subject; its tokens drive domain_match.
	Target string
	// Location, when set, drives location_match.
	Location string
}

// NewMerger creates a Merger from the given options.
func NewMerger(opts MergeOptions) *Merger {
	return &Merger{
		visionWeight:  opts.VisionWeight,
		bothBoost:     opts.BothBoost,
		minConfidence: opts.MinConfidence,
		maxContacts:   opts.MaxContacts,
		targetTokens:  normalizeTokens(opts.Target),
		location:      strings.ToLower(strings.TrimSpace(opts.Location)),
	}
}

type mergeEntry struct {
	contact    Contact
	fromText   bool
	fromVision bool
	textConf   float64
	visionConf float64
}

// Merge deduplicates by lower-cased value, recomputes confidence per
// the source mix, attaches validation flags, filters by the confidence
// threshold, and returns the survivors sorted by confidence.
func (m *Merger) Merge(text, vision []Contact) []Contact {
	index := make(map[string]*mergeEntry)
	var order []string

	absorb := func(c Contact, fromVision bool) {
		key := c.Key()
		if key == "" {
			return
		}
		entry, ok := index[key]
		if !ok {
			// First occurrence wins for descriptive fields.
			entry = &mergeEntry{contact: c}
			index[key] = entry
			order = append(order, key)
		}
		if fromVision {
			entry.fromVision = true
			if c.Confidence > entry.visionConf {
				entry.visionConf = c.Confidence
			}
		} else {
			entry.fromText = true
			if c.Confidence > entry.textConf {
				entry.textConf = c.Confidence
			}
		}
	}

	for _, c := range text {
		absorb(c, false)
	}
	for _, c := range vision {
		absorb(c, true)
	}

	var merged []Contact
	for _, key := range order {
		entry := index[key]
		c := entry.contact

		var conf float64
		switch {
		case entry.fromText && entry.fromVision:
			conf = maxFloat(entry.textConf, entry.visionConf*m.visionWeight) * m.bothBoost
			c.Source = SourceBoth
		case entry.fromVision:
			conf = entry.visionConf * m.visionWeight
			c.Source = SourceVision
		default:
			conf = entry.textConf
			c.Source = SourceText
		}
		if conf > 1.0 {
			conf = 1.0
		}
		c.Confidence = conf
		c.Validation = m.validate(c)

		if c.Confidence < m.minConfidence {
			continue
		}
		merged = append(merged, c)
	}

	// Confidence descending; ties break on the dedup key so the order
	// is stable across runs.
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Confidence != merged[j].Confidence {
			return merged[i].Confidence > merged[j].Confidence
		}
		return merged[i].Key() < merged[j].Key()
	})

	if m.maxContacts > 0 && len(merged) > m.maxContacts {
		merged = merged[:m.maxContacts]
	}
	return merged
}

// validate computes the consistency flags for a merged contact.
func (m *Merger) validate(c Contact) Validation {
	return Validation{
		DomainMatch:   m.domainMatches(c),
		PatternMatch:  matchesStrictPattern(c),
		LocationMatch: m.locationMatches(c),
	}
}

// domainMatches is true when the contact's domain (or whole value)
// shares a token with the normalized search target.
func (m *Merger) domainMatches(c Contact) bool {
	if len(m.targetTokens) == 0 {
		return false
	}
	haystack := strings.ToLower(c.Value)
	if c.Kind == KindEmail {
		if at := strings.LastIndex(haystack, "@"); at >= 0 {
			haystack = haystack[at+1:]
		}
	}
	for _, token := range m.targetTokens {
		if strings.Contains(haystack, token) {
			return true
		}
	}
	return false
}

func (m *Merger) locationMatches(c Contact) bool {
	if m.location == "" {
		return false
	}
	return strings.Contains(strings.ToLower(c.Value), m.location) ||
		strings.Contains(strings.ToLower(c.Context), m.location)
}

var tokenSplitRe = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeTokens lower-cases the target and keeps tokens long enough
// to be meaningful for matching.
func normalizeTokens(target string) []string {
	var tokens []string
	for _, t := range tokenSplitRe.Split(strings.ToLower(target), -1) {
		if len(t) >= 3 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
