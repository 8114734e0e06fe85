// -- pkg/extract/types.go --
package extract

import "strings"

// Kind categorizes a piece of reachable-party information.
type Kind string

const (
	KindEmail   Kind = "email"
	KindPhone   Kind = "phone"
	KindAddress Kind = "address"
	KindSocial  Kind = "social"
	KindGeneral Kind = "general"
)

// Source records which extractor produced a contact.
type Source string

const (
	SourceText   Source = "text"
	SourceVision Source = "vision"
	SourceBoth   Source = "both"
)

// Validation carries the cheap consistency checks computed at merge time.
type Validation struct {
	DomainMatch   bool `json:"domainMatch,omitempty"`
	PatternMatch  bool `json:"patternMatch,omitempty"`
	LocationMatch bool `json:"locationMatch,omitempty"`
}

// Contact is one candidate contact extracted from a page. Identity for
// deduplication is the lower-cased value.
type Contact struct {
	Value      string     `json:"value"`
	Kind       Kind       `json:"kind"`
	Confidence float64    `json:"confidence"`
	Source     Source     `json:"source"`
	Context    string     `json:"context,omitempty"`
	Validation Validation `json:"validation"`
}

// Key returns the deduplication identity of the contact.
func (c Contact) Key() string {
	return strings.ToLower(strings.TrimSpace(c.Value))
}
