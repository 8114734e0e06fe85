// -- pkg/extract/patterns.go --
package extract

import (
	"regexp"
	"strings"
)

// Loose patterns find candidates in arbitrary page text; the strict
// ones back the pattern_match validation flag at merge time.
var (
	emailRe  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9][a-zA-Z0-9.\-]*\.[a-zA-Z]{2,}`)
	phoneRe  = regexp.MustCompile(`\+?\(?[0-9][0-9()\s.\-]{6,18}[0-9]`)
	socialRe = regexp.MustCompile(`(?i)(?:twitter\.com|x\.com|linkedin\.com/(?:in|company)|instagram\.com|facebook\.com)/[A-Za-z0-9_.\-]+`)

	emailStrictRe  = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9][a-zA-Z0-9.\-]*\.[a-zA-Z]{2,}$`)
	phoneStrictRe  = regexp.MustCompile(`^\+?[0-9()\s.\-]{7,20}$`)
	socialStrictRe = regexp.MustCompile(`^(?i)(?:https?://)?(?:www\.)?(?:twitter\.com|x\.com|linkedin\.com/(?:in|company)|instagram\.com|facebook\.com)/[A-Za-z0-9_.\-]+/?$`)

	addressHintRe = regexp.MustCompile(`(?i)\b\d{1,5}\s+\w[\w\s.]*\b(street|st\.?|avenue|ave\.?|road|rd\.?|boulevard|blvd\.?|drive|dr\.?|lane|ln\.?|suite|ste\.?)\b`)

	nonDigitRe = regexp.MustCompile(`[^0-9]`)
)

// classify guesses the Kind of a raw candidate value.
func classify(value string) Kind {
	switch {
	case emailStrictRe.MatchString(value):
		return KindEmail
	case socialRe.MatchString(value):
		return KindSocial
	case looksLikePhone(value):
		return KindPhone
	case addressHintRe.MatchString(value):
		return KindAddress
	}
	return KindGeneral
}

// looksLikePhone checks the loose phone shape plus a sane digit count,
// which filters out bare years and order numbers.
func looksLikePhone(value string) bool {
	if !phoneStrictRe.MatchString(strings.TrimSpace(value)) {
		return false
	}
	digits := len(nonDigitRe.ReplaceAllString(value, ""))
	return digits >= 7 && digits <= 15
}

// matchesStrictPattern reports whether the value satisfies the strict
// format for its kind.
func matchesStrictPattern(c Contact) bool {
	v := strings.TrimSpace(c.Value)
	switch c.Kind {
	case KindEmail:
		return emailStrictRe.MatchString(v)
	case KindPhone:
		return looksLikePhone(v)
	case KindSocial:
		return socialStrictRe.MatchString(v)
	case KindAddress:
		return addressHintRe.MatchString(v)
	}
	return false
}
