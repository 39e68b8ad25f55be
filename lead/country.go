package lead

import (
	"regexp"
	"strings"
)

var nonAlnumRx = regexp.MustCompile(`[^a-z0-9 ]+`)

// countryAliases maps short operator terms to the longer forms a listing
// card may actually contain.
var countryAliases = map[string][]string{
	"us":  {"usa", "united states", "united states of america"},
	"usa": {"united states", "united states of america"},
	"uk":  {"united kingdom"},
	"aus": {"australia"},
}

// normalizeMatchText lowercases and collapses non-alphanumeric runs to
// single spaces. Shared by country and keyword matching.
func normalizeMatchText(value string) string {
	normalized := nonAlnumRx.ReplaceAllString(strings.ToLower(value), " ")
	return strings.Join(strings.Fields(normalized), " ")
}

// CountryMatches reports whether the card's country value matches any of
// the configured terms. Terms of three characters or fewer only match whole
// tokens, so "us" never fires on "australia".
func CountryMatches(value string, terms []string) bool {
	normalized := normalizeMatchText(value)
	if normalized == "" {
		return false
	}
	tokens := map[string]bool{}
	for _, tok := range strings.Fields(normalized) {
		tokens[tok] = true
	}
	for _, raw := range terms {
		term := normalizeMatchText(raw)
		if term == "" {
			continue
		}
		if len(term) <= 3 {
			if tokens[term] {
				return true
			}
		} else if strings.Contains(normalized, term) {
			return true
		}
		for _, alias := range countryAliases[term] {
			if strings.Contains(normalized, normalizeMatchText(alias)) {
				return true
			}
		}
	}
	return false
}
