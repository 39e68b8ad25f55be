package lead

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// fuzzyRatio is a normalized similarity in [0, 1] derived from edit
// distance. 1 means identical strings.
func fuzzyRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// TextContainsAny reports a plain substring hit for any keyword.
func TextContainsAny(text string, keywords []string) bool {
	haystack := strings.ToLower(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(haystack, k) {
			return true
		}
	}
	return false
}

// KeywordsMatch reports whether any keyword matches the text. Substring
// matches always count; when fuzzy is enabled, keywords of four or more
// characters also match token windows of the same length whose similarity
// ratio meets the threshold.
func KeywordsMatch(text string, keywords []string, fuzzyEnabled bool, threshold float64) bool {
	normalized := normalizeMatchText(text)
	if normalized == "" {
		return false
	}
	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return false
	}
	for _, raw := range keywords {
		keyword := normalizeMatchText(raw)
		if keyword == "" {
			continue
		}
		if strings.Contains(normalized, keyword) {
			return true
		}
		if !fuzzyEnabled || len(keyword) < 4 {
			continue
		}
		keywordTokens := strings.Fields(keyword)
		if len(keywordTokens) == 1 {
			for _, token := range tokens {
				if len(token) < 4 {
					continue
				}
				if fuzzyRatio(token, keyword) >= threshold {
					return true
				}
			}
			continue
		}
		window := len(keywordTokens)
		if window > len(tokens) {
			if fuzzyRatio(normalized, keyword) >= threshold {
				return true
			}
			continue
		}
		for idx := 0; idx+window <= len(tokens); idx++ {
			windowText := strings.Join(tokens[idx:idx+window], " ")
			if fuzzyRatio(windowText, keyword) >= threshold {
				return true
			}
		}
	}
	return false
}
