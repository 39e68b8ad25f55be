package lead

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	timeRx         = regexp.MustCompile(`(?i)\b\d+\s*(min|mins|minute|minutes|hour|hours|hr|hrs|day|days)\s*ago\b`)
	numberRx       = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	memberSinceRx  = regexp.MustCompile(`(?i)member since[^\n]*`)
	memberMonthsRx = regexp.MustCompile(`(?i)member since\s+(\d+)\s*\+?\s*(month|months|year|years)`)
	quantityRx     = regexp.MustCompile(`(?i)\bQuantity\b\s*:\s*([^\n]+)`)
	strengthRx     = regexp.MustCompile(`(?i)\bStrength\b\s*:\s*([^\n]+)`)
	packagingRx    = regexp.MustCompile(`(?i)\bPackaging(?:\s*(?:Size|Type))?\b\s*:\s*([^\n]+)`)
	intentRx       = regexp.MustCompile(`(?i)\bI\s+want\s+this\s+for\b\s*:\s*([^\n]+)`)
	buysRx         = regexp.MustCompile(`(?i)\bBuys\b\s*:\s*([^\n]+)`)
	requirementsRx = regexp.MustCompile(`(?i)\bRequirements\b\s*:\s*(\d+)`)
	callsRx        = regexp.MustCompile(`(?i)\bCalls\b\s*:\s*(\d+)`)
	repliesRx      = regexp.MustCompile(`(?i)\bReplies\b\s*:\s*(\d+)`)
	retailRx       = regexp.MustCompile(`(?i)\bretail\s+lead\b`)
)

// ExtractTimeText pulls the first "N <unit> ago" phrase out of card text.
func ExtractTimeText(text string) string {
	return strings.TrimSpace(timeRx.FindString(text))
}

// ParseAgeHours converts a relative-time phrase to hours. Unrecognized
// input yields nil, which the filter treats as "unknown, do not reject".
func ParseAgeHours(raw string) *float64 {
	if raw == "" {
		return nil
	}
	text := strings.ToLower(raw)
	match := numberRx.FindString(text)
	if match == "" {
		return nil
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	switch {
	case strings.Contains(text, "min"):
		value /= 60.0
	case strings.Contains(text, "hour"), strings.Contains(text, "hr"):
	case strings.Contains(text, "day"):
		value *= 24.0
	default:
		return nil
	}
	return &value
}

// ExtractMemberSinceText pulls the "member since ..." line out of card text.
func ExtractMemberSinceText(text string) string {
	return strings.TrimSpace(memberSinceRx.FindString(text))
}

// ParseMemberMonths converts "member since N month(s)|year(s)" to months.
func ParseMemberMonths(raw string) *int {
	if raw == "" {
		return nil
	}
	match := memberMonthsRx.FindStringSubmatch(raw)
	if match == nil {
		return nil
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	if strings.Contains(strings.ToLower(match[2]), "year") {
		value *= 12
	}
	return &value
}

// StructuredFields are the optional key/value rows a listing card may carry.
type StructuredFields struct {
	QuantityText  string
	StrengthText  string
	PackagingText string
	IntentText    string
	BuysText      string
	Requirements  *int
	Calls         *int
	Replies       *int
	RetailHint    bool
}

// ExtractStructuredFields parses the recognized card rows out of text.
func ExtractStructuredFields(text string) StructuredFields {
	if text == "" {
		return StructuredFields{}
	}
	return StructuredFields{
		QuantityText:  extractGroup(quantityRx, text),
		StrengthText:  extractGroup(strengthRx, text),
		PackagingText: extractGroup(packagingRx, text),
		IntentText:    extractGroup(intentRx, text),
		BuysText:      extractGroup(buysRx, text),
		Requirements:  extractInt(requirementsRx, text),
		Calls:         extractInt(callsRx, text),
		Replies:       extractInt(repliesRx, text),
		RetailHint:    retailRx.MatchString(text),
	}
}

func extractGroup(rx *regexp.Regexp, text string) string {
	match := rx.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

func extractInt(rx *regexp.Regexp, text string) *int {
	match := rx.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	return &value
}
