package lead

import (
	"strings"

	"github.com/engyne/engyne/quality"
	"github.com/engyne/engyne/slotfs"
)

// Reject reason codes, named after the rule that fired. Rules run in this
// order and the first failure wins.
const (
	RejectMaxAge          = "max_age_hours"
	RejectMinMember       = "min_member_months"
	RejectBlockedCountry  = "blocked_country"
	RejectAllowedCountry  = "allowed_country"
	RejectKeywords        = "keywords"
	RejectKeywordsExclude = "keywords_exclude"
	RejectRequiredContact = "required_contact_methods"
)

// Decision is the filter outcome plus the normalized fields computed while
// deciding, so callers never re-parse the card text.
type Decision struct {
	Keep            bool
	RejectReason    string
	TimeText        string
	MemberSinceText string
	AgeHours        *float64
	MemberMonths    *int
	Structured      StructuredFields
	Policy          quality.Policy
}

// NormalizeMethod folds contact method synonyms onto the canonical set.
func NormalizeMethod(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "mobile", "phone", "call":
		return "phone"
	case "email", "mail":
		return "email"
	case "whatsapp", "wa":
		return "whatsapp"
	}
	return v
}

// Evaluate runs the ordered filter rules for one raw candidate. The same
// config and candidate always produce the same decision.
func Evaluate(raw RawLead, cfg slotfs.SlotConfig) Decision {
	d := Decision{
		TimeText:        raw.TimeText,
		MemberSinceText: raw.MemberSinceText,
		Structured:      ExtractStructuredFields(raw.Text),
		Policy:          quality.Mapping(cfg.QualityLevel),
	}
	if d.TimeText == "" {
		d.TimeText = ExtractTimeText(raw.Text)
	}
	if d.MemberSinceText == "" {
		d.MemberSinceText = ExtractMemberSinceText(raw.Text)
	}
	d.AgeHours = ParseAgeHours(d.TimeText)
	d.MemberMonths = ParseMemberMonths(d.MemberSinceText)

	// Unknown age or tenure never rejects; only a parsed value can fail
	// the policy gates.
	if d.AgeHours != nil && *d.AgeHours > float64(d.Policy.MaxAgeHours) {
		return d.reject(RejectMaxAge)
	}
	if d.MemberMonths != nil && *d.MemberMonths < d.Policy.MinMemberMonths {
		return d.reject(RejectMinMember)
	}

	if len(cfg.BlockedCountries) > 0 && CountryMatches(raw.Country, cfg.BlockedCountries) {
		return d.reject(RejectBlockedCountry)
	}
	if len(cfg.AllowedCountries) > 0 && !CountryMatches(raw.Country, cfg.AllowedCountries) {
		return d.reject(RejectAllowedCountry)
	}

	haystack := strings.Join([]string{raw.Title, raw.CategoryText, raw.Text}, "\n")
	if len(cfg.Keywords) > 0 && !KeywordsMatch(haystack, cfg.Keywords, cfg.KeywordFuzzy, cfg.FuzzyThreshold()) {
		return d.reject(RejectKeywords)
	}
	if len(cfg.KeywordsExclude) > 0 && TextContainsAny(haystack, cfg.KeywordsExclude) {
		return d.reject(RejectKeywordsExclude)
	}

	if !contactSatisfied(raw, cfg.RequiredContact) {
		return d.reject(RejectRequiredContact)
	}

	d.Keep = true
	return d
}

func (d Decision) reject(reason string) Decision {
	d.Keep = false
	d.RejectReason = reason
	return d
}

func contactSatisfied(raw RawLead, required []string) bool {
	if len(required) == 0 {
		return true
	}
	available := map[string]bool{}
	for _, method := range raw.Availability {
		available[NormalizeMethod(method)] = true
	}
	if strings.TrimSpace(raw.Email) != "" {
		available["email"] = true
	}
	if strings.TrimSpace(raw.Phone) != "" {
		available["phone"] = true
	}
	for _, method := range required {
		if !available[NormalizeMethod(method)] {
			return false
		}
	}
	return true
}

// BuildRecord assembles the persisted leads.jsonl line for a candidate and
// its filter decision.
func BuildRecord(slotID, runID, observedAt string, raw RawLead, cfg slotfs.SlotConfig, d Decision) Record {
	return Record{
		SlotID:          slotID,
		RunID:           runID,
		LeadID:          raw.LeadID,
		ObservedAt:      observedAt,
		Title:           raw.Title,
		Country:         raw.Country,
		TimeText:        d.TimeText,
		AgeHours:        d.AgeHours,
		MemberMonths:    d.MemberMonths,
		MemberSinceText: d.MemberSinceText,
		CategoryText:    raw.CategoryText,
		Availability:    raw.Availability,
		Email:           raw.Email,
		Phone:           raw.Phone,
		Contact:         raw.Contact,
		QuantityText:    d.Structured.QuantityText,
		StrengthText:    d.Structured.StrengthText,
		PackagingText:   d.Structured.PackagingText,
		IntentText:      d.Structured.IntentText,
		BuysText:        d.Structured.BuysText,
		Requirements:    d.Structured.Requirements,
		Calls:           d.Structured.Calls,
		Replies:         d.Structured.Replies,
		RetailHint:      d.Structured.RetailHint,
		Text:            TruncateText(raw.Text),
		QualityLevel:    cfg.QualityLevel,
		Policy:          d.Policy,
		AutoBuy:         cfg.AutoBuy,
		DryRun:          cfg.DryRunEnabled(),
		RejectReason:    d.RejectReason,
	}
}
