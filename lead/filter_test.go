package lead

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engyne/engyne/slotfs"
)

func strictConfig() slotfs.SlotConfig {
	return slotfs.SlotConfig{
		QualityLevel:     90,
		AllowedCountries: slotfs.StringList{"india"},
		Keywords:         slotfs.StringList{"valve"},
	}
}

func freshLead() RawLead {
	return RawLead{
		LeadID:          "L1",
		Title:           "Industrial valve",
		Country:         "India",
		TimeText:        "1 hour ago",
		MemberSinceText: "member since 36 months",
	}
}

func TestEvaluateKeeps(t *testing.T) {
	d := Evaluate(freshLead(), strictConfig())
	assert.True(t, d.Keep)
	assert.Empty(t, d.RejectReason)
	require.NotNil(t, d.AgeHours)
	assert.Equal(t, 1.0, *d.AgeHours)
	require.NotNil(t, d.MemberMonths)
	assert.Equal(t, 36, *d.MemberMonths)
}

func TestEvaluateRejectsStale(t *testing.T) {
	raw := freshLead()
	raw.TimeText = "72 hours ago"
	d := Evaluate(raw, strictConfig())
	assert.False(t, d.Keep)
	assert.Equal(t, RejectMaxAge, d.RejectReason)
}

func TestEvaluateRejectsJuniorSeller(t *testing.T) {
	raw := freshLead()
	raw.MemberSinceText = "member since 3 months"
	d := Evaluate(raw, strictConfig())
	assert.False(t, d.Keep)
	assert.Equal(t, RejectMinMember, d.RejectReason)
}

func TestEvaluateRejectsDisallowedCountry(t *testing.T) {
	raw := freshLead()
	raw.Country = "USA"
	d := Evaluate(raw, strictConfig())
	assert.False(t, d.Keep)
	assert.Equal(t, RejectAllowedCountry, d.RejectReason)
}

func TestEvaluateRejectsBlockedCountry(t *testing.T) {
	cfg := strictConfig()
	cfg.AllowedCountries = nil
	cfg.BlockedCountries = slotfs.StringList{"us"}
	raw := freshLead()
	raw.Country = "United States"
	d := Evaluate(raw, cfg)
	assert.False(t, d.Keep)
	assert.Equal(t, RejectBlockedCountry, d.RejectReason)
}

func TestEvaluateRejectsMissingKeyword(t *testing.T) {
	raw := freshLead()
	raw.Title = "pump"
	d := Evaluate(raw, strictConfig())
	assert.False(t, d.Keep)
	assert.Equal(t, RejectKeywords, d.RejectReason)
}

func TestEvaluateRejectsExcludedKeyword(t *testing.T) {
	cfg := strictConfig()
	cfg.KeywordsExclude = slotfs.StringList{"scrap"}
	raw := freshLead()
	raw.Text = "Industrial valve scrap lot"
	d := Evaluate(raw, cfg)
	assert.False(t, d.Keep)
	assert.Equal(t, RejectKeywordsExclude, d.RejectReason)
}

func TestEvaluateRequiredContact(t *testing.T) {
	cfg := strictConfig()
	cfg.RequiredContact = slotfs.StringList{"email", "phone"}
	raw := freshLead()

	d := Evaluate(raw, cfg)
	assert.Equal(t, RejectRequiredContact, d.RejectReason)

	raw.Email = "buyer@example.com"
	raw.Phone = "+911234567890"
	d = Evaluate(raw, cfg)
	assert.True(t, d.Keep)

	// Availability set satisfies methods too, including synonyms.
	raw = freshLead()
	raw.Availability = []string{"mail", "mobile"}
	d = Evaluate(raw, cfg)
	assert.True(t, d.Keep)
}

func TestEvaluateFirstFailureWins(t *testing.T) {
	raw := freshLead()
	raw.TimeText = "72 hours ago"
	raw.Country = "USA"
	raw.Title = "pump"
	d := Evaluate(raw, strictConfig())
	assert.Equal(t, RejectMaxAge, d.RejectReason)
}

func TestEvaluateUnknownAgeDoesNotReject(t *testing.T) {
	raw := freshLead()
	raw.TimeText = ""
	raw.Text = "Industrial valve enquiry"
	d := Evaluate(raw, strictConfig())
	assert.True(t, d.Keep)
	assert.Nil(t, d.AgeHours)
}

func TestEvaluateEmptyConfigKeepsEverything(t *testing.T) {
	d := Evaluate(RawLead{LeadID: "L9", Text: "anything at all"}, slotfs.SlotConfig{})
	assert.True(t, d.Keep)
}

func TestEvaluateExtractsFromBody(t *testing.T) {
	raw := RawLead{
		LeadID: "L2",
		Title:  "Industrial valve",
		Text:   "posted 2 hours ago\nMember since 3 years\nQuantity: 40 units",
	}
	d := Evaluate(raw, slotfs.SlotConfig{})
	assert.Equal(t, "2 hours ago", d.TimeText)
	require.NotNil(t, d.AgeHours)
	assert.Equal(t, 2.0, *d.AgeHours)
	require.NotNil(t, d.MemberMonths)
	assert.Equal(t, 36, *d.MemberMonths)
	assert.Equal(t, "40 units", d.Structured.QuantityText)
}

func TestNormalizeMethod(t *testing.T) {
	assert.Equal(t, "phone", NormalizeMethod("Mobile"))
	assert.Equal(t, "phone", NormalizeMethod("call"))
	assert.Equal(t, "email", NormalizeMethod("mail"))
	assert.Equal(t, "whatsapp", NormalizeMethod("wa"))
	assert.Equal(t, "telegram", NormalizeMethod("telegram"))
}

func TestSignatureStability(t *testing.T) {
	a := RawLead{Title: "Valve", Country: "India", TimeText: "1 hour ago"}
	b := RawLead{Title: " valve ", Country: "INDIA", TimeText: "1 Hour Ago"}
	c := RawLead{Title: "Pump", Country: "India", TimeText: "1 hour ago"}
	assert.Equal(t, a.Signature(), b.Signature())
	assert.NotEqual(t, a.Signature(), c.Signature())
}

func TestBuildRecord(t *testing.T) {
	raw := freshLead()
	raw.Text = "Industrial valve\nQuantity: 10 units\n" + "member since 36 months"
	cfg := strictConfig()
	cfg.AutoBuy = true
	d := Evaluate(raw, cfg)

	rec := BuildRecord("s1", "run-1", "2026-08-24T10:00:00Z", raw, cfg, d)
	assert.Equal(t, "s1", rec.SlotID)
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, "L1", rec.LeadID)
	assert.Equal(t, 90, rec.QualityLevel)
	assert.Equal(t, 24, rec.Policy.MaxAgeHours)
	assert.True(t, rec.AutoBuy)
	assert.True(t, rec.DryRun, "dry run defaults on")
	assert.Equal(t, "10 units", rec.QuantityText)
	assert.Empty(t, rec.RejectReason)
	assert.False(t, rec.Clicked)
	assert.False(t, rec.Verified)
}
