package slotfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadSlotConfig(t *testing.T) {
	path := writeConfig(t, `
quality_level: 90
dry_run: false
auto_buy: true
max_leads_per_cycle: 15
allowed_countries:
  - India
  - USA
keywords: [Valve, Pump]
keyword_fuzzy: true
keyword_fuzzy_threshold: 0.9
required_contact_methods: [email, whatsapp]
channels:
  whatsapp: true
  email: false
version: 7
`)
	cfg, ok := ReadSlotConfig(path)
	require.True(t, ok)

	assert.Equal(t, 90, cfg.QualityLevel)
	assert.False(t, cfg.DryRunEnabled())
	assert.True(t, cfg.AutoBuy)
	assert.Equal(t, 15, cfg.MaxLeadsPerCycle)
	assert.Equal(t, StringList{"india", "usa"}, cfg.AllowedCountries)
	assert.Equal(t, StringList{"valve", "pump"}, cfg.Keywords)
	assert.True(t, cfg.KeywordFuzzy)
	assert.Equal(t, 0.9, cfg.FuzzyThreshold())
	assert.Equal(t, StringList{"email", "whatsapp"}, cfg.RequiredContact)
	assert.True(t, cfg.Channels["whatsapp"])
	assert.False(t, cfg.Channels["email"])
	assert.Equal(t, 7, cfg.Version)
}

func TestStringListScalarForm(t *testing.T) {
	path := writeConfig(t, `keywords: "valve, pump; fitting"`)
	cfg, ok := ReadSlotConfig(path)
	require.True(t, ok)
	assert.Equal(t, StringList{"valve", "pump", "fitting"}, cfg.Keywords)
}

func TestDryRunDefaultsTrue(t *testing.T) {
	path := writeConfig(t, `quality_level: 10`)
	cfg, ok := ReadSlotConfig(path)
	require.True(t, ok)
	assert.True(t, cfg.DryRunEnabled(), "observe-only must be the default")
}

func TestFuzzyThresholdClamped(t *testing.T) {
	cfg := SlotConfig{KeywordFuzzyThreshold: 0.2}
	assert.Equal(t, 0.5, cfg.FuzzyThreshold())

	cfg.KeywordFuzzyThreshold = 1.5
	assert.Equal(t, 0.99, cfg.FuzzyThreshold())

	cfg.KeywordFuzzyThreshold = 0
	assert.Equal(t, 0.82, cfg.FuzzyThreshold())
}

func TestReadSlotConfigTolerant(t *testing.T) {
	// Absent file.
	cfg, ok := ReadSlotConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.False(t, ok)
	assert.Zero(t, cfg.QualityLevel)

	// Malformed YAML reads as empty config.
	path := writeConfig(t, "{{not yaml")
	cfg, ok = ReadSlotConfig(path)
	assert.False(t, ok)
	assert.Zero(t, cfg.QualityLevel)
	assert.True(t, cfg.DryRunEnabled())
}
