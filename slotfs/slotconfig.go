package slotfs

import (
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var listSeparators = regexp.MustCompile(`[,\n;]+`)

// StringList tolerates both YAML sequences and comma/semicolon/newline
// separated scalars, the forms slot config authors actually write. Items are
// trimmed and lowercased.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var raw []string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		*l = normalizeList(raw)
		return nil
	case yaml.ScalarNode:
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		*l = normalizeList(listSeparators.Split(raw, -1))
		return nil
	default:
		*l = nil
		return nil
	}
}

func normalizeList(items []string) StringList {
	var out StringList
	for _, item := range items {
		v := strings.ToLower(strings.TrimSpace(item))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// SlotConfig is the externally authored per-slot configuration. Every field
// is optional; absent or malformed files read as the zero config.
type SlotConfig struct {
	QualityLevel          int        `yaml:"quality_level"`
	DryRun                *bool      `yaml:"dry_run"`  // nil reads as true: observe-only is the safe default
	AutoBuy               bool       `yaml:"auto_buy"`
	MaxLeadsPerCycle      int        `yaml:"max_leads_per_cycle"`
	MaxClicksPerCycle     int        `yaml:"max_clicks_per_cycle"`
	MaxRunMinutes         int        `yaml:"max_run_minutes"`
	AllowedCountries      StringList `yaml:"allowed_countries"`
	BlockedCountries      StringList `yaml:"blocked_countries"`
	Keywords              StringList `yaml:"keywords"`
	KeywordsExclude       StringList `yaml:"keywords_exclude"`
	KeywordFuzzy          bool       `yaml:"keyword_fuzzy"`
	KeywordFuzzyThreshold float64    `yaml:"keyword_fuzzy_threshold"`
	RequiredContact       StringList `yaml:"required_contact_methods"`
	Channels              map[string]bool `yaml:"channels"`
	CooldownSeconds       float64    `yaml:"cooldown_seconds"`
	Version               int        `yaml:"version"`
}

// DryRunEnabled resolves the dry_run flag with its safe default.
func (c *SlotConfig) DryRunEnabled() bool {
	if c.DryRun == nil {
		return true
	}
	return *c.DryRun
}

// FuzzyThreshold clamps keyword_fuzzy_threshold into [0.5, 0.99], with 0.82
// when unset.
func (c *SlotConfig) FuzzyThreshold() float64 {
	t := c.KeywordFuzzyThreshold
	if t == 0 {
		return 0.82
	}
	if t < 0.5 {
		return 0.5
	}
	if t > 0.99 {
		return 0.99
	}
	return t
}

// ReadSlotConfig loads slot_config.yml. A missing or unparseable file reads
// as the zero config with ok=false; the worker continues either way.
func ReadSlotConfig(path string) (SlotConfig, bool) {
	var cfg SlotConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, false
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SlotConfig{}, false
	}
	return cfg, true
}
