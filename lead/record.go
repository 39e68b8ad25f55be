// Package lead defines the normalized lead record, the text parsers that
// extract structured fields from scraped card text, and the ordered filter
// that turns a raw candidate into a keep/reject decision.
package lead

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/engyne/engyne/quality"
)

// maxTextBytes bounds the raw text carried on a persisted record.
const maxTextBytes = 2048

// RawLead is a scraped candidate before filtering. Only LeadID and Text are
// reliably present; everything else depends on what the listing card exposed.
type RawLead struct {
	LeadID          string   `json:"lead_id"`
	Title           string   `json:"title,omitempty"`
	Country         string   `json:"country,omitempty"`
	TimeText        string   `json:"time_text,omitempty"`
	MemberSinceText string   `json:"member_since_text,omitempty"`
	CategoryText    string   `json:"category_text,omitempty"`
	Email           string   `json:"email,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	Contact         string   `json:"contact,omitempty"`
	Availability    []string `json:"availability,omitempty"`
	Text            string   `json:"text,omitempty"`
}

// Signature is a content fingerprint used alongside LeadID for per-run
// dedup, so re-rendered cards with fresh synthetic ids are still skipped.
func (r RawLead) Signature() string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(r.Title))))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(r.Country))))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(r.TimeText))))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Record is one appended line of leads.jsonl.
type Record struct {
	SlotID             string         `json:"slot_id"`
	RunID              string         `json:"run_id"`
	LeadID             string         `json:"lead_id"`
	ObservedAt         string         `json:"observed_at"`
	Title              string         `json:"title,omitempty"`
	Country            string         `json:"country,omitempty"`
	TimeText           string         `json:"time_text,omitempty"`
	AgeHours           *float64       `json:"age_hours"`
	MemberMonths       *int           `json:"member_months"`
	MemberSinceText    string         `json:"member_since_text,omitempty"`
	CategoryText       string         `json:"category_text,omitempty"`
	Availability       []string       `json:"availability,omitempty"`
	Email              string         `json:"email,omitempty"`
	Phone              string         `json:"phone,omitempty"`
	Contact            string         `json:"contact,omitempty"`
	QuantityText       string         `json:"quantity_text,omitempty"`
	StrengthText       string         `json:"strength_text,omitempty"`
	PackagingText      string         `json:"packaging_text,omitempty"`
	IntentText         string         `json:"intent_text,omitempty"`
	BuysText           string         `json:"buys_text,omitempty"`
	Requirements       *int           `json:"engagement_requirements,omitempty"`
	Calls              *int           `json:"engagement_calls,omitempty"`
	Replies            *int           `json:"engagement_replies,omitempty"`
	RetailHint         bool           `json:"retail_hint,omitempty"`
	Text               string         `json:"text,omitempty"`
	QualityLevel       int            `json:"quality_level"`
	Policy             quality.Policy `json:"policy"`
	AutoBuy            bool           `json:"auto_buy"`
	DryRun             bool           `json:"dry_run"`
	Clicked            bool           `json:"clicked"`
	Verified           bool           `json:"verified"`
	VerificationSource string         `json:"verification_source,omitempty"`
	RejectReason       string         `json:"reject_reason,omitempty"`
}

// TruncateText bounds text to the persisted limit without splitting it into
// invalid UTF-8 mid-rune.
func TruncateText(text string) string {
	if len(text) <= maxTextBytes {
		return text
	}
	cut := maxTextBytes
	for cut > 0 && (text[cut]&0xC0) == 0x80 {
		cut--
	}
	return text[:cut]
}
