package dispatch

import (
	"encoding/json"
	"os"
	"time"

	"github.com/engyne/engyne/slotfs"
)

// Terminal and transient contact statuses. sent/skipped/blocked/failed are
// terminal; held pauses the queue until an operator clears it.
const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
	StatusBlocked = "blocked"
	StatusHeld    = "held"
	StatusFailed  = "failed"
	StatusInvalid = "invalid"
)

// LeadContactState is the persisted per-lead delivery status.
type LeadContactState struct {
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
	Detail    string `json:"detail,omitempty"`
}

// ContactState maps lead_id to its delivery status for one channel.
type ContactState map[string]LeadContactState

// Terminal reports whether the record needs no further work.
func (s LeadContactState) Terminal() bool {
	return s.Status == StatusSent || s.Status == StatusSkipped
}

// Paused reports whether the record holds up the queue.
func (s LeadContactState) Paused() bool {
	return s.Status == StatusBlocked || s.Status == StatusHeld
}

// SlotRateWindow is one slot's 60-second send window.
type SlotRateWindow struct {
	WindowStart float64 `json:"window_start"` // unix seconds
	Sent        int     `json:"sent"`
}

// RateState maps slot_id to its current rate window.
type RateState map[string]SlotRateWindow

const rateWindowSeconds = 60

// CanSend reports whether the slot's window has budget left. Expired
// windows are reset lazily on the next check.
func (r RateState) CanSend(slotID string, ratePerMinute int, now time.Time) bool {
	if ratePerMinute <= 0 {
		return true
	}
	nowSec := float64(now.UnixNano()) / float64(time.Second)
	window, ok := r[slotID]
	if !ok {
		window = SlotRateWindow{WindowStart: nowSec}
	}
	if nowSec-window.WindowStart >= rateWindowSeconds {
		window = SlotRateWindow{WindowStart: nowSec}
	}
	if window.Sent >= ratePerMinute {
		r[slotID] = window
		return false
	}
	return true
}

// MarkSent counts one delivery against the slot's window.
func (r RateState) MarkSent(slotID string, now time.Time) {
	nowSec := float64(now.UnixNano()) / float64(time.Second)
	window, ok := r[slotID]
	if !ok {
		window = SlotRateWindow{WindowStart: nowSec}
	}
	if nowSec-window.WindowStart >= rateWindowSeconds {
		window = SlotRateWindow{WindowStart: nowSec}
	}
	window.Sent++
	r[slotID] = window
}

// loadState reads a JSON side file tolerantly; absent or malformed content
// yields the empty value.
func loadState(path string, into interface{}) {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return
	}
	_ = json.Unmarshal(data, into)
}

func loadContactState(path string) ContactState {
	state := ContactState{}
	loadState(path, &state)
	return state
}

func loadRateState(path string) RateState {
	state := RateState{}
	loadState(path, &state)
	return state
}

func saveState(path string, state interface{}) error {
	return slotfs.WriteJSONAtomic(path, state)
}
