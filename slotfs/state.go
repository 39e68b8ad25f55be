package slotfs

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/engyne/engyne/errors"
)

// Phase is the worker lifecycle phase written into every heartbeat.
type Phase string

const (
	PhaseBoot          Phase = "BOOT"
	PhaseInit          Phase = "INIT"
	PhaseParseLeads    Phase = "PARSE_LEADS"
	PhaseLoginRequired Phase = "LOGIN_REQUIRED"
	PhaseCooldown      Phase = "COOLDOWN"
	PhaseStopping      Phase = "STOPPING"
	PhaseError         Phase = "ERROR"
)

// SlotState is the heartbeat document a worker writes to slot_state.json and
// mirrors to status.json. Cycle counters are zero-valued outside PARSE_LEADS
// heartbeats.
type SlotState struct {
	SlotID        string  `json:"slot_id"`
	Phase         Phase   `json:"phase"`
	RunID         string  `json:"run_id,omitempty"`
	Pid           int     `json:"pid,omitempty"`
	HeartbeatTS   string  `json:"heartbeat_ts"`
	ConfigVersion int     `json:"config_version,omitempty"`
	QualityLevel  int     `json:"quality_level,omitempty"`
	AutoBuy       bool    `json:"auto_buy,omitempty"`
	DryRun        bool    `json:"dry_run,omitempty"`
	MaxAgeHours   float64 `json:"max_age_hours,omitempty"`
	MinMemberMo   int     `json:"min_member_months,omitempty"`
	LeadsFound    int     `json:"leads_found,omitempty"`
	LeadsKept     int     `json:"leads_kept,omitempty"`
	ClicksSent    int     `json:"clicks_sent,omitempty"`
	Verified      int     `json:"verified,omitempty"`
	LastError     string  `json:"last_error,omitempty"`
}

// RunMeta records the birth certificate of a worker run; the supervisor
// writes it once at spawn.
type RunMeta struct {
	SlotID    string `json:"slot_id"`
	RunID     string `json:"run_id"`
	StartedAt string `json:"started_at"`
}

// UTCNow formats the current UTC instant the way every artifact timestamps:
// RFC 3339 with sub-second precision.
func UTCNow() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// WriteState atomically replaces slot_state.json and mirrors the same
// document to status.json so external readers get a self-consistent snapshot
// while state is being replaced.
func WriteState(paths SlotPaths, state SlotState) error {
	if err := WriteJSONAtomic(paths.State, state); err != nil {
		return err
	}
	// Status mirror is best-effort: state is the supervisor's source of truth.
	if err := WriteJSONAtomic(paths.Status, state); err != nil {
		return errors.Wrap(err, "mirror status")
	}
	return nil
}

// WritePidFile records the worker pid as decimal text.
func WritePidFile(paths SlotPaths, pid int) error {
	if err := os.MkdirAll(paths.Root, 0o755); err != nil {
		return errors.Wrap(err, "create slot dir")
	}
	return os.WriteFile(paths.Pid, []byte(strconv.Itoa(pid)), 0o644)
}

// ClearPidFile removes the pid file at clean exit. Missing files are fine.
func ClearPidFile(paths SlotPaths) {
	_ = os.Remove(paths.Pid)
}

// ReadPidFile returns the recorded pid, or 0 when absent or malformed.
func ReadPidFile(paths SlotPaths) int {
	data, err := os.ReadFile(paths.Pid)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// WriteRunMeta records slot_id, run_id and the start instant at spawn.
func WriteRunMeta(paths SlotPaths, runID string) error {
	return WriteJSONAtomic(paths.RunMeta, RunMeta{
		SlotID:    paths.SlotID,
		RunID:     runID,
		StartedAt: UTCNow(),
	})
}

// ReadRunMeta returns the recorded run metadata, if present.
func ReadRunMeta(paths SlotPaths) (RunMeta, bool) {
	var meta RunMeta
	if !ReadJSONInto(paths.RunMeta, &meta) {
		return RunMeta{}, false
	}
	return meta, true
}
