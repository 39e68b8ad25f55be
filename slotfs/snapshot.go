package slotfs

import (
	"math"
	"time"
)

// SlotSnapshot is the supervisor's derived view over one slot directory:
// config, raw state/status documents, and liveness signals. PidAlive is
// populated by the supervisor's OS probe, not by this package.
type SlotSnapshot struct {
	SlotID              string
	Config              *SlotConfig
	State               map[string]interface{}
	Status              map[string]interface{}
	LeadsCount          int
	HasLeadsCount       bool
	HeartbeatTS         *time.Time
	HeartbeatAgeSeconds float64
	Pid                 int
	PidAlive            *bool
	Phase               string
	Paths               SlotPaths
}

var heartbeatKeys = []string{"heartbeat_ts", "heartbeat", "last_heartbeat", "heartbeat_at"}
var pidKeys = []string{"pid", "worker_pid", "runner_pid"}
var phaseKeys = []string{"phase", "status", "state"}

// ReadSnapshot reads every slot artifact tolerantly and derives the
// heartbeat age. Each piece degrades independently: a missing config does
// not hide a live heartbeat.
func ReadSnapshot(paths SlotPaths) SlotSnapshot {
	snap := SlotSnapshot{SlotID: paths.SlotID, Paths: paths}

	if cfg, ok := ReadSlotConfig(paths.Config); ok {
		snap.Config = &cfg
	}
	snap.State, _ = ReadJSONDoc(paths.State)
	snap.Status, _ = ReadJSONDoc(paths.Status)
	snap.LeadsCount, snap.HasLeadsCount = CountLines(paths.Leads)

	snap.HeartbeatTS = extractHeartbeat(snap.State, snap.Status)
	snap.Pid = extractPid(snap.State, snap.Status)
	snap.Phase = extractPhase(snap.State, snap.Status)

	if snap.HeartbeatTS != nil {
		snap.HeartbeatAgeSeconds = math.Max(0, time.Since(*snap.HeartbeatTS).Seconds())
	}
	return snap
}

func extractHeartbeat(docs ...map[string]interface{}) *time.Time {
	for _, doc := range docs {
		for _, key := range heartbeatKeys {
			if ts := parseTimestamp(doc[key]); ts != nil {
				return ts
			}
		}
	}
	return nil
}

func extractPid(docs ...map[string]interface{}) int {
	for _, doc := range docs {
		for _, key := range pidKeys {
			if v, ok := doc[key].(float64); ok && v > 0 {
				return int(v)
			}
		}
	}
	return 0
}

func extractPhase(docs ...map[string]interface{}) string {
	for _, doc := range docs {
		for _, key := range phaseKeys {
			if v, ok := doc[key].(string); ok && v != "" {
				return v
			}
		}
	}
	return ""
}

// parseTimestamp accepts epoch seconds or RFC 3339 / ISO-8601 strings
// (trailing "Z" included). Anything else reads as absent.
func parseTimestamp(value interface{}) *time.Time {
	switch v := value.(type) {
	case float64:
		t := time.Unix(int64(v), int64((v-math.Trunc(v))*1e9)).UTC()
		return &t
	case string:
		raw := v
		if raw == "" {
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999999-07:00"} {
			if t, err := time.Parse(layout, raw); err == nil {
				utc := t.UTC()
				return &utc
			}
		}
		return nil
	default:
		return nil
	}
}
