// Package dispatch drains per-channel delivery queues: one dispatcher
// process per channel, consuming a JSONL queue through a persisted offset
// and journaling every decision.
package dispatch

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/slotfs"
)

// Channels is the closed set of delivery channels.
var Channels = []string{"whatsapp", "telegram", "email", "sheets", "push"}

// contactKeys lists, per channel, the payload keys probed for a contact
// address in preference order. Channels absent here (sheets) deliver
// without a contact.
var contactKeys = map[string][]string{
	"whatsapp": {"whatsapp", "phone", "mobile", "phone_number"},
	"telegram": {"telegram", "telegram_chat_id", "chat_id"},
	"email":    {"email", "email_address"},
	"push":     {"subscription", "push_subscription"},
}

// ValidChannel reports membership in the closed channel set.
func ValidChannel(channel string) bool {
	for _, c := range Channels {
		if c == channel {
			return true
		}
	}
	return false
}

// RequiresContact reports whether the channel cannot deliver without a
// contact address.
func RequiresContact(channel string) bool {
	_, ok := contactKeys[channel]
	return ok
}

// ExtractContact probes the payload for the channel's contact address.
func ExtractContact(payload map[string]interface{}, channel string) string {
	for _, key := range contactKeys[channel] {
		if value, ok := payload[key]; ok && value != nil {
			if s, ok := value.(string); ok {
				if s != "" {
					return s
				}
				continue
			}
			return stringify(value)
		}
	}
	return ""
}

// stringify renders non-string contact values (numeric chat ids, push
// subscription objects) as text.
func stringify(value interface{}) string {
	switch v := value.(type) {
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ChannelPaths is the per-channel file set under the runtime root.
type ChannelPaths struct {
	Channel      string
	Queue        string // {channel}_queue.jsonl
	Offset       string // {channel}_queue.offset
	Sent         string // {channel}_queue.sent.jsonl
	Rate         string // {channel}_queue.rate.json
	ContactState string // {channel}_queue.contact_state.json
	Proofs       string // {channel}_queue.proofs.jsonl
}

// EnsureChannelPaths resolves the channel file set and creates empty files
// on first use.
func EnsureChannelPaths(runtimeRoot, channel string) (ChannelPaths, error) {
	if !ValidChannel(channel) {
		return ChannelPaths{}, errors.Newf("unknown channel %q", channel)
	}
	paths := ChannelPaths{
		Channel:      channel,
		Queue:        filepath.Join(runtimeRoot, channel+"_queue.jsonl"),
		Offset:       filepath.Join(runtimeRoot, channel+"_queue.offset"),
		Sent:         filepath.Join(runtimeRoot, channel+"_queue.sent.jsonl"),
		Rate:         filepath.Join(runtimeRoot, channel+"_queue.rate.json"),
		ContactState: filepath.Join(runtimeRoot, channel+"_queue.contact_state.json"),
		Proofs:       filepath.Join(runtimeRoot, channel+"_queue.proofs.jsonl"),
	}
	for _, p := range []string{paths.Queue, paths.Offset, paths.Sent, paths.Rate, paths.ContactState, paths.Proofs} {
		if err := slotfs.Touch(p); err != nil {
			return ChannelPaths{}, errors.Wrapf(err, "ensure channel file %s", p)
		}
	}
	return paths, nil
}
