// Package sink accepts verified events from slot workers and fans them out
// to the node-wide verified journal and every per-channel delivery queue.
package sink

import (
	"path/filepath"

	"github.com/engyne/engyne/dispatch"
	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/logger"
	"github.com/engyne/engyne/slotfs"
)

// VerifiedEvent is the wire type posted by workers.
type VerifiedEvent struct {
	SlotID     string                 `json:"slot_id"`
	LeadID     string                 `json:"lead_id"`
	ObservedAt string                 `json:"observed_at,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// QueueRecord is one fan-out copy of an accepted event.
type QueueRecord struct {
	Type       string                 `json:"type"`
	SlotID     string                 `json:"slot_id"`
	LeadID     string                 `json:"lead_id"`
	ObservedAt string                 `json:"observed_at,omitempty"`
	ReceivedAt string                 `json:"received_at"`
	Channel    string                 `json:"channel,omitempty"`
	Payload    map[string]interface{} `json:"payload"`
}

// Queues owns the runtime root's queue files.
type Queues struct {
	runtimeRoot string
}

// NewQueues resolves and creates the runtime root.
func NewQueues(runtimeRoot string) (*Queues, error) {
	abs, err := filepath.Abs(runtimeRoot)
	if err != nil {
		return nil, errors.Wrap(err, "resolve runtime root")
	}
	if err := slotfs.Touch(filepath.Join(abs, "verified_queue.jsonl")); err != nil {
		return nil, errors.Wrap(err, "create verified queue")
	}
	for _, channel := range dispatch.Channels {
		if _, err := dispatch.EnsureChannelPaths(abs, channel); err != nil {
			return nil, err
		}
	}
	return &Queues{runtimeRoot: abs}, nil
}

// VerifiedPath is the node-wide verified journal.
func (q *Queues) VerifiedPath() string {
	return filepath.Join(q.runtimeRoot, "verified_queue.jsonl")
}

// ChannelQueuePath is the delivery queue for one channel.
func (q *Queues) ChannelQueuePath(channel string) string {
	return filepath.Join(q.runtimeRoot, channel+"_queue.jsonl")
}

// Fanout appends the record to the verified journal and every channel
// queue, stamping the channel into each copy. Only the verified journal
// append is load-bearing; channel copies are best effort and a failed copy
// is logged, not propagated. The appends are not transactional across
// files; dispatchers tolerate duplicates produced by a crash between them.
func (q *Queues) Fanout(event VerifiedEvent) (QueueRecord, error) {
	if event.Payload == nil {
		event.Payload = map[string]interface{}{}
	}
	record := QueueRecord{
		Type:       "verified",
		SlotID:     event.SlotID,
		LeadID:     event.LeadID,
		ObservedAt: event.ObservedAt,
		ReceivedAt: slotfs.UTCNow(),
		Payload:    event.Payload,
	}
	if err := slotfs.AppendJSONL(q.VerifiedPath(), record); err != nil {
		return record, errors.Wrap(err, "append verified queue")
	}
	for _, channel := range dispatch.Channels {
		copy := record
		copy.Channel = channel
		if err := slotfs.AppendJSONL(q.ChannelQueuePath(channel), copy); err != nil {
			logger.Errorw("channel queue append failed",
				"channel", channel, "slot_id", record.SlotID, "lead_id", record.LeadID, "error", err)
		}
	}
	return record, nil
}
