package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/internal/httpclient"
	"github.com/engyne/engyne/logger"
	"github.com/engyne/engyne/slotfs"
)

const deliveryTimeout = 10 * time.Second

// Settings is the resolved configuration for one dispatcher process.
type Settings struct {
	Channel       string
	RuntimeRoot   string
	PollSeconds   float64
	RatePerMinute int
	DryRun        bool
	DryRunAdvance bool
	WebhookURL    string
	WebhookSecret string
}

// MessageDrafter optionally drafts a contact message for a record. An empty
// result means "no drafted message".
type MessageDrafter interface {
	Generate(record map[string]interface{}, channel string) string
}

// Dispatcher drains one channel queue.
type Dispatcher struct {
	settings Settings
	paths    ChannelPaths
	client   *httpclient.SaferClient
	drafter  MessageDrafter
	log      *zap.SugaredLogger
	now      func() time.Time
}

// New builds a dispatcher and ensures the channel file set exists.
func New(settings Settings) (*Dispatcher, error) {
	paths, err := EnsureChannelPaths(settings.RuntimeRoot, settings.Channel)
	if err != nil {
		return nil, err
	}
	// Delivery bridges are commonly self-hosted on the same box, so the
	// client must be able to reach private addresses.
	off := false
	return &Dispatcher{
		settings: settings,
		paths:    paths,
		client:   httpclient.NewWithOptions(deliveryTimeout, httpclient.Options{BlockPrivateIP: &off}),
		log:      logger.Named("dispatch." + settings.Channel),
		now:      time.Now,
	}, nil
}

// SetClient replaces the delivery HTTP client. Used by tests.
func (d *Dispatcher) SetClient(client *httpclient.SaferClient) {
	d.client = client
}

// SetDrafter installs an optional message drafter.
func (d *Dispatcher) SetDrafter(drafter MessageDrafter) {
	d.drafter = drafter
}

// Paths exposes the resolved channel file set.
func (d *Dispatcher) Paths() ChannelPaths {
	return d.paths
}

// Run polls the queue until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	poll := time.Duration(d.settings.PollSeconds * float64(time.Second))
	if poll <= 0 {
		poll = 2 * time.Second
	}
	d.log.Infow("dispatcher started",
		"channel", d.settings.Channel,
		"queue", d.paths.Queue,
		"rate_per_minute", d.settings.RatePerMinute,
		"dry_run", d.settings.DryRun,
	)
	for {
		processed, err := d.ProcessQueue()
		if err != nil {
			return err
		}
		if processed > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(poll):
		}
	}
}

// ProcessQueue performs one pass over the queue from the persisted offset.
// It returns the number of records whose offset advanced.
func (d *Dispatcher) ProcessQueue() (int, error) {
	contactState := loadContactState(d.paths.ContactState)
	rateState := loadRateState(d.paths.Rate)
	offset := slotfs.ReadOffset(d.paths.Offset)

	processed := 0
	var iterErr error
	err := slotfs.ForEachLine(d.paths.Queue, offset, func(idx int, raw string) bool {
		line := strings.TrimSpace(raw)
		if line == "" {
			offset = idx + 1
			iterErr = slotfs.WriteOffset(d.paths.Offset, offset)
			return iterErr == nil
		}

		var record map[string]interface{}
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			d.journal(StatusInvalid, "json_parse_error", map[string]interface{}{"raw": line})
			offset = idx + 1
			iterErr = slotfs.WriteOffset(d.paths.Offset, offset)
			return iterErr == nil
		}

		advance, mutated := d.processRecord(record, contactState, rateState)
		if mutated {
			if err := saveState(d.paths.ContactState, contactState); err != nil {
				iterErr = err
				return false
			}
			if err := saveState(d.paths.Rate, rateState); err != nil {
				iterErr = err
				return false
			}
		}
		if !advance {
			return false
		}
		offset = idx + 1
		if err := slotfs.WriteOffset(d.paths.Offset, offset); err != nil {
			iterErr = err
			return false
		}
		processed++
		return true
	})
	if err != nil {
		return processed, err
	}
	return processed, iterErr
}

// processRecord decides one record's fate. It returns whether the offset
// advances past the record and whether the side state was mutated.
func (d *Dispatcher) processRecord(record map[string]interface{}, contactState ContactState, rateState RateState) (bool, bool) {
	leadID, _ := record["lead_id"].(string)
	slotID, _ := record["slot_id"].(string)
	if slotID == "" {
		slotID = "unknown"
	}
	if leadID == "" {
		d.journal(StatusInvalid, "missing lead_id", record)
		return true, true
	}

	if state, ok := contactState[leadID]; ok {
		if state.Terminal() {
			return true, false
		}
		// A held lead pauses the queue only while dry run is still in
		// force; once cleared it is re-evaluated in place.
		if state.Status == StatusHeld {
			if d.settings.DryRun && !d.settings.DryRunAdvance {
				return false, false
			}
		} else if state.Paused() {
			return false, false
		}
	}

	payload, _ := record["payload"].(map[string]interface{})
	contact := ExtractContact(payload, d.settings.Channel)

	if d.settings.DryRun {
		if d.settings.DryRunAdvance {
			contactState[leadID] = LeadContactState{Status: StatusSkipped, UpdatedAt: slotfs.UTCNow(), Detail: "dry_run"}
			d.journal(StatusSkipped, "dry_run", record)
			return true, true
		}
		contactState[leadID] = LeadContactState{Status: StatusHeld, UpdatedAt: slotfs.UTCNow(), Detail: "dry_run_hold"}
		return false, true
	}

	if RequiresContact(d.settings.Channel) && contact == "" {
		contactState[leadID] = LeadContactState{Status: StatusBlocked, UpdatedAt: slotfs.UTCNow(), Detail: "missing_contact"}
		d.journal(StatusBlocked, "missing_contact", record)
		return true, true
	}

	if err := d.webhookConfigured(); err != nil {
		d.log.Debugw("record blocked", "lead_id", leadID, "error", err)
		contactState[leadID] = LeadContactState{Status: StatusBlocked, UpdatedAt: slotfs.UTCNow(), Detail: "missing_webhook"}
		d.journal(StatusBlocked, "missing_webhook", record)
		return true, true
	}

	if !rateState.CanSend(slotID, d.settings.RatePerMinute, d.now()) {
		return false, true
	}

	if d.deliver(record, contact) {
		rateState.MarkSent(slotID, d.now())
		contactState[leadID] = LeadContactState{Status: StatusSent, UpdatedAt: slotfs.UTCNow()}
		d.journal(StatusSent, "", record)
		return true, true
	}

	contactState[leadID] = LeadContactState{Status: StatusFailed, UpdatedAt: slotfs.UTCNow(), Detail: "webhook_error"}
	d.journal(StatusFailed, "webhook_error", record)
	return true, true
}

// webhookConfigured reports ErrMissingWebhook when the channel has no
// delivery webhook bound. Records hitting this block rather than failing
// the dispatcher: the queue keeps draining once the webhook appears.
func (d *Dispatcher) webhookConfigured() error {
	if d.settings.WebhookURL == "" {
		return errors.Wrapf(errors.ErrMissingWebhook, "%s", d.settings.Channel)
	}
	return nil
}

// deliver posts the record to the channel webhook. Any non-2xx response or
// transport error is a failed delivery.
func (d *Dispatcher) deliver(record map[string]interface{}, contact string) bool {
	out := map[string]interface{}{
		"channel": d.settings.Channel,
		"sent_at": slotfs.UTCNow(),
		"record":  record,
		"contact": contact,
	}
	if d.drafter != nil {
		if msg := d.drafter.Generate(record, d.settings.Channel); msg != "" {
			out["message"] = msg
		}
	}
	body, err := json.Marshal(out)
	if err != nil {
		return false
	}
	req, err := http.NewRequest(http.MethodPost, d.settings.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if d.settings.WebhookSecret != "" {
		req.Header.Set("X-Engyne-Channel-Secret", d.settings.WebhookSecret)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Warnw("webhook delivery failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// journalEntry is one line of the sent and proofs journals.
type journalEntry struct {
	Status string      `json:"status"`
	Detail string      `json:"detail,omitempty"`
	SentAt string      `json:"sent_at"`
	Record interface{} `json:"record"`
}

func (d *Dispatcher) journal(status, detail string, record interface{}) {
	entry := journalEntry{
		Status: status,
		Detail: detail,
		SentAt: slotfs.UTCNow(),
		Record: record,
	}
	if err := slotfs.AppendJSONL(d.paths.Sent, entry); err != nil {
		d.log.Warnw("journal append failed", "path", d.paths.Sent, "error", err)
	}
	if err := slotfs.AppendJSONL(d.paths.Proofs, entry); err != nil {
		d.log.Warnw("journal append failed", "path", d.paths.Proofs, "error", err)
	}
}
