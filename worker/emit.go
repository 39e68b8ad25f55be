package worker

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/engyne/engyne/internal/httpclient"
	"github.com/engyne/engyne/logger"
	"github.com/engyne/engyne/slotfs"
)

const emitTimeout = 5 * time.Second

// EventEmitter posts verified events to the node's event sink. Failures are
// swallowed: the leads log is the source of truth and the sink's consumers
// are idempotent.
type EventEmitter struct {
	apiBase string
	secret  string
	client  *httpclient.SaferClient
}

// NewEventEmitter builds an emitter for the sink at apiBase.
func NewEventEmitter(apiBase, secret string) *EventEmitter {
	// The sink normally runs on the same host.
	off := false
	return &EventEmitter{
		apiBase: strings.TrimRight(apiBase, "/"),
		secret:  secret,
		client:  httpclient.NewWithOptions(emitTimeout, httpclient.Options{BlockPrivateIP: &off}),
	}
}

// SetClient replaces the HTTP client. Used by tests.
func (e *EventEmitter) SetClient(client *httpclient.SaferClient) {
	e.client = client
}

// EmitVerified posts one verified event. It never returns an error.
func (e *EventEmitter) EmitVerified(slotID, leadID string, payload map[string]interface{}) {
	if e == nil || e.apiBase == "" {
		return
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"slot_id":     slotID,
		"lead_id":     leadID,
		"observed_at": slotfs.UTCNow(),
		"payload":     payload,
	})
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, e.apiBase+"/events/verified", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Engyne-Worker-Secret", e.secret)
	resp, err := e.client.Do(req)
	if err != nil {
		logger.Debugw("verified event emit failed", "slot_id", slotID, "lead_id", leadID, "error", err)
		return
	}
	resp.Body.Close()
}
