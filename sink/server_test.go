package sink

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engyne/engyne/dispatch"
	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/slotfs"
)

func newTestSink(t *testing.T) (*Server, *Queues) {
	t.Helper()
	queues, err := NewQueues(t.TempDir())
	require.NoError(t, err)
	return NewServer("worker-secret", queues, "", 0), queues
}

func postEvent(t *testing.T, handler http.Handler, secret string, event interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/events/verified", bytes.NewReader(body))
	if secret != "" {
		req.Header.Set("X-Engyne-Worker-Secret", secret)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	count, _ := slotfs.CountLines(path)
	return count
}

func TestVerifiedEventAccepted(t *testing.T) {
	server, queues := newTestSink(t)
	handler := server.Handler()

	event := VerifiedEvent{
		SlotID:     "s1",
		LeadID:     "L1",
		ObservedAt: slotfs.UTCNow(),
		Payload:    map[string]interface{}{"email": "a@example.com"},
	}
	w := postEvent(t, handler, "worker-secret", event)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp["status"])
	assert.Equal(t, "s1", resp["slot_id"])
	assert.Equal(t, "L1", resp["lead_id"])

	// One copy in the verified journal and one per channel.
	assert.Equal(t, 1, countLines(t, queues.VerifiedPath()))
	for _, channel := range dispatch.Channels {
		assert.Equal(t, 1, countLines(t, queues.ChannelQueuePath(channel)), channel)
	}
}

func TestChannelStampedIntoCopies(t *testing.T) {
	server, queues := newTestSink(t)
	postEvent(t, server.Handler(), "worker-secret", VerifiedEvent{SlotID: "s1", LeadID: "L1"})

	var record QueueRecord
	err := slotfs.ForEachLine(queues.ChannelQueuePath("email"), 0, func(idx int, raw string) bool {
		require.NoError(t, json.Unmarshal([]byte(raw), &record))
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, "verified", record.Type)
	assert.Equal(t, "email", record.Channel)
	assert.Equal(t, "s1", record.SlotID)
	assert.NotEmpty(t, record.ReceivedAt)
	assert.NotNil(t, record.Payload)

	// The verified journal copy has no channel stamp.
	record = QueueRecord{}
	err = slotfs.ForEachLine(queues.VerifiedPath(), 0, func(idx int, raw string) bool {
		require.NoError(t, json.Unmarshal([]byte(raw), &record))
		return true
	})
	require.NoError(t, err)
	assert.Empty(t, record.Channel)
}

func TestAuthFailures(t *testing.T) {
	server, queues := newTestSink(t)
	handler := server.Handler()
	event := VerifiedEvent{SlotID: "s1", LeadID: "L1"}

	assert.Equal(t, http.StatusUnauthorized, postEvent(t, handler, "", event).Code)
	assert.Equal(t, http.StatusUnauthorized, postEvent(t, handler, "wrong", event).Code)
	assert.Zero(t, countLines(t, queues.VerifiedPath()), "rejected events are discarded")

	// A sink with no configured secret accepts nothing.
	open := NewServer("", queues, "", 0)
	assert.Equal(t, http.StatusUnauthorized, postEvent(t, open.Handler(), "", event).Code)
}

func TestMalformedEventRejected(t *testing.T) {
	server, _ := newTestSink(t)
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodPost, "/events/verified", bytes.NewReader([]byte("{broken")))
	req.Header.Set("X-Engyne-Worker-Secret", "worker-secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusBadRequest,
		postEvent(t, handler, "worker-secret", VerifiedEvent{SlotID: "s1"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		postEvent(t, handler, "worker-secret", VerifiedEvent{LeadID: "L1"}).Code)
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := newTestSink(t)
	req := httptest.NewRequest(http.MethodGet, "/events/verified", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestDuplicateSubmissionsBothQueued(t *testing.T) {
	server, queues := newTestSink(t)
	handler := server.Handler()
	event := VerifiedEvent{SlotID: "s1", LeadID: "L1"}

	require.Equal(t, http.StatusAccepted, postEvent(t, handler, "worker-secret", event).Code)
	require.Equal(t, http.StatusAccepted, postEvent(t, handler, "worker-secret", event).Code)

	// Dedup is the dispatcher's job; the sink records both.
	assert.Equal(t, 2, countLines(t, queues.VerifiedPath()))
	assert.Equal(t, 2, countLines(t, queues.ChannelQueuePath("whatsapp")))
}

func TestChannelAppendFailureStillAccepted(t *testing.T) {
	server, queues := newTestSink(t)
	handler := server.Handler()

	// Wedge one channel queue: a directory in its place makes the append
	// fail while every other file stays writable.
	require.NoError(t, os.Remove(queues.ChannelQueuePath("whatsapp")))
	require.NoError(t, os.Mkdir(queues.ChannelQueuePath("whatsapp"), 0o755))

	w := postEvent(t, handler, "worker-secret", VerifiedEvent{SlotID: "s1", LeadID: "L1"})
	assert.Equal(t, http.StatusAccepted, w.Code, "verified journal is the durable record")

	assert.Equal(t, 1, countLines(t, queues.VerifiedPath()))
	assert.Equal(t, 1, countLines(t, queues.ChannelQueuePath("telegram")), "other channels still get their copy")
}

func TestAuthorizeReportsUnauthorized(t *testing.T) {
	server, queues := newTestSink(t)

	req := httptest.NewRequest(http.MethodPost, "/events/verified", nil)
	req.Header.Set("X-Engyne-Worker-Secret", "wrong")
	assert.True(t, errors.Is(server.authorize(req), errors.ErrUnauthorized))

	open := NewServer("", queues, "", 0)
	assert.True(t, errors.Is(open.authorize(req), errors.ErrUnauthorized))

	req.Header.Set("X-Engyne-Worker-Secret", "worker-secret")
	assert.NoError(t, server.authorize(req))
}

func TestHealthz(t *testing.T) {
	server, _ := newTestSink(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
