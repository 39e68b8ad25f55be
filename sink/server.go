package sink

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/internal/httpclient"
	"github.com/engyne/engyne/logger"
)

const outboundTimeout = 5 * time.Second

// Server is the verified event sink HTTP server.
type Server struct {
	secret      string
	queues      *Queues
	outboundURL string
	limiter     *rate.Limiter
	client      *httpclient.SaferClient
	log         *zap.SugaredLogger
}

// NewServer builds a sink. outboundURL may be empty; outboundRatePerSec
// paces the optional fire-and-forget copies (0 = unpaced).
func NewServer(secret string, queues *Queues, outboundURL string, outboundRatePerSec float64) *Server {
	var limiter *rate.Limiter
	if outboundRatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(outboundRatePerSec), 1)
	}
	off := false
	return &Server{
		secret:      secret,
		queues:      queues,
		outboundURL: outboundURL,
		limiter:     limiter,
		client:      httpclient.NewWithOptions(outboundTimeout, httpclient.Options{BlockPrivateIP: &off}),
		log:         logger.Named("sink"),
	}
}

// SetClient replaces the outbound HTTP client. Used by tests.
func (s *Server) SetClient(client *httpclient.SaferClient) {
	s.client = client
}

// Handler returns the sink's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events/verified", s.handleVerified)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// ListenAndServe runs the sink until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Infow("verified event sink listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleVerified(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if err := s.authorize(r); err != nil {
		s.log.Debugw("verified event rejected", "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid worker secret"})
		return
	}

	var event VerifiedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed event"})
		return
	}
	if event.SlotID == "" || event.LeadID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "slot_id and lead_id are required"})
		return
	}

	record, err := s.queues.Fanout(event)
	if err != nil {
		s.log.Errorw("fan-out failed", "slot_id", event.SlotID, "lead_id", event.LeadID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "fan-out failed"})
		return
	}

	// Acceptance never waits for the outbound copy.
	if s.outboundURL != "" {
		go s.postOutbound(record)
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"slot_id": event.SlotID,
		"lead_id": event.LeadID,
	})
}

// authorize compares the worker secret in constant time, reporting
// ErrUnauthorized on mismatch. A sink with no configured secret accepts
// nothing.
func (s *Server) authorize(r *http.Request) error {
	if s.secret == "" {
		return errors.Wrap(errors.ErrUnauthorized, "no worker secret configured")
	}
	presented := r.Header.Get("X-Engyne-Worker-Secret")
	if subtle.ConstantTimeCompare([]byte(presented), []byte(s.secret)) != 1 {
		return errors.ErrUnauthorized
	}
	return nil
}

// postOutbound sends a fire-and-forget copy of the accepted record. Errors
// are swallowed; pacing drops copies rather than queueing them.
func (s *Server) postOutbound(record QueueRecord) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.log.Debugw("outbound copy dropped by pacing", "lead_id", record.LeadID)
		return
	}
	body, err := json.Marshal(record)
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, s.outboundURL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Debugw("outbound copy failed", "error", err)
		return
	}
	resp.Body.Close()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
