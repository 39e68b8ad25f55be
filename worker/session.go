package worker

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/internal/httpclient"
	"github.com/engyne/engyne/lead"
)

const sessionCheckTimeout = 10 * time.Second

// SessionCheckedSource guards another Source with an authenticated-session
// check: before each fetch it loads the listing URL and requires the final
// host, after redirects, to be the authenticated host. Landing anywhere
// else (or a 401/403) means the session expired and the slot needs a login.
type SessionCheckedSource struct {
	inner             Source
	listingURL        string
	authenticatedHost string
	client            *httpclient.SaferClient
}

// sessionCheckedContactor preserves the inner source's click capability
// through the wrapper.
type sessionCheckedContactor struct {
	*SessionCheckedSource
	contactor Contactor
}

func (s *sessionCheckedContactor) Contact(ctx context.Context, raw lead.RawLead) (bool, string, error) {
	return s.contactor.Contact(ctx, raw)
}

// NewSessionCheckedSource wraps inner with the session check. The returned
// Source implements Contactor exactly when inner does.
func NewSessionCheckedSource(inner Source, listingURL, authenticatedHost string) Source {
	s := &SessionCheckedSource{
		inner:             inner,
		listingURL:        listingURL,
		authenticatedHost: strings.ToLower(authenticatedHost),
		client:            httpclient.New(sessionCheckTimeout),
	}
	if c, ok := inner.(Contactor); ok {
		return &sessionCheckedContactor{SessionCheckedSource: s, contactor: c}
	}
	return s
}

// SetClient replaces the HTTP client. Used by tests.
func (s *SessionCheckedSource) SetClient(client *httpclient.SaferClient) {
	s.client = client
}

// Fetch verifies the session and delegates to the inner source.
func (s *SessionCheckedSource) Fetch(ctx context.Context, maxItems int) ([]lead.RawLead, error) {
	if err := s.checkSession(ctx); err != nil {
		return nil, err
	}
	return s.inner.Fetch(ctx, maxItems)
}

func (s *SessionCheckedSource) checkSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.listingURL, nil)
	if err != nil {
		return errors.Wrap(err, "build listing request")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "load listing page")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.Wrapf(ErrLoginRequired, "listing page returned %d", resp.StatusCode)
	}
	host := strings.ToLower(resp.Request.URL.Hostname())
	if host != s.authenticatedHost {
		return errors.Wrapf(ErrLoginRequired, "landed on %s, expected %s", host, s.authenticatedHost)
	}
	return nil
}
