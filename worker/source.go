// Package worker runs the per-slot scrape/filter/append loop. One worker
// process owns one slot directory for the lifetime of a run.
package worker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/lead"
	"github.com/engyne/engyne/slotfs"
)

// ErrLoginRequired is returned by a Source when the listing page cannot be
// reached with an authenticated session.
var ErrLoginRequired = errors.New("login required")

// Source produces raw lead candidates for one scrape cycle.
type Source interface {
	Fetch(ctx context.Context, maxItems int) ([]lead.RawLead, error)
}

// Contactor is implemented by sources that can click the contact action and
// verify the result. Sources without it run observe-only.
type Contactor interface {
	Contact(ctx context.Context, raw lead.RawLead) (verified bool, verificationSource string, err error)
}

// StubSource is the no-browser source: it produces nothing and never
// requires login, exercising the full heartbeat lifecycle. It replaces the
// real listing source in development and in supervisor tests.
type StubSource struct{}

func (StubSource) Fetch(ctx context.Context, maxItems int) ([]lead.RawLead, error) {
	return nil, nil
}

// FixtureSource replays raw leads from a JSONL file, up to maxItems per
// cycle, then produces nothing. It drives the pipeline end to end without a
// browser session.
type FixtureSource struct {
	mu     sync.Mutex
	path   string
	offset int
}

// NewFixtureSource reads candidates from the given JSONL file.
func NewFixtureSource(path string) *FixtureSource {
	return &FixtureSource{path: path}
}

func (s *FixtureSource) Fetch(ctx context.Context, maxItems int) ([]lead.RawLead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch []lead.RawLead
	err := slotfs.ForEachLine(s.path, s.offset, func(idx int, raw string) bool {
		var candidate lead.RawLead
		if jsonErr := json.Unmarshal([]byte(raw), &candidate); jsonErr == nil {
			batch = append(batch, candidate)
		}
		s.offset = idx + 1
		return maxItems <= 0 || len(batch) < maxItems
	})
	if err != nil {
		return nil, errors.Wrap(err, "read fixture")
	}
	return batch, nil
}
