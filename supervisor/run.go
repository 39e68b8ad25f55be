package supervisor

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Run drives the supervise loop: an immediate tick, then one tick per scan
// interval until the context is cancelled. On shutdown every worker is
// force-stopped.
func (s *Supervisor) Run(ctx context.Context) error {
	var watchEvents <-chan fsnotify.Event
	if s.settings.WatchSlotsRoot {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			s.log.Warnw("slots root watch unavailable", "error", err)
		} else if err := watcher.Add(s.slotsRoot); err != nil {
			s.log.Warnw("slots root watch failed", "path", s.slotsRoot, "error", err)
			watcher.Close()
		} else {
			defer watcher.Close()
			watchEvents = watcher.Events
			s.log.Infow("watching slots root", "path", s.slotsRoot)
		}
	}

	s.Tick()
	ticker := time.NewTicker(s.settings.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Infow("supervisor stopping")
			s.StopAll()
			return nil
		case <-ticker.C:
			s.Tick()
		case event, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			// A new slot directory shows up as a create under the root.
			// Register it right away instead of waiting for the next tick.
			if event.Op.Has(fsnotify.Create) {
				if err := s.Scan(); err != nil {
					s.log.Warnw("slot scan failed", "error", err)
				}
			}
		}
	}
}
