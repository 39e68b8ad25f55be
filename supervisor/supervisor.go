// Package supervisor keeps one worker process alive per slot directory. It
// scans the slots root, enforces heartbeat liveness, and restarts workers
// with throttled operator alerts.
package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/engyne/engyne/alerts"
	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/logger"
	"github.com/engyne/engyne/slotfs"
)

const (
	stopGrace = 5 * time.Second
	killGrace = 3 * time.Second
)

// Settings tunes the supervisor loop. Zero durations fall back to the
// documented defaults.
type Settings struct {
	SlotsRoot          string
	ProfileRoot        string
	APIBase            string
	WorkerSecret       string
	HeartbeatTTL       time.Duration
	ScanInterval       time.Duration
	MinRestartInterval time.Duration
	AlertsMin          time.Duration
	HeartbeatInterval  time.Duration
	WorkerCommand      string // shell-quoted argv prefix; empty = re-invoke this binary
	WatchSlotsRoot     bool
}

func (s *Settings) applyDefaults() {
	if s.HeartbeatTTL <= 0 {
		s.HeartbeatTTL = 30 * time.Second
	}
	if s.ScanInterval <= 0 {
		s.ScanInterval = 3 * time.Second
	}
	if s.MinRestartInterval <= 0 {
		s.MinRestartInterval = 5 * time.Second
	}
	if s.AlertsMin <= 0 {
		s.AlertsMin = 300 * time.Second
	}
	if s.HeartbeatInterval <= 0 {
		s.HeartbeatInterval = 2 * time.Second
	}
}

// managedSlot is the supervisor's registry entry for one slot.
type managedSlot struct {
	slotID          string
	cmd             *exec.Cmd
	waitDone        chan struct{}
	snapshot        *slotfs.SlotSnapshot
	runID           string
	lastStart       time.Time
	lastStop        time.Time
	disabled        bool
	lastAlertReason string
	lastAlertTS     time.Time
}

func (m *managedSlot) alive() bool {
	if m.cmd == nil {
		return false
	}
	select {
	case <-m.waitDone:
		return false
	default:
		return true
	}
}

// Supervisor owns the slot registry. All registry mutations happen under
// the mutex; the tick is serial.
type Supervisor struct {
	mu        sync.Mutex
	settings  Settings
	slotsRoot string
	slots     map[string]*managedSlot
	notifier  *alerts.Notifier
	log       *zap.SugaredLogger
	now       func() time.Time
}

// New resolves the slots root and builds an empty registry.
func New(settings Settings, notifier *alerts.Notifier) (*Supervisor, error) {
	settings.applyDefaults()
	root, err := slotfs.EnsureSlotsRoot(settings.SlotsRoot)
	if err != nil {
		return nil, err
	}
	return &Supervisor{
		settings:  settings,
		slotsRoot: root,
		slots:     map[string]*managedSlot{},
		notifier:  notifier,
		log:       logger.Named("supervisor"),
		now:       time.Now,
	}, nil
}

// SlotsRoot returns the resolved slots root directory.
func (s *Supervisor) SlotsRoot() string {
	return s.slotsRoot
}

// Tick runs one scan/refresh/enforce pass.
func (s *Supervisor) Tick() {
	if err := s.Scan(); err != nil {
		s.log.Warnw("slot scan failed", "error", err)
	}
	s.RefreshSnapshots()
	s.Enforce()
}

// Scan registers any slot directories that appeared since the last pass.
func (s *Supervisor) Scan() error {
	paths, err := slotfs.List(s.slotsRoot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		if _, ok := s.slots[p.SlotID]; !ok {
			s.slots[p.SlotID] = &managedSlot{slotID: p.SlotID}
			s.log.Infow("slot discovered", "slot_id", p.SlotID)
		}
	}
	return nil
}

// RefreshSnapshots re-reads every known slot's on-disk view and probes the
// recorded pid.
func (s *Supervisor) RefreshSnapshots() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.slots {
		paths, err := slotfs.Paths(s.slotsRoot, m.slotID)
		if err != nil {
			continue
		}
		snapshot := slotfs.ReadSnapshot(paths)
		if snapshot.Pid > 0 {
			exists, err := process.PidExists(int32(snapshot.Pid))
			if err == nil {
				snapshot.PidAlive = &exists
			}
		}
		m.snapshot = &snapshot
	}
}

// Enforce restarts every non-disabled slot whose worker is missing, whose
// heartbeat went stale, or whose recorded pid is gone.
func (s *Supervisor) Enforce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.slots {
		if m.disabled || m.snapshot == nil {
			continue
		}
		key, detail := s.restartReason(m)
		if key == "" {
			continue
		}
		// First spawn of a freshly discovered slot is routine; only
		// respawns alert.
		if !m.lastStart.IsZero() {
			s.maybeAlert(m, key, detail)
		}
		if m.alive() {
			s.stopLocked(m, true)
		}
		if err := s.startLocked(m); err != nil {
			if errors.Is(err, errors.ErrRestartThrottled) {
				s.log.Debugw("restart throttled", "slot_id", m.slotID)
			} else {
				s.log.Errorw("slot start failed", "slot_id", m.slotID, "reason", detail, "error", err)
			}
			continue
		}
		s.log.Infow("slot worker started", "slot_id", m.slotID, "run_id", m.runID, "reason", detail)
	}
}

// restartReason composes the restart decision as a stable key for alert
// throttling plus a human detail string. Volatile values (heartbeat age,
// pid) live only in the detail so the key stays comparable across ticks.
// Both are "" when the slot is healthy.
func (s *Supervisor) restartReason(m *managedSlot) (key, detail string) {
	var keys, details []string
	if !m.alive() {
		keys = append(keys, "process_dead")
		details = append(details, "worker process not running")
	}
	if m.snapshot.HeartbeatTS == nil {
		keys = append(keys, "heartbeat_missing")
		details = append(details, "heartbeat missing")
	} else if age := m.snapshot.HeartbeatAgeSeconds; age > s.settings.HeartbeatTTL.Seconds() {
		keys = append(keys, "heartbeat_stale")
		details = append(details, fmt.Sprintf("heartbeat stale (%.0fs)", age))
	}
	if m.alive() && m.snapshot.PidAlive != nil && !*m.snapshot.PidAlive {
		keys = append(keys, "pid_dead")
		details = append(details, fmt.Sprintf("pid %d not found", m.snapshot.Pid))
	}
	return strings.Join(keys, "+"), strings.Join(details, "; ")
}

// maybeAlert emits a throttled restart alert: only when the reason key
// changed or enough time passed since the previous alert for this slot. A
// crash-looping slot therefore alerts once per window, not once per tick.
func (s *Supervisor) maybeAlert(m *managedSlot, key, detail string) {
	now := s.now()
	if key == m.lastAlertReason && now.Sub(m.lastAlertTS) < s.settings.AlertsMin {
		return
	}
	m.lastAlertReason = key
	m.lastAlertTS = now
	if s.notifier != nil {
		s.notifier.Send("Slot worker restarted", fmt.Sprintf("%s: %s", m.slotID, detail))
	}
}

// StartSlot starts a worker for the slot, registering it if needed.
func (s *Supervisor) StartSlot(slotID string) error {
	if err := slotfs.ValidateSlotID(slotID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.slots[slotID]
	if !ok {
		m = &managedSlot{slotID: slotID}
		s.slots[slotID] = m
	}
	m.disabled = false
	return s.startLocked(m)
}

func (s *Supervisor) startLocked(m *managedSlot) error {
	if m.alive() {
		return errors.Wrapf(errors.ErrSlotRunning, "%s", m.slotID)
	}
	if !m.lastStart.IsZero() && s.now().Sub(m.lastStart) < s.settings.MinRestartInterval {
		return errors.Wrapf(errors.ErrRestartThrottled, "%s started %.1fs ago", m.slotID, s.now().Sub(m.lastStart).Seconds())
	}

	paths, err := slotfs.Paths(s.slotsRoot, m.slotID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(paths.Root, 0o755); err != nil {
		return errors.Wrap(err, "create slot dir")
	}

	runID := uuid.NewString()
	if err := slotfs.WriteRunMeta(paths, runID); err != nil {
		return err
	}

	argv, err := s.workerArgv(m.slotID, runID)
	if err != nil {
		return err
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "spawn worker for %s", m.slotID)
	}

	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()

	m.cmd = cmd
	m.waitDone = done
	m.runID = runID
	m.lastStart = s.now()
	return nil
}

// workerArgv builds the child argv. The worker command override (for
// alternative worker builds) is shell-quoted; by default the supervisor
// re-invokes its own binary's worker subcommand. Either way the positional
// contract is (slots_root, slot_id, run_id, api_base, worker_secret,
// profile_path, heartbeat_interval_seconds).
func (s *Supervisor) workerArgv(slotID, runID string) ([]string, error) {
	var prefix []string
	if s.settings.WorkerCommand != "" {
		parts, err := shellquote.Split(s.settings.WorkerCommand)
		if err != nil {
			return nil, errors.Wrap(err, "parse worker_command")
		}
		if len(parts) == 0 {
			return nil, errors.New("empty worker_command")
		}
		prefix = parts
	} else {
		exe, err := os.Executable()
		if err != nil {
			return nil, errors.Wrap(err, "resolve own executable")
		}
		prefix = []string{exe, "worker"}
	}

	profilePath := filepath.Join(s.settings.ProfileRoot, slotID)
	return append(prefix,
		s.slotsRoot,
		slotID,
		runID,
		s.settings.APIBase,
		s.settings.WorkerSecret,
		profilePath,
		strconv.FormatFloat(s.settings.HeartbeatInterval.Seconds(), 'f', -1, 64),
	), nil
}

// StopSlot disables the slot and terminates its worker: SIGTERM with a
// grace period, then SIGKILL when force is set.
func (s *Supervisor) StopSlot(slotID string, force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.slots[slotID]
	if !ok {
		return
	}
	m.disabled = true
	s.stopLocked(m, force)
}

func (s *Supervisor) stopLocked(m *managedSlot, force bool) {
	if !m.alive() {
		m.cmd = nil
		return
	}
	m.cmd.Process.Signal(syscall.SIGTERM)
	if !waitTimeout(m.waitDone, stopGrace) && force {
		s.log.Warnw("worker ignored SIGTERM, killing", "slot_id", m.slotID)
		m.cmd.Process.Kill()
		waitTimeout(m.waitDone, killGrace)
	}
	m.lastStop = s.now()
	m.cmd = nil
}

// StopAll force-stops every known slot. Used at supervisor shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.slots {
		m.disabled = true
		s.stopLocked(m, true)
	}
}

// Snapshot returns the last refreshed snapshot for a slot, if any.
func (s *Supervisor) Snapshot(slotID string) (slotfs.SlotSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.slots[slotID]
	if !ok || m.snapshot == nil {
		return slotfs.SlotSnapshot{}, false
	}
	return *m.snapshot, true
}

func waitTimeout(done chan struct{}, d time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
