package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/lead"
	"github.com/engyne/engyne/logger"
	"github.com/engyne/engyne/quality"
	"github.com/engyne/engyne/slotfs"
)

// Options is the per-run worker configuration, normally handed down by the
// supervisor through the process contract argv.
type Options struct {
	SlotsRoot         string
	SlotID            string
	RunID             string
	APIBase           string
	WorkerSecret      string
	HeartbeatInterval time.Duration
	Cooldown          time.Duration
	LeadsLimit        int
}

// Worker owns one slot directory for one run.
type Worker struct {
	opts      Options
	paths     slotfs.SlotPaths
	source    Source
	emitter   *EventEmitter
	log       *zap.SugaredLogger
	seenIDs   map[string]bool
	seenSigs  map[string]bool
	bootDelay time.Duration
	startedAt time.Time
}

// New resolves the slot directory and builds a worker around the source.
func New(opts Options, source Source) (*Worker, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 2 * time.Second
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 2 * time.Second
	}
	if opts.LeadsLimit <= 0 {
		opts.LeadsLimit = 10
	}
	paths, err := slotfs.Paths(opts.SlotsRoot, opts.SlotID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(paths.Root, 0o755); err != nil {
		return nil, err
	}
	return &Worker{
		opts:      opts,
		paths:     paths,
		source:    source,
		emitter:   NewEventEmitter(opts.APIBase, opts.WorkerSecret),
		log:       logger.Named("worker." + opts.SlotID),
		seenIDs:   map[string]bool{},
		seenSigs:  map[string]bool{},
		bootDelay: 500 * time.Millisecond,
	}, nil
}

// SetEmitter replaces the verified event emitter. Used by tests.
func (w *Worker) SetEmitter(emitter *EventEmitter) {
	w.emitter = emitter
}

// Paths exposes the worker's resolved slot paths.
func (w *Worker) Paths() slotfs.SlotPaths {
	return w.paths
}

// Run drives the worker lifecycle until the context is cancelled or the
// configured run duration is exhausted.
func (w *Worker) Run(ctx context.Context) error {
	if err := slotfs.WritePidFile(w.paths, os.Getpid()); err != nil {
		return err
	}
	defer slotfs.ClearPidFile(w.paths)

	w.startedAt = time.Now()
	w.heartbeat(slotfs.PhaseBoot, cycleResult{})
	if !sleepCtx(ctx, w.bootDelay) {
		w.heartbeat(slotfs.PhaseStopping, cycleResult{})
		return nil
	}
	w.heartbeat(slotfs.PhaseInit, cycleResult{})
	w.log.Infow("worker started", "run_id", w.opts.RunID, "slot_dir", w.paths.Root)

	for {
		cfg, _ := slotfs.ReadSlotConfig(w.paths.Config)
		if cfg.MaxRunMinutes > 0 && time.Since(w.startedAt) > time.Duration(cfg.MaxRunMinutes)*time.Minute {
			w.log.Infow("run duration exhausted", "max_run_minutes", cfg.MaxRunMinutes)
			break
		}

		result := w.Cycle(ctx, cfg)
		w.heartbeat(result.phase, result)

		sleep := w.opts.Cooldown
		if cfg.CooldownSeconds > 0 {
			sleep = time.Duration(cfg.CooldownSeconds * float64(time.Second))
		}
		if sleep < w.opts.HeartbeatInterval {
			sleep = w.opts.HeartbeatInterval
		}
		if result.phase == slotfs.PhaseLoginRequired || result.phase == slotfs.PhaseError {
			sleep = w.opts.HeartbeatInterval
		}
		if !w.cooldown(ctx, sleep, result) {
			break
		}
	}

	w.heartbeat(slotfs.PhaseStopping, cycleResult{})
	return nil
}

// cycleResult carries one cycle's counters into the heartbeat.
type cycleResult struct {
	phase      slotfs.Phase
	cfg        slotfs.SlotConfig
	policy     quality.Policy
	hasConfig  bool
	leadsFound int
	leadsKept  int
	clicksSent int
	verified   int
	lastError  string
}

// Cycle performs one scrape/filter/append pass with the given config.
func (w *Worker) Cycle(ctx context.Context, cfg slotfs.SlotConfig) cycleResult {
	result := cycleResult{
		phase:     slotfs.PhaseParseLeads,
		cfg:       cfg,
		policy:    quality.Mapping(cfg.QualityLevel),
		hasConfig: true,
	}

	maxPerCycle := cfg.MaxLeadsPerCycle
	if maxPerCycle <= 0 {
		maxPerCycle = w.opts.LeadsLimit
	}

	raws, err := w.source.Fetch(ctx, maxPerCycle)
	if err != nil {
		if isLoginRequired(err) {
			result.phase = slotfs.PhaseLoginRequired
			return result
		}
		result.phase = slotfs.PhaseError
		result.lastError = err.Error()
		w.log.Warnw("scrape cycle failed", "error", err)
		return result
	}

	result.leadsFound = len(raws)
	clickBudget := cfg.MaxClicksPerCycle
	contactor, canContact := w.source.(Contactor)

	for _, raw := range raws {
		if raw.LeadID == "" {
			raw.LeadID = fmt.Sprintf("%s-%s-%s", w.opts.SlotID, w.opts.RunID, uuid.NewString())
		}
		sig := raw.Signature()
		if w.seenIDs[raw.LeadID] || w.seenSigs[sig] {
			continue
		}
		w.seenIDs[raw.LeadID] = true
		w.seenSigs[sig] = true

		decision := lead.Evaluate(raw, cfg)
		record := lead.BuildRecord(w.opts.SlotID, w.opts.RunID, slotfs.UTCNow(), raw, cfg, decision)

		if decision.Keep {
			result.leadsKept++
			if cfg.AutoBuy && !cfg.DryRunEnabled() && canContact &&
				(cfg.MaxClicksPerCycle <= 0 || clickBudget > 0) {
				verified, verificationSource, contactErr := contactor.Contact(ctx, raw)
				if contactErr != nil {
					w.log.Warnw("contact click failed", "lead_id", raw.LeadID, "error", contactErr)
				} else {
					record.Clicked = true
					result.clicksSent++
					clickBudget--
					if verified {
						record.Verified = true
						record.VerificationSource = verificationSource
						result.verified++
					}
				}
			}
		}

		if err := slotfs.AppendJSONL(w.paths.Leads, record); err != nil {
			w.log.Errorw("leads append failed", "lead_id", record.LeadID, "error", err)
			continue
		}
		if record.Verified {
			w.emitter.EmitVerified(w.opts.SlotID, record.LeadID, verifiedPayload(record))
		}
	}

	return result
}

// cooldown sleeps between cycles without starving the heartbeat: sleeps
// longer than one heartbeat interval are chunked, with a COOLDOWN heartbeat
// per chunk so the supervisor never reads the worker as stale. Returns false
// when the context was cancelled.
func (w *Worker) cooldown(ctx context.Context, sleep time.Duration, result cycleResult) bool {
	for sleep > w.opts.HeartbeatInterval {
		if !sleepCtx(ctx, w.opts.HeartbeatInterval) {
			return false
		}
		sleep -= w.opts.HeartbeatInterval
		w.heartbeat(slotfs.PhaseCooldown, result)
	}
	return sleepCtx(ctx, sleep)
}

func (w *Worker) heartbeat(phase slotfs.Phase, result cycleResult) {
	state := slotfs.SlotState{
		SlotID:      w.opts.SlotID,
		Phase:       phase,
		RunID:       w.opts.RunID,
		Pid:         os.Getpid(),
		HeartbeatTS: slotfs.UTCNow(),
	}
	if result.hasConfig {
		state.ConfigVersion = result.cfg.Version
		state.QualityLevel = result.cfg.QualityLevel
		state.AutoBuy = result.cfg.AutoBuy
		state.DryRun = result.cfg.DryRunEnabled()
		state.MaxAgeHours = float64(result.policy.MaxAgeHours)
		state.MinMemberMo = result.policy.MinMemberMonths
		state.LeadsFound = result.leadsFound
		state.LeadsKept = result.leadsKept
		state.ClicksSent = result.clicksSent
		state.Verified = result.verified
		state.LastError = result.lastError
	}
	if err := slotfs.WriteState(w.paths, state); err != nil {
		w.log.Warnw("heartbeat write failed", "error", err)
	}
}

// verifiedPayload builds the contact payload forwarded to the event sink,
// so dispatchers can extract channel addresses without re-reading the
// leads log.
func verifiedPayload(record lead.Record) map[string]interface{} {
	payload := map[string]interface{}{}
	put := func(key, value string) {
		if value != "" {
			payload[key] = value
		}
	}
	put("title", record.Title)
	put("country", record.Country)
	put("category_text", record.CategoryText)
	put("email", record.Email)
	put("phone", record.Phone)
	put("contact", record.Contact)
	if record.AgeHours != nil {
		payload["age_hours"] = *record.AgeHours
	}
	if record.MemberMonths != nil {
		payload["member_months"] = *record.MemberMonths
	}
	return payload
}

func isLoginRequired(err error) bool {
	return errors.Is(err, ErrLoginRequired)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
