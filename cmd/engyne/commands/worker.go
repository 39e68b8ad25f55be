package commands

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/engyne/engyne/config"
	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/logger"
	"github.com/engyne/engyne/worker"
)

// WorkerCmd runs one slot worker. The supervisor spawns it with the full
// positional contract; operators can also run it by hand with flags.
var WorkerCmd = &cobra.Command{
	Use:   "worker [slots_root slot_id run_id api_base worker_secret profile_path heartbeat_interval]",
	Short: "Run one slot worker (normally spawned by supervise)",
	Long: `Run the scrape/filter/append loop for one slot directory. The
supervisor passes the positional argument contract; any value left out falls
back to flags and then to config.`,
	Args: cobra.MaximumNArgs(7),
	RunE: runWorker,
}

var (
	workerSlotsRoot    string
	workerSlotID       string
	workerRunID        string
	workerFixture      string
	workerSessionCheck bool
)

func init() {
	WorkerCmd.Flags().StringVar(&workerSlotsRoot, "slots-root", "", "Slots root directory (overrides config)")
	WorkerCmd.Flags().StringVar(&workerSlotID, "slot", "", "Slot id to run")
	WorkerCmd.Flags().StringVar(&workerRunID, "run-id", "", "Run id (default: random)")
	WorkerCmd.Flags().StringVar(&workerFixture, "fixture", "", "Replay raw leads from a JSONL file instead of scraping")
	WorkerCmd.Flags().BoolVar(&workerSessionCheck, "session-check", false, "Load the configured listing URL before each cycle; an off-host landing reads as LOGIN_REQUIRED")
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	opts := worker.Options{
		SlotsRoot:         firstNonEmpty(workerSlotsRoot, cfg.Slots.Root),
		SlotID:            workerSlotID,
		RunID:             workerRunID,
		APIBase:           cfg.Worker.APIBase,
		WorkerSecret:      cfg.Worker.Secret,
		HeartbeatInterval: time.Duration(cfg.Worker.HeartbeatIntervalSeconds * float64(time.Second)),
		Cooldown:          time.Duration(cfg.Worker.CooldownSeconds * float64(time.Second)),
		LeadsLimit:        cfg.Worker.LeadsLimit,
	}

	if len(args) >= 1 {
		opts.SlotsRoot = args[0]
	}
	if len(args) >= 2 {
		opts.SlotID = args[1]
	}
	if len(args) >= 3 {
		opts.RunID = args[2]
	}
	if len(args) >= 4 {
		opts.APIBase = args[3]
	}
	if len(args) >= 5 {
		opts.WorkerSecret = args[4]
	}
	if len(args) >= 6 && args[5] != "" {
		// Profile path is part of the spawn contract; the built-in sources
		// don't need a browser profile, so it is accepted and logged only.
		logger.Debugw("profile path ignored by built-in sources", "profile_path", args[5])
	}
	if len(args) >= 7 {
		seconds, err := strconv.ParseFloat(args[6], 64)
		if err != nil {
			return errors.Wrapf(err, "parse heartbeat interval %q", args[6])
		}
		opts.HeartbeatInterval = time.Duration(seconds * float64(time.Second))
	}

	if opts.SlotID == "" {
		return errors.New("slot id required (positional arg or --slot)")
	}

	var source worker.Source = worker.StubSource{}
	if workerFixture != "" {
		source = worker.NewFixtureSource(workerFixture)
	}
	if workerSessionCheck {
		if cfg.Worker.ListingURL == "" || cfg.Worker.AuthenticatedHost == "" {
			return errors.New("--session-check needs worker.listing_url and worker.authenticated_host")
		}
		source = worker.NewSessionCheckedSource(source, cfg.Worker.ListingURL, cfg.Worker.AuthenticatedHost)
	}

	w, err := worker.New(opts, source)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return w.Run(ctx)
}
