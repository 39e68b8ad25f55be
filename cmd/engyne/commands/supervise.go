package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/engyne/engyne/alerts"
	"github.com/engyne/engyne/config"
	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/supervisor"
)

// SuperviseCmd runs the slot supervisor loop.
var SuperviseCmd = &cobra.Command{
	Use:   "supervise",
	Short: "Keep one worker process alive per slot directory",
	Long: `Scan the slots root, spawn a worker per slot directory, and restart
workers whose heartbeat goes stale or whose process dies. Restart alerts go
to the configured Slack webhook, throttled per slot.`,
	RunE: runSupervise,
}

var (
	superviseSlotsRoot     string
	superviseWorkerCommand string
	superviseWatch         bool
)

func init() {
	SuperviseCmd.Flags().StringVar(&superviseSlotsRoot, "slots-root", "", "Slots root directory (overrides config)")
	SuperviseCmd.Flags().StringVar(&superviseWorkerCommand, "worker-command", "", "Shell-quoted worker argv prefix (overrides config)")
	SuperviseCmd.Flags().BoolVar(&superviseWatch, "watch", false, "Pick up new slot directories via fsnotify between scans")
}

func runSupervise(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	settings := supervisor.Settings{
		SlotsRoot:          firstNonEmpty(superviseSlotsRoot, cfg.Slots.Root),
		ProfileRoot:        cfg.Slots.ProfileRoot,
		APIBase:            cfg.Worker.APIBase,
		WorkerSecret:       cfg.Worker.Secret,
		HeartbeatTTL:       time.Duration(cfg.Supervisor.HeartbeatTTLSeconds) * time.Second,
		ScanInterval:       time.Duration(cfg.Supervisor.ScanIntervalSeconds) * time.Second,
		MinRestartInterval: time.Duration(cfg.Supervisor.MinRestartIntervalSeconds) * time.Second,
		AlertsMin:          time.Duration(cfg.Supervisor.AlertsMinSeconds) * time.Second,
		HeartbeatInterval:  time.Duration(cfg.Worker.HeartbeatIntervalSeconds * float64(time.Second)),
		WorkerCommand:      firstNonEmpty(superviseWorkerCommand, cfg.Supervisor.WorkerCommand),
		WatchSlotsRoot:     superviseWatch || cfg.Supervisor.WatchSlotsRoot,
	}

	sup, err := supervisor.New(settings, alerts.NewNotifier(cfg.Alerts.SlackWebhookURL))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pterm.Info.Printf("Supervising slots under %s\n", sup.SlotsRoot())
	return sup.Run(ctx)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
