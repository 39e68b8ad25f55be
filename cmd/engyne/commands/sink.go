package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/engyne/engyne/config"
	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/sink"
)

// SinkCmd runs the verified event sink HTTP server.
var SinkCmd = &cobra.Command{
	Use:   "sink",
	Short: "Run the verified event sink HTTP server",
	Long: `Accept verified lead events from workers on /events/verified and fan
them out to the durable verified journal and every channel delivery queue.`,
	RunE: runSink,
}

var sinkListen string

func init() {
	SinkCmd.Flags().StringVar(&sinkListen, "listen", "", "Bind address (overrides config)")
}

func runSink(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	queues, err := sink.NewQueues(cfg.Slots.RuntimeRoot)
	if err != nil {
		return err
	}
	server := sink.NewServer(cfg.Sink.WorkerSecret, queues, cfg.Sink.OutboundWebhookURL, cfg.Sink.OutboundRatePerSec)

	addr := firstNonEmpty(sinkListen, cfg.Sink.Listen)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pterm.Info.Printf("Verified event sink on %s\n", addr)
	return server.ListenAndServe(ctx, addr)
}
