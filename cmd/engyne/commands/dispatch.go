package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/engyne/engyne/config"
	"github.com/engyne/engyne/dispatch"
	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/llm"
)

// DispatchCmd runs one channel dispatcher process.
var DispatchCmd = &cobra.Command{
	Use:   "dispatch <channel>",
	Short: "Drain one channel delivery queue",
	Long: `Poll a channel queue from its persisted offset and deliver each
record to the channel webhook, journaling every attempt. One dispatcher
process owns one channel.

Channels: ` + strings.Join(dispatch.Channels, ", "),
	Args: cobra.ExactArgs(1),
	RunE: runDispatch,
}

var (
	dispatchDryRun        bool
	dispatchDryRunAdvance bool
)

func init() {
	DispatchCmd.Flags().BoolVar(&dispatchDryRun, "dry-run", false, "Hold or skip records instead of delivering")
	DispatchCmd.Flags().BoolVar(&dispatchDryRunAdvance, "dry-run-advance", false, "In dry run, mark records skipped and advance")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	channel := strings.ToLower(args[0])
	if !dispatch.ValidChannel(channel) {
		return errors.Newf("unknown channel %q (use one of: %s)", channel, strings.Join(dispatch.Channels, ", "))
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	webhookURL, webhookSecret := config.ChannelWebhook(channel)
	settings := dispatch.Settings{
		Channel:       channel,
		RuntimeRoot:   cfg.Slots.RuntimeRoot,
		PollSeconds:   cfg.Dispatcher.PollSeconds,
		RatePerMinute: cfg.Dispatcher.RatePerMinute,
		DryRun:        cfg.Dispatcher.DryRun || dispatchDryRun,
		DryRunAdvance: cfg.Dispatcher.DryRunAdvance || dispatchDryRunAdvance,
		WebhookURL:    webhookURL,
		WebhookSecret: webhookSecret,
	}

	d, err := dispatch.New(settings)
	if err != nil {
		return err
	}
	if cfg.Ollama.Enabled {
		d.SetDrafter(llm.NewGenerator(cfg.Ollama))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.DryRun {
		pterm.Warning.Printf("Dispatching %s in dry run\n", channel)
	} else {
		pterm.Info.Printf("Dispatching %s\n", channel)
	}
	return d.Run(ctx)
}
