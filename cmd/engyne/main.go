package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/engyne/engyne/cmd/engyne/commands"
	"github.com/engyne/engyne/logger"
)

var rootCmd = &cobra.Command{
	Use:   "engyne",
	Short: "engyne - per-node lead pipeline",
	Long: `engyne runs the per-node lead pipeline: a slot supervisor that keeps
scraper workers alive, the workers themselves, a verified event sink, and
per-channel dispatchers that drain durable delivery queues.

Available commands:
  supervise - Run the slot supervisor loop
  worker    - Run one slot worker (normally spawned by supervise)
  sink      - Run the verified event sink HTTP server
  dispatch  - Run one channel dispatcher
  slots     - Inspect slot directories
  emit      - Post a verified event to the sink by hand
  version   - Show version information

Examples:
  engyne supervise                # keep one worker per slot directory alive
  engyne sink --listen :8001      # accept verified events from workers
  engyne dispatch whatsapp        # drain the whatsapp delivery queue
  engyne slots ls                 # list slots with liveness`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON where supported")

	rootCmd.AddCommand(commands.SuperviseCmd)
	rootCmd.AddCommand(commands.WorkerCmd)
	rootCmd.AddCommand(commands.SinkCmd)
	rootCmd.AddCommand(commands.DispatchCmd)
	rootCmd.AddCommand(commands.SlotsCmd)
	rootCmd.AddCommand(commands.EmitCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
