package commands

import (
	"encoding/json"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/engyne/engyne/config"
	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/worker"
)

// EmitCmd posts a verified event to the sink by hand. Useful for exercising
// the queue fan-out and dispatchers without a running worker.
var EmitCmd = &cobra.Command{
	Use:   "emit <slot_id> <lead_id>",
	Short: "Post a verified event to the sink by hand",
	Args:  cobra.ExactArgs(2),
	RunE:  runEmit,
}

var (
	emitAPIBase      string
	emitSecret       string
	emitPayload      string
	emitTitle        string
	emitCountry      string
	emitAgeHours     float64
	emitMemberMonths int
	emitWhatsapp     string
	emitPhone        string
	emitEmail        string
	emitMessage      string
)

func init() {
	EmitCmd.Flags().StringVar(&emitAPIBase, "api-base", "", "Sink base URL (overrides config)")
	EmitCmd.Flags().StringVar(&emitSecret, "secret", "", "Worker secret (overrides config)")
	EmitCmd.Flags().StringVar(&emitPayload, "payload", "", "Extra contact payload as a JSON object")
	EmitCmd.Flags().StringVar(&emitTitle, "title", "", "Lead title")
	EmitCmd.Flags().StringVar(&emitCountry, "country", "", "Lead country")
	EmitCmd.Flags().Float64Var(&emitAgeHours, "age-hours", 0, "Lead age in hours")
	EmitCmd.Flags().IntVar(&emitMemberMonths, "member-months", 0, "Buyer tenure in months")
	EmitCmd.Flags().StringVar(&emitWhatsapp, "whatsapp", "", "WhatsApp contact address")
	EmitCmd.Flags().StringVar(&emitPhone, "phone", "", "Phone number")
	EmitCmd.Flags().StringVar(&emitEmail, "email", "", "Email address")
	EmitCmd.Flags().StringVar(&emitMessage, "message", "", "Pre-drafted contact message")
}

func runEmit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	payload := map[string]interface{}{}
	if emitPayload != "" {
		if err := json.Unmarshal([]byte(emitPayload), &payload); err != nil {
			return errors.Wrap(err, "parse --payload")
		}
	}
	putString(payload, "title", emitTitle)
	putString(payload, "country", emitCountry)
	putString(payload, "whatsapp", emitWhatsapp)
	putString(payload, "phone", emitPhone)
	putString(payload, "email", emitEmail)
	putString(payload, "message", emitMessage)
	if emitAgeHours > 0 {
		payload["age_hours"] = emitAgeHours
	}
	if emitMemberMonths > 0 {
		payload["member_months"] = emitMemberMonths
	}

	apiBase := firstNonEmpty(emitAPIBase, cfg.Worker.APIBase)
	if apiBase == "" {
		return errors.New("sink base URL required (--api-base or config)")
	}

	emitter := worker.NewEventEmitter(apiBase, firstNonEmpty(emitSecret, cfg.Worker.Secret))
	emitter.EmitVerified(args[0], args[1], payload)
	pterm.Success.Printf("Emitted verified event %s/%s to %s\n", args[0], args[1], apiBase)
	return nil
}

func putString(payload map[string]interface{}, key, value string) {
	if value != "" {
		payload[key] = value
	}
}
