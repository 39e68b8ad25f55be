// Package config holds the node-level configuration for engyne processes.
//
// Configuration is resolved by viper from (lowest to highest precedence):
// built-in defaults, /etc/engyne/engyne.toml, ~/.engyne/engyne.toml, an
// engyne.toml found by walking up from the working directory, and finally
// environment variables. Slot-level configuration (slot_config.yml) is a
// separate wire contract owned by package slotfs.
package config

// Config is the root configuration shared by all engyne subcommands.
type Config struct {
	Slots      SlotsConfig      `mapstructure:"slots"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Sink       SinkConfig       `mapstructure:"sink"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Ollama     OllamaConfig     `mapstructure:"ollama"`
}

// SlotsConfig locates the on-disk slot tree and runtime root.
type SlotsConfig struct {
	Root        string `mapstructure:"root"`         // slots root directory
	RuntimeRoot string `mapstructure:"runtime_root"` // queue + journal directory
	ProfileRoot string `mapstructure:"profile_root"` // browser profile directories
}

// SupervisorConfig tunes the slot supervisor loop.
type SupervisorConfig struct {
	HeartbeatTTLSeconds       int    `mapstructure:"heartbeat_ttl_seconds"`        // stale threshold (default: 30)
	ScanIntervalSeconds       int    `mapstructure:"scan_interval_seconds"`        // tick period (default: 3)
	MinRestartIntervalSeconds int    `mapstructure:"min_restart_interval_seconds"` // anti-churn floor (default: 5)
	AlertsMinSeconds          int    `mapstructure:"alerts_min_seconds"`           // same-reason alert spacing (default: 300)
	WorkerCommand             string `mapstructure:"worker_command"`               // shell-quoted argv prefix; empty = re-invoke this binary
	WatchSlotsRoot            bool   `mapstructure:"watch_slots_root"`             // fsnotify pickup of new slot dirs between scans
}

// WorkerConfig tunes the per-slot worker process.
type WorkerConfig struct {
	APIBase                  string  `mapstructure:"api_base"`                   // verified event sink base URL
	Secret                   string  `mapstructure:"secret"`                     // shared worker secret (ENGYNE_WORKER_SECRET)
	HeartbeatIntervalSeconds float64 `mapstructure:"heartbeat_interval_seconds"` // default: 2
	CooldownSeconds          float64 `mapstructure:"cooldown_seconds"`           // inter-cycle floor (default: 2)
	LeadsLimit               int     `mapstructure:"leads_limit"`                // fallback max_leads_per_cycle (default: 10)
	ListingURL               string  `mapstructure:"listing_url"`                // source listing page
	AuthenticatedHost        string  `mapstructure:"authenticated_host"`         // host that proves an authenticated session
}

// SinkConfig tunes the verified event sink.
type SinkConfig struct {
	Listen             string  `mapstructure:"listen"`               // bind address (default: :8001)
	WorkerSecret       string  `mapstructure:"worker_secret"`        // shared worker secret (ENGYNE_WORKER_SECRET)
	OutboundWebhookURL string  `mapstructure:"outbound_webhook_url"` // optional fire-and-forget copy of accepted events
	OutboundRatePerSec float64 `mapstructure:"outbound_rate_per_sec"`
}

// DispatcherConfig tunes a channel dispatcher process. The exact environment
// variable names are part of the process contract and bound in load.go.
type DispatcherConfig struct {
	PollSeconds   float64 `mapstructure:"poll_seconds"`    // DISPATCHER_POLL_SECONDS (default: 2)
	RatePerMinute int     `mapstructure:"rate_per_minute"` // DISPATCHER_RATE_PER_MINUTE (default: 6)
	DryRun        bool    `mapstructure:"dry_run"`         // DISPATCHER_DRY_RUN (default: true)
	DryRunAdvance bool    `mapstructure:"dry_run_advance"` // DISPATCHER_DRY_RUN_ADVANCE (default: false)
}

// AlertsConfig configures the operator alert webhook.
type AlertsConfig struct {
	SlackWebhookURL string `mapstructure:"slack_webhook_url"` // ALERTS_SLACK_WEBHOOK_URL
}

// OllamaConfig configures optional local-LLM message drafting for delivery
// payloads. Any failure in this path degrades to "no message".
type OllamaConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	BaseURL        string  `mapstructure:"base_url"` // default: http://localhost:11434
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds float64 `mapstructure:"timeout_seconds"`
	MaxChars       int     `mapstructure:"max_chars"`
	Channels       string  `mapstructure:"channels"` // comma-separated allowlist; empty = all channels
	SystemPrompt   string  `mapstructure:"system_prompt"`
	PromptTemplate string  `mapstructure:"prompt_template"` // {details} substituted
}
