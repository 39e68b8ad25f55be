package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultDirPermissions is used when creating engyne-owned directories.
const DefaultDirPermissions = 0o755

// SetDefaults registers built-in defaults on a viper instance.
func SetDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".engyne")

	v.SetDefault("slots.root", filepath.Join(base, "slots"))
	v.SetDefault("slots.runtime_root", filepath.Join(base, "runtime"))
	v.SetDefault("slots.profile_root", filepath.Join(base, "profiles"))

	v.SetDefault("supervisor.heartbeat_ttl_seconds", 30)
	v.SetDefault("supervisor.scan_interval_seconds", 3)
	v.SetDefault("supervisor.min_restart_interval_seconds", 5)
	v.SetDefault("supervisor.alerts_min_seconds", 300)
	v.SetDefault("supervisor.worker_command", "")
	v.SetDefault("supervisor.watch_slots_root", true)

	v.SetDefault("worker.api_base", "http://localhost:8001")
	v.SetDefault("worker.heartbeat_interval_seconds", 2.0)
	v.SetDefault("worker.cooldown_seconds", 2.0)
	v.SetDefault("worker.leads_limit", 10)
	v.SetDefault("worker.listing_url", "https://seller.indiamart.com/bltxn/?pref=recent")
	v.SetDefault("worker.authenticated_host", "seller.indiamart.com")

	v.SetDefault("sink.listen", ":8001")
	v.SetDefault("sink.outbound_rate_per_sec", 5.0)

	v.SetDefault("dispatcher.poll_seconds", 2.0)
	v.SetDefault("dispatcher.rate_per_minute", 6)
	v.SetDefault("dispatcher.dry_run", true)
	v.SetDefault("dispatcher.dry_run_advance", false)

	v.SetDefault("ollama.enabled", false)
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.1")
	v.SetDefault("ollama.temperature", 0.4)
	v.SetDefault("ollama.timeout_seconds", 12.0)
	v.SetDefault("ollama.max_chars", 480)
	v.SetDefault("ollama.system_prompt",
		"You are a concise, professional sales representative. Use only the provided facts.")
	v.SetDefault("ollama.prompt_template",
		"Write a short WhatsApp-style message (2-4 lines). Do not invent facts. Use only these details:\n{details}")
}

// BindContractEnvVars binds the environment variable names that are part of
// the external process contracts (dispatcher, sink, alerts, ollama). These
// names predate the ENGYNE_ prefix convention and must keep working.
func BindContractEnvVars(v *viper.Viper) {
	v.BindEnv("worker.secret", "ENGYNE_WORKER_SECRET")
	v.BindEnv("sink.worker_secret", "ENGYNE_WORKER_SECRET")

	v.BindEnv("dispatcher.poll_seconds", "DISPATCHER_POLL_SECONDS")
	v.BindEnv("dispatcher.rate_per_minute", "DISPATCHER_RATE_PER_MINUTE")
	v.BindEnv("dispatcher.dry_run", "DISPATCHER_DRY_RUN")
	v.BindEnv("dispatcher.dry_run_advance", "DISPATCHER_DRY_RUN_ADVANCE")

	v.BindEnv("slots.runtime_root", "RUNTIME_ROOT", "ENGYNE_SLOTS_RUNTIME_ROOT")

	v.BindEnv("alerts.slack_webhook_url", "ALERTS_SLACK_WEBHOOK_URL")

	v.BindEnv("ollama.enabled", "OLLAMA_ENABLED")
	v.BindEnv("ollama.base_url", "OLLAMA_BASE_URL")
	v.BindEnv("ollama.model", "OLLAMA_MODEL")
	v.BindEnv("ollama.temperature", "OLLAMA_TEMPERATURE")
	v.BindEnv("ollama.timeout_seconds", "OLLAMA_TIMEOUT_SECONDS")
	v.BindEnv("ollama.max_chars", "OLLAMA_MAX_CHARS")
	v.BindEnv("ollama.channels", "OLLAMA_CHANNELS")
	v.BindEnv("ollama.system_prompt", "OLLAMA_SYSTEM_PROMPT")
	v.BindEnv("ollama.prompt_template", "OLLAMA_PROMPT_TEMPLATE")
}
