// Package config provides hierarchical configuration loading for quorumgate.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the validation coordinator.
type Config struct {
	Server       Server       `yaml:"server"`
	Logging      Logging      `yaml:"logging"`
	Signing      Signing      `yaml:"signing"`
	Breaker      Breaker      `yaml:"breaker"`
	SLA          SLA          `yaml:"sla"`
	Sampler      Sampler      `yaml:"sampler"`
	Cache        Cache        `yaml:"cache"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
	NATS         NATS         `yaml:"nats"`
	Alerts       Alerts       `yaml:"alerts"`
	LLM          LLM          `yaml:"llm"`
	OTEL         OTEL         `yaml:"otel"`
}

// Server holds HTTP gate configuration.
type Server struct {
	Port         string        `yaml:"port"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	// RateLimit is the sustained validation requests per second per client; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level        string `yaml:"level"`
	Service      string `yaml:"service"`
	Async        bool   `yaml:"async"`
	AsyncBuffer  int    `yaml:"async_buffer"`
	AsyncWorkers int    `yaml:"async_workers"`
}

// Signing names where the agent signing secret comes from. The secret itself is
// never stored in config files.
type Signing struct {
	SecretEnv string `yaml:"secret_env"`
}

// Breaker holds circuit breaker configuration shared by every operation.
type Breaker struct {
	Threshold int           `yaml:"threshold"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// SLA holds the performance thresholds of one run.
type SLA struct {
	MaxValidationTime        time.Duration `yaml:"max_validation_time"`
	MaxMemoryMB              int           `yaml:"max_memory_mb"`
	MinContextOptimization   float64       `yaml:"min_context_optimization"`
	MinParallelismEfficiency float64       `yaml:"min_parallelism_efficiency"`
}

// Sampler holds background resource sampling configuration.
type Sampler struct {
	Interval time.Duration `yaml:"interval"`
	Capacity int           `yaml:"capacity"`
}

// Cache holds validation result cache configuration.
type Cache struct {
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	TTL         time.Duration `yaml:"ttl"`
}

// Orchestrator holds pipeline configuration.
type Orchestrator struct {
	MaxParallel       int    `yaml:"max_parallel"`       // Max concurrent domain agents (default: 8)
	SecurityAuthority string `yaml:"security_authority"` // Agent whose decisions are final (default: security-validator)
	AgentsFile        string `yaml:"agents_file"`        // Optional roster override
	PolicyFile        string `yaml:"policy_file"`        // Optional consensus policy override
	VerdictsFile      string `yaml:"verdicts_file"`      // Scripted verdicts; empty selects the heuristic validator
}

// NATS holds alert fan-out and shared cache configuration. An empty URL
// disables both.
type NATS struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	ResultBucket  string `yaml:"result_bucket"` // JetStream KV bucket; empty keeps the cache process-local
}

// Alerts names the env vars holding chat webhook URLs for performance alerts.
// An unset variable disables that destination.
type Alerts struct {
	SlackWebhookEnv   string        `yaml:"slack_webhook_env"`
	DiscordWebhookEnv string        `yaml:"discord_webhook_env"`
	Timeout           time.Duration `yaml:"timeout"`
}

// LLM configures the model-backed validator. An empty BaseURL keeps the
// heuristic validator.
type LLM struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
	// MaxConcurrent caps completions in flight across all runs.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// OTEL holds OpenTelemetry export configuration.
type OTEL struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:         "8080",
			MaxBodyBytes: 1 << 20,
			ReadTimeout:  30 * time.Second,
			RateLimit:    5,
			RateBurst:    10,
		},
		Logging: Logging{
			Level:        "info",
			Service:      "quorumgate",
			AsyncBuffer:  1024,
			AsyncWorkers: 2,
		},
		Signing: Signing{
			SecretEnv: "AGENT_SECRET_KEY",
		},
		Breaker: Breaker{
			Threshold: 3,
			Cooldown:  time.Minute,
		},
		SLA: SLA{
			MaxValidationTime:        2 * time.Minute,
			MaxMemoryMB:              200,
			MinContextOptimization:   80,
			MinParallelismEfficiency: 30,
		},
		Sampler: Sampler{
			Interval: 10 * time.Second,
			Capacity: 100,
		},
		Cache: Cache{
			L1MaxSizeMB: 32,
			TTL:         time.Hour,
		},
		Orchestrator: Orchestrator{
			MaxParallel:       8,
			SecurityAuthority: "security-validator",
		},
		NATS: NATS{
			SubjectPrefix: "quorumgate.alerts",
			ResultBucket:  "quorumgate_results",
		},
		Alerts: Alerts{
			SlackWebhookEnv:   "QUORUMGATE_SLACK_WEBHOOK_URL",
			DiscordWebhookEnv: "QUORUMGATE_DISCORD_WEBHOOK_URL",
			Timeout:           5 * time.Second,
		},
		LLM: LLM{
			Model:         "gpt-4o",
			APIKeyEnv:     "LITELLM_API_KEY",
			Timeout:       60 * time.Second,
			MaxConcurrent: 4,
		},
		OTEL: OTEL{
			Endpoint:    "localhost:4317",
			ServiceName: "quorumgate",
			Insecure:    true,
			SampleRate:  1.0,
		},
	}
}
