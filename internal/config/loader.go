package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "quorumgate.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "QUORUMGATE_PORT")
	setInt64(&cfg.Server.MaxBodyBytes, "QUORUMGATE_MAX_BODY_BYTES")
	setDuration(&cfg.Server.ReadTimeout, "QUORUMGATE_READ_TIMEOUT")
	setFloat64(&cfg.Server.RateLimit, "QUORUMGATE_RATE_LIMIT")
	setInt(&cfg.Server.RateBurst, "QUORUMGATE_RATE_BURST")

	setString(&cfg.Logging.Level, "QUORUMGATE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "QUORUMGATE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "QUORUMGATE_LOG_ASYNC")

	setString(&cfg.Signing.SecretEnv, "QUORUMGATE_SECRET_ENV")

	setInt(&cfg.Breaker.Threshold, "QUORUMGATE_BREAKER_THRESHOLD")
	setDuration(&cfg.Breaker.Cooldown, "QUORUMGATE_BREAKER_COOLDOWN")

	setDuration(&cfg.SLA.MaxValidationTime, "QUORUMGATE_SLA_MAX_TIME")
	setInt(&cfg.SLA.MaxMemoryMB, "QUORUMGATE_SLA_MAX_MEMORY_MB")
	setFloat64(&cfg.SLA.MinContextOptimization, "QUORUMGATE_SLA_MIN_CONTEXT_OPTIMIZATION")
	setFloat64(&cfg.SLA.MinParallelismEfficiency, "QUORUMGATE_SLA_MIN_PARALLELISM")

	setDuration(&cfg.Sampler.Interval, "QUORUMGATE_SAMPLER_INTERVAL")
	setInt(&cfg.Sampler.Capacity, "QUORUMGATE_SAMPLER_CAPACITY")

	setInt64(&cfg.Cache.L1MaxSizeMB, "QUORUMGATE_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "QUORUMGATE_CACHE_TTL")

	setInt(&cfg.Orchestrator.MaxParallel, "QUORUMGATE_MAX_PARALLEL")
	setString(&cfg.Orchestrator.SecurityAuthority, "QUORUMGATE_SECURITY_AUTHORITY")
	setString(&cfg.Orchestrator.AgentsFile, "QUORUMGATE_AGENTS_FILE")
	setString(&cfg.Orchestrator.PolicyFile, "QUORUMGATE_POLICY_FILE")
	setString(&cfg.Orchestrator.VerdictsFile, "QUORUMGATE_VERDICTS_FILE")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.SubjectPrefix, "QUORUMGATE_NATS_SUBJECT_PREFIX")
	setString(&cfg.NATS.ResultBucket, "QUORUMGATE_NATS_RESULT_BUCKET")

	setDuration(&cfg.Alerts.Timeout, "QUORUMGATE_ALERT_TIMEOUT")

	setString(&cfg.LLM.BaseURL, "QUORUMGATE_LLM_BASE_URL")
	setString(&cfg.LLM.Model, "QUORUMGATE_LLM_MODEL")
	setDuration(&cfg.LLM.Timeout, "QUORUMGATE_LLM_TIMEOUT")
	setInt(&cfg.LLM.MaxConcurrent, "QUORUMGATE_LLM_MAX_CONCURRENT")

	setBool(&cfg.OTEL.Enabled, "QUORUMGATE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "QUORUMGATE_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "QUORUMGATE_OTEL_SAMPLE_RATE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Server.RateLimit < 0 {
		return errors.New("server.rate_limit must be >= 0")
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst < 1 {
		return errors.New("server.rate_burst must be >= 1 when rate limiting is enabled")
	}
	if cfg.Signing.SecretEnv == "" {
		return errors.New("signing.secret_env is required")
	}
	if cfg.Breaker.Threshold < 1 {
		return errors.New("breaker.threshold must be >= 1")
	}
	if cfg.Breaker.Cooldown <= 0 {
		return errors.New("breaker.cooldown must be positive")
	}
	if cfg.SLA.MaxValidationTime <= 0 {
		return errors.New("sla.max_validation_time must be positive")
	}
	if cfg.SLA.MaxMemoryMB < 1 {
		return errors.New("sla.max_memory_mb must be >= 1")
	}
	if cfg.Sampler.Interval <= 0 {
		return errors.New("sampler.interval must be positive")
	}
	if cfg.Sampler.Capacity < 1 {
		return errors.New("sampler.capacity must be >= 1")
	}
	if cfg.Cache.L1MaxSizeMB < 1 {
		return errors.New("cache.l1_max_size_mb must be >= 1")
	}
	if cfg.Orchestrator.MaxParallel < 1 {
		return errors.New("orchestrator.max_parallel must be >= 1")
	}
	if cfg.Orchestrator.SecurityAuthority == "" {
		return errors.New("orchestrator.security_authority is required")
	}
	if cfg.Alerts.Timeout <= 0 {
		return errors.New("alerts.timeout must be positive")
	}
	if cfg.LLM.BaseURL != "" && cfg.LLM.Model == "" {
		return errors.New("llm.model is required when llm.base_url is set")
	}
	if cfg.OTEL.SampleRate < 0 || cfg.OTEL.SampleRate > 1 {
		return errors.New("otel.sample_rate must be within 0-1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
