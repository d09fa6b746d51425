package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Strob0t/quorumgate/internal/adapter/discord"
	"github.com/Strob0t/quorumgate/internal/adapter/heuristic"
	"github.com/Strob0t/quorumgate/internal/adapter/litellm"
	qgnats "github.com/Strob0t/quorumgate/internal/adapter/nats"
	"github.com/Strob0t/quorumgate/internal/adapter/natskv"
	qgotel "github.com/Strob0t/quorumgate/internal/adapter/otel"
	"github.com/Strob0t/quorumgate/internal/adapter/ristretto"
	"github.com/Strob0t/quorumgate/internal/adapter/scripted"
	"github.com/Strob0t/quorumgate/internal/adapter/slack"
	"github.com/Strob0t/quorumgate/internal/adapter/tiered"
	"github.com/Strob0t/quorumgate/internal/config"
	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/consensus"
	"github.com/Strob0t/quorumgate/internal/domain/performance"
	"github.com/Strob0t/quorumgate/internal/logger"
	"github.com/Strob0t/quorumgate/internal/port/cache"
	"github.com/Strob0t/quorumgate/internal/port/notifier"
	"github.com/Strob0t/quorumgate/internal/port/validator"
	"github.com/Strob0t/quorumgate/internal/secrets"
	"github.com/Strob0t/quorumgate/internal/service"
	"github.com/Strob0t/quorumgate/internal/signing"
)

// app is a fully wired coordinator plus the resources that must be released.
type app struct {
	cfg         *config.Config
	coordinator *service.Coordinator
	sampler     *service.Sampler
	closers     []func(context.Context)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

// buildApp loads configuration and wires every subsystem. verdictsPath, when
// set, overrides the configured scripted verdicts file. Logs go to logOut.
func buildApp(ctx context.Context, configPath, verdictsPath string, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.NewWithWriter(cfg.Logging, logOut)
	slog.SetDefault(log)
	a := &app{cfg: cfg}
	a.closers = append(a.closers, func(context.Context) { logCloser.Close() })

	ok := false
	defer func() {
		if !ok {
			a.Close(ctx)
		}
	}()

	// The signing secret is checked before any agent work begins.
	vault, err := secrets.NewVault(secrets.EnvLoader(
		cfg.Signing.SecretEnv,
		cfg.Alerts.SlackWebhookEnv,
		cfg.Alerts.DiscordWebhookEnv,
		cfg.LLM.APIKeyEnv,
	))
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	secret, err := vault.Require(cfg.Signing.SecretEnv)
	if err != nil {
		return nil, fmt.Errorf("signing secret: %w", err)
	}
	signer, err := signing.NewSigner(secret)
	if err != nil {
		return nil, err
	}
	slog.Info("signing key derived",
		"secret_env", cfg.Signing.SecretEnv,
		"secret", vault.Redacted(cfg.Signing.SecretEnv),
		"secrets_loaded", vault.Keys(),
	)

	shutdownOTEL, err := qgotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}
	a.closers = append(a.closers, func(ctx context.Context) {
		if err := shutdownOTEL(ctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	})
	metrics, err := qgotel.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("otel metrics: %w", err)
	}

	resultCache, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) { resultCache.Close() })

	var (
		alerts      notifier.Fanout
		resultStore cache.Cache = resultCache
	)
	webhookClient := &http.Client{Timeout: cfg.Alerts.Timeout}
	if url := vault.Get(cfg.Alerts.SlackWebhookEnv); url != "" {
		alerts = append(alerts, slack.NewNotifier(url, webhookClient))
	}
	if url := vault.Get(cfg.Alerts.DiscordWebhookEnv); url != "" {
		alerts = append(alerts, discord.NewNotifier(url, webhookClient))
	}
	if cfg.NATS.URL != "" {
		pub, err := qgnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) { _ = pub.Close() })
		alerts = append(alerts, pub)
		slog.Info("publishing alerts to nats", "subject_prefix", cfg.NATS.SubjectPrefix)

		if cfg.NATS.ResultBucket != "" {
			kv, err := pub.ResultBucket(ctx, cfg.NATS.ResultBucket, cfg.Cache.TTL)
			if err != nil {
				return nil, fmt.Errorf("nats: %w", err)
			}
			resultStore = tiered.New(resultCache, natskv.New(kv), cfg.Cache.TTL)
			slog.Info("sharing validation results over nats kv", "bucket", cfg.NATS.ResultBucket)
		}
	}

	var alertSink notifier.Notifier
	if len(alerts) > 0 {
		alertSink = alerts
		slog.Info("alert destinations configured", "count", len(alerts))
	}

	v, err := buildValidator(cfg, vault, verdictsPath)
	if err != nil {
		return nil, err
	}
	policy, err := consensus.LoadPolicy(cfg.Orchestrator.PolicyFile, cfg.Orchestrator.SecurityAuthority)
	if err != nil {
		return nil, err
	}
	roster, err := agent.LoadRoster(cfg.Orchestrator.AgentsFile)
	if err != nil {
		return nil, err
	}

	a.sampler = service.NewSampler(cfg.Sampler.Interval, cfg.Sampler.Capacity)
	coord, err := service.NewCoordinator(service.Options{
		Signer:            signer,
		Validator:         v,
		Policy:            policy,
		SecurityAuthority: cfg.Orchestrator.SecurityAuthority,
		SLA:               slaFrom(cfg.SLA),
		MaxParallel:       cfg.Orchestrator.MaxParallel,
		BreakerThreshold:  cfg.Breaker.Threshold,
		BreakerCooldown:   cfg.Breaker.Cooldown,
		Cache:             resultStore,
		CacheTTL:          cfg.Cache.TTL,
		Notifier:          alertSink,
		Sampler:           a.sampler,
		Metrics:           metrics,
	})
	if err != nil {
		return nil, err
	}
	if err := coord.RegisterAll(ctx, roster); err != nil {
		return nil, fmt.Errorf("register agents: %w", err)
	}
	a.coordinator = coord

	ok = true
	return a, nil
}

func buildValidator(cfg *config.Config, vault *secrets.Vault, verdictsPath string) (validator.Validator, error) {
	if verdictsPath == "" {
		verdictsPath = cfg.Orchestrator.VerdictsFile
	}
	switch {
	case verdictsPath != "":
		v, err := scripted.Load(verdictsPath)
		if err != nil {
			return nil, err
		}
		slog.Info("using scripted verdicts", "path", verdictsPath)
		return v, nil
	case cfg.LLM.BaseURL != "":
		client := litellm.NewClient(cfg.LLM.BaseURL, vault.Get(cfg.LLM.APIKeyEnv), cfg.LLM.Timeout)
		slog.Info("using model-backed validator", "base_url", cfg.LLM.BaseURL, "model", cfg.LLM.Model)
		return litellm.NewValidator(client, cfg.LLM.Model, cfg.LLM.MaxConcurrent), nil
	default:
		return heuristic.Validator{}, nil
	}
}

func slaFrom(c config.SLA) performance.SLA {
	return performance.SLA{
		MaxValidationTime:        c.MaxValidationTime,
		MaxMemoryUsage:           uint64(c.MaxMemoryMB) << 20, //nolint:gosec // validated >= 1
		MinContextOptimization:   c.MinContextOptimization,
		MinParallelismEfficiency: c.MinParallelismEfficiency,
	}
}
