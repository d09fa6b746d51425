package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	qgotel "github.com/Strob0t/quorumgate/internal/adapter/otel"
	"github.com/Strob0t/quorumgate/internal/domain"
	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/audit"
	"github.com/Strob0t/quorumgate/internal/domain/consensus"
	"github.com/Strob0t/quorumgate/internal/domain/performance"
	"github.com/Strob0t/quorumgate/internal/port/cache"
	"github.com/Strob0t/quorumgate/internal/port/notifier"
	"github.com/Strob0t/quorumgate/internal/port/validator"
	"github.com/Strob0t/quorumgate/internal/resilience"
	"github.com/Strob0t/quorumgate/internal/signing"
)

// Options configures a Coordinator. Signer and Validator are required.
type Options struct {
	Signer    *signing.Signer
	Validator validator.Validator

	Policy            consensus.Policy
	SecurityAuthority string
	SLA               performance.SLA
	MaxParallel       int

	BreakerThreshold int
	BreakerCooldown  time.Duration

	Cache    cache.Cache
	CacheTTL time.Duration

	Notifier   notifier.Notifier
	Remediator Remediator
	Sampler    *Sampler
	Metrics    *qgotel.Metrics
}

// Coordinator owns the state shared by one validation coordinator instance:
// the audit log, the breaker table and the agent registry. Instances are
// fully independent of each other.
type Coordinator struct {
	Log          *audit.Log
	Breakers     *resilience.Registry
	Isolation    *IsolationService
	Consensus    *ConsensusService
	Monitor      *MonitorService
	Orchestrator *OrchestratorService
}

// NewCoordinator wires the four subsystems around a fresh audit log.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Signer == nil {
		return nil, fmt.Errorf("%w: signer is required", domain.ErrConfiguration)
	}
	if opts.Validator == nil {
		return nil, fmt.Errorf("%w: validator is required", domain.ErrConfiguration)
	}
	if opts.SLA == (performance.SLA{}) {
		opts.SLA = performance.DefaultSLA()
	}
	if err := opts.SLA.Validate(); err != nil {
		return nil, fmt.Errorf("%w: sla: %w", domain.ErrConfiguration, err)
	}
	if opts.SecurityAuthority == "" {
		opts.SecurityAuthority = agent.NameSecurity
	}
	if opts.Policy == nil {
		opts.Policy = consensus.PolicyFor(opts.SecurityAuthority)
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: policy: %w", domain.ErrConfiguration, err)
	}
	if err := opts.Policy.CheckAuthority(opts.SecurityAuthority); err != nil {
		return nil, fmt.Errorf("%w: policy: %w", domain.ErrConfiguration, err)
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = 3
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = time.Minute
	}

	log := audit.NewLog()
	metrics := opts.Metrics
	breakers := resilience.NewRegistry(opts.BreakerThreshold, opts.BreakerCooldown,
		resilience.WithStateChange(func(name string, from, to resilience.State) {
			slog.Warn("circuit breaker transition", "operation", name, "from", from.String(), "to", to.String())
			metrics.BreakerTransition(context.Background(), name, from.String(), to.String())
		}),
	)

	iso := NewIsolationService(opts.Signer, log, opts.Validator, opts.MaxParallel)
	iso.SetMetrics(metrics)
	if opts.Cache != nil {
		iso.SetCache(opts.Cache, opts.CacheTTL)
	}

	cons := NewConsensusService(opts.Signer, log, opts.Policy, opts.SecurityAuthority)

	mon := NewMonitorService(opts.Signer, log, breakers, opts.SLA)
	mon.SetMetrics(metrics)
	mon.SetRemediator(CachePurgeRemediator(iso.PurgeCache))
	if opts.Remediator != nil {
		mon.SetRemediator(opts.Remediator)
	}
	if opts.Notifier != nil {
		mon.SetNotifier(opts.Notifier)
	}
	if opts.Sampler != nil {
		opts.Sampler.SetMetrics(metrics)
		mon.SetSampler(opts.Sampler)
	}

	orch := NewOrchestratorService(opts.Signer, log, iso, cons, mon)
	orch.SetMetrics(metrics)

	return &Coordinator{
		Log:          log,
		Breakers:     breakers,
		Isolation:    iso,
		Consensus:    cons,
		Monitor:      mon,
		Orchestrator: orch,
	}, nil
}

// RegisterAll registers every descriptor, stopping at the first failure.
func (c *Coordinator) RegisterAll(ctx context.Context, roster []agent.Descriptor) error {
	for i := range roster {
		if _, err := c.Isolation.Register(ctx, roster[i]); err != nil {
			return err
		}
	}
	return nil
}
