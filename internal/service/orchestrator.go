package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	qgotel "github.com/Strob0t/quorumgate/internal/adapter/otel"
	"github.com/Strob0t/quorumgate/internal/domain"
	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/audit"
	"github.com/Strob0t/quorumgate/internal/domain/consensus"
	"github.com/Strob0t/quorumgate/internal/domain/orchestration"
	"github.com/Strob0t/quorumgate/internal/domain/performance"
	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
	"github.com/Strob0t/quorumgate/internal/logger"
	"github.com/Strob0t/quorumgate/internal/signing"
)

const orchestratorAgent = "validation-orchestrator"

// OrchestratorService runs the three-phase validation pipeline: the
// architecture review, the parallel domain reviews and the consensus phase,
// each behind its own circuit breaker.
type OrchestratorService struct {
	isolation *IsolationService
	consensus *ConsensusService
	monitor   *MonitorService
	log       *audit.Log
	audit     *auditor
	metrics   *qgotel.Metrics
}

// NewOrchestratorService creates an OrchestratorService.
func NewOrchestratorService(signer *signing.Signer, log *audit.Log, iso *IsolationService, cons *ConsensusService, mon *MonitorService) *OrchestratorService {
	return &OrchestratorService{
		isolation: iso,
		consensus: cons,
		monitor:   mon,
		log:       log,
		audit:     &auditor{log: log, signer: signer},
	}
}

// SetMetrics enables metric recording.
func (s *OrchestratorService) SetMetrics(m *qgotel.Metrics) { s.metrics = m }

// SelectDomainAgents resolves the phase-2 agents for req to registered ids,
// in selection order.
func (s *OrchestratorService) SelectDomainAgents(req *orchestration.Request) ([]string, []string, error) {
	names := orchestration.SelectDomainAgents(req, s.consensus.Authority())
	ids := make([]string, 0, len(names))
	for _, n := range names {
		id, ok := s.isolation.AgentID(n)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrAgentNotRegistered, n)
		}
		ids = append(ids, id)
	}
	return names, ids, nil
}

// Orchestrate validates one change end to end. A rejection is returned as a
// normal result; an error means no decision could be reached.
func (s *OrchestratorService) Orchestrate(ctx context.Context, req orchestration.Request) (*orchestration.Result, error) {
	if !task.ValidChangeType(req.Task.ChangeType) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownChangeType, req.Task.ChangeType)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	archID, ok := s.isolation.AgentID(agent.NameArchitecture)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAgentNotRegistered, agent.NameArchitecture)
	}
	domainNames, domainIDs, err := s.SelectDomainAgents(&req)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	t := req.Task.Clone()
	if t.ID == "" {
		t.ID = runID
	}

	ctx, span := qgotel.StartRunSpan(ctx, runID, t.ID, string(t.ChangeType))
	s.metrics.RunStarted(ctx, string(t.ChangeType))
	start := time.Now()

	slog.InfoContext(ctx, "orchestration started",
		"task_id", t.ID,
		"change_type", t.ChangeType,
		"domain_agents", domainNames,
	)

	res, err := s.run(ctx, runID, t, &req, archID, domainIDs, start)
	if err != nil {
		slog.ErrorContext(ctx, "orchestration failed", "task_id", t.ID, "error", err)
		s.metrics.RunFinished(ctx, false, err)
		qgotel.EndSpan(span, err)
		return nil, err
	}

	s.metrics.RunFinished(ctx, res.Approved, nil)
	qgotel.EndSpan(span, nil)
	slog.InfoContext(ctx, "orchestration completed",
		"task_id", t.ID,
		"approved", res.Approved,
		"sla_compliant", res.SLACompliant,
		"duration_ms", res.ProcessingTime.Milliseconds(),
	)
	return res, nil
}

func (s *OrchestratorService) run(ctx context.Context, runID string, t task.Task, req *orchestration.Request, archID string, domainIDs []string, start time.Time) (*orchestration.Result, error) {
	scope := s.isolation.OptimizeContext(req.FullContext, req.ChangedFiles)

	arch, err := Guard(ctx, s.monitor, orchestration.OpArchitecture, func(ctx context.Context) (*validation.Result, error) {
		return s.isolation.ExecuteValidation(ctx, archID, t, scope)
	})
	if err != nil {
		return nil, err
	}

	var framework performance.FrameworkMetrics
	reviews, err := Guard(ctx, s.monitor, orchestration.OpDomain, func(ctx context.Context) ([]validation.Result, error) {
		results, fm, err := s.isolation.executeParallel(ctx, domainIDs, t, scope)
		framework = fm
		return results, err
	})
	if err != nil {
		return nil, err
	}

	all := make([]validation.Result, 0, len(reviews)+1)
	all = append(all, *arch)
	all = append(all, reviews...)
	cons, err := Guard(ctx, s.monitor, orchestration.OpConsensus, func(ctx context.Context) (*consensus.Result, error) {
		return s.consensus.ValidateConsensus(ctx, all, t.ChangeType)
	})
	if err != nil {
		return nil, err
	}

	pipeline := performance.Pipeline{
		Architecture:     *arch,
		DomainReviews:    reviews,
		Resolutions:      cons.ConflictResolutions,
		FrameworkMetrics: framework,
		FinalConsensus:   cons,
	}
	metrics := s.monitor.Monitor(ctx, &pipeline, start)
	sla := s.monitor.SLA()
	recs := orchestration.Recommendations(cons, metrics, &sla)
	elapsed := time.Since(start)

	s.audit.record(ctx, audit.ActionOrchestrationComplete, orchestratorAgent, audit.OutcomeOf(cons.Approved), cons.Signature, map[string]any{
		"task_id":        t.ID,
		"change_type":    string(t.ChangeType),
		"approved":       cons.Approved,
		"sla_compliant":  metrics.SLACompliant,
		"domain_reviews": len(reviews),
		"processing_ms":  elapsed.Milliseconds(),
	})
	pipeline.AuditTrail = s.log.ByRun(runID)

	return &orchestration.Result{
		RunID:             runID,
		Approved:          cons.Approved,
		Pipeline:          pipeline,
		Consensus:         *cons,
		Metrics:           *metrics,
		Recommendations:   recs,
		SecurityDecisions: cons.SecurityDecisions,
		ProcessingTime:    elapsed,
		SLACompliant:      metrics.SLACompliant,
	}, nil
}
