package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	qgotel "github.com/Strob0t/quorumgate/internal/adapter/otel"
	"github.com/Strob0t/quorumgate/internal/domain"
	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/audit"
	"github.com/Strob0t/quorumgate/internal/domain/performance"
	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
	"github.com/Strob0t/quorumgate/internal/port/cache"
	"github.com/Strob0t/quorumgate/internal/port/validator"
	"github.com/Strob0t/quorumgate/internal/signing"
)

const isolationAgent = "agent-isolation-framework"

// IsolationService owns the agent registry. It admits agents after certificate
// checks, signs them, and runs each validation against private copies of the
// task and context, signing and caching every result.
type IsolationService struct {
	signer      *signing.Signer
	audit       *auditor
	validator   validator.Validator
	reducer     validation.Reducer
	maxParallel int

	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *qgotel.Metrics

	mu     sync.RWMutex
	agents map[string]*agent.Registered // by id
	byName map[string]string

	fwMu      sync.Mutex
	framework performance.FrameworkMetrics

	now func() time.Time
}

// NewIsolationService creates an IsolationService. maxParallel bounds the
// phase-2 fan-out; values below one mean unbounded.
func NewIsolationService(signer *signing.Signer, log *audit.Log, v validator.Validator, maxParallel int) *IsolationService {
	return &IsolationService{
		signer:      signer,
		audit:       &auditor{log: log, signer: signer},
		validator:   v,
		reducer:     validation.PathHeuristic{},
		maxParallel: maxParallel,
		agents:      make(map[string]*agent.Registered),
		byName:      make(map[string]string),
		now:         time.Now,
	}
}

// SetCache enables result caching.
func (s *IsolationService) SetCache(c cache.Cache, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

// SetMetrics enables metric recording.
func (s *IsolationService) SetMetrics(m *qgotel.Metrics) { s.metrics = m }

// SetReducer swaps the context reduction strategy.
func (s *IsolationService) SetReducer(r validation.Reducer) { s.reducer = r }

// Register admits an agent and returns its stable id. Registering the same
// descriptor twice returns the same id.
func (s *IsolationService) Register(ctx context.Context, d agent.Descriptor) (string, error) {
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("%w: agent descriptor: %w", domain.ErrInvalidRequest, err)
	}
	if err := agent.ValidateCertificate(&d); err != nil {
		s.audit.record(ctx, audit.ActionAgentRegistered, d.Name, audit.OutcomeFailure, "", map[string]any{
			"trust_level": string(d.TrustLevel),
			"error":       err.Error(),
		})
		return "", fmt.Errorf("%w: %s: %w", domain.ErrCertificate, d.Name, err)
	}

	d = d.Clone()
	id := agent.DeriveID(&d)

	s.mu.Lock()
	if _, ok := s.agents[id]; ok {
		s.mu.Unlock()
		return id, nil
	}
	if other, ok := s.byName[d.Name]; ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: agent name %q already registered with id %s", domain.ErrInvalidRequest, d.Name, other)
	}
	reg := &agent.Registered{
		ID:           id,
		Descriptor:   d,
		Signature:    s.signer.SignBytes(d.Canonical()),
		RegisteredAt: s.now().UTC(),
	}
	s.agents[id] = reg
	s.byName[d.Name] = id
	s.mu.Unlock()

	s.audit.record(ctx, audit.ActionAgentRegistered, d.Name, audit.OutcomeSuccess, reg.Signature, map[string]any{
		"agent_id":     id,
		"version":      d.Version,
		"trust_level":  string(d.TrustLevel),
		"capabilities": d.Capabilities,
	})
	slog.InfoContext(ctx, "agent registered", "agent", d.Name, "agent_id", id, "trust_level", d.TrustLevel)
	return id, nil
}

// ExecuteValidation runs one agent against a task. The agent's stored signature
// is re-verified first. Validator errors are returned unchanged; a validator
// panic is returned as an error.
func (s *IsolationService) ExecuteValidation(ctx context.Context, id string, t task.Task, scope validation.ContextScope) (*validation.Result, error) {
	s.mu.RLock()
	reg, ok := s.agents[id]
	var snapshot agent.Registered
	if ok {
		snapshot = *reg
		snapshot.Descriptor = reg.Descriptor.Clone()
	}
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAgentNotRegistered, id)
	}

	name := snapshot.Descriptor.Name
	if !s.signer.VerifyBytes(snapshot.Descriptor.Canonical(), snapshot.Signature) {
		s.audit.record(ctx, audit.ActionValidationFailed, name, audit.OutcomeFailure, "", map[string]any{
			"agent_id": id,
			"error":    "agent signature mismatch",
		})
		return nil, fmt.Errorf("%w: agent %s (%s)", domain.ErrSignature, name, id)
	}

	ctx, span := qgotel.StartValidationSpan(ctx, id, name)
	start := time.Now()
	verdict, err := s.invoke(ctx, snapshot.Descriptor, t.Clone(), scope.Clone())
	elapsed := time.Since(start)
	if err == nil {
		err = checkVerdict(&verdict)
	}
	if err != nil {
		s.audit.record(ctx, audit.ActionValidationFailed, name, audit.OutcomeFailure, "", map[string]any{
			"agent_id":      id,
			"task_id":       t.ID,
			"processing_ms": elapsed.Milliseconds(),
			"error":         err.Error(),
		})
		s.metrics.Validation(ctx, name, "ERROR", elapsed)
		qgotel.EndSpan(span, err)
		slog.ErrorContext(ctx, "validation failed", "agent", name, "error", err)
		return nil, err
	}

	res := &validation.Result{
		AgentID:         id,
		Agent:           snapshot.Descriptor,
		Status:          verdict.Status,
		Score:           verdict.Score,
		Recommendations: verdict.Recommendations,
		Conflicts:       verdict.Conflicts,
		Rationale:       verdict.Rationale,
		ProcessingTime:  elapsed,
		ContextScope:    scope.Clone(),
		Timestamp:       s.now().UTC(),
	}
	if res.Recommendations == nil {
		res.Recommendations = []string{}
	}
	res.Signature = s.signer.Sign(res.Payload())

	s.store(ctx, res, t.ID)

	s.audit.record(ctx, audit.ActionValidationCompleted, name, audit.OutcomeSuccess, res.Signature, map[string]any{
		"agent_id":      id,
		"task_id":       t.ID,
		"status":        string(res.Status),
		"score":         res.ScoreOrZero(),
		"processing_ms": elapsed.Milliseconds(),
	})
	s.metrics.Validation(ctx, name, string(res.Status), elapsed)
	qgotel.EndSpan(span, nil)
	return res, nil
}

// invoke calls the validator, converting a panic into an error.
func (s *IsolationService) invoke(ctx context.Context, d agent.Descriptor, t task.Task, scope validation.ContextScope) (v validation.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validator panic: %v", r)
		}
	}()
	return s.validator.Validate(ctx, d, t, scope)
}

func checkVerdict(v *validation.Verdict) error {
	if !validation.ValidStatus(v.Status) {
		return fmt.Errorf("validator returned invalid status %q", v.Status)
	}
	if v.Score != nil && (*v.Score < 0 || *v.Score > validation.MaxScore) {
		return fmt.Errorf("validator returned score %v outside 0-%v", *v.Score, validation.MaxScore)
	}
	return nil
}

// CacheKey returns the cache key of an agent's result for a task.
func CacheKey(agentID, taskID string) string {
	return "validation:" + agentID + ":" + taskID
}

func (s *IsolationService) store(ctx context.Context, res *validation.Result, taskID string) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		slog.WarnContext(ctx, "encode result for cache", "agent_id", res.AgentID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, CacheKey(res.AgentID, taskID), data, s.cacheTTL); err != nil {
		slog.WarnContext(ctx, "cache result", "agent_id", res.AgentID, "error", err)
	}
}

// CachedResult returns the last result an agent produced for a task, if still cached.
func (s *IsolationService) CachedResult(ctx context.Context, agentID, taskID string) (*validation.Result, bool, error) {
	if s.cache == nil {
		return nil, false, nil
	}
	data, ok, err := s.cache.Get(ctx, CacheKey(agentID, taskID))
	if err != nil || !ok {
		return nil, false, err
	}
	var res validation.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	return &res, true, nil
}

// PurgeCache drops every cached result.
func (s *IsolationService) PurgeCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

// ExecuteParallel runs several agents concurrently over the same task and scope.
// Results are returned in the order of ids. The first failure cancels the
// remaining agents and is returned.
func (s *IsolationService) ExecuteParallel(ctx context.Context, ids []string, t task.Task, scope validation.ContextScope) ([]validation.Result, error) {
	results, _, err := s.executeParallel(ctx, ids, t, scope)
	return results, err
}

// executeParallel is ExecuteParallel that also returns the fan-out
// measurements of this call.
func (s *IsolationService) executeParallel(ctx context.Context, ids []string, t task.Task, scope validation.ContextScope) ([]validation.Result, performance.FrameworkMetrics, error) {
	results := make([]validation.Result, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	if s.maxParallel > 0 {
		g.SetLimit(s.maxParallel)
	}

	start := time.Now()
	for i, id := range ids {
		g.Go(func() error {
			r, err := s.ExecuteValidation(gctx, id, t, scope)
			if err != nil {
				return err
			}
			results[i] = *r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, performance.FrameworkMetrics{}, err
	}
	wall := time.Since(start)

	var sequential time.Duration
	for i := range results {
		sequential += results[i].ProcessingTime
	}
	fm := performance.FrameworkMetrics{
		WallTime:              wall,
		SequentialTime:        sequential,
		ParallelismEfficiency: frameworkEfficiency(sequential, wall),
	}
	s.fwMu.Lock()
	s.framework = fm
	s.fwMu.Unlock()

	slog.DebugContext(ctx, "parallel validation complete",
		"agents", len(ids), "wall_ms", wall.Milliseconds(), "efficiency", fm.ParallelismEfficiency)
	return results, fm, nil
}

// frameworkEfficiency compares summed agent time with the observed wall time.
func frameworkEfficiency(sequential, wall time.Duration) float64 {
	if sequential <= 0 {
		return 0
	}
	e := float64(sequential-wall) / float64(sequential) * 100
	if e < 0 {
		return 0
	}
	return e
}

// FrameworkMetrics returns the measurements of the most recent parallel fan-out
// of any run. Per-run values are carried in each run's pipeline.
func (s *IsolationService) FrameworkMetrics() performance.FrameworkMetrics {
	s.fwMu.Lock()
	defer s.fwMu.Unlock()
	return s.framework
}

// OptimizeContext reduces the full file universe to the part a change touches.
func (s *IsolationService) OptimizeContext(full, changed []string) validation.ContextScope {
	return s.reducer.Reduce(full, changed)
}

// AgentID returns the id registered under name.
func (s *IsolationService) AgentID(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[name]
	return id, ok
}

// Agents returns every registered agent sorted by name.
func (s *IsolationService) Agents() []agent.Registered {
	s.mu.RLock()
	out := make([]agent.Registered, 0, len(s.agents))
	for _, r := range s.agents {
		c := *r
		c.Descriptor = r.Descriptor.Clone()
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Descriptor.Name < out[j].Descriptor.Name })
	return out
}
