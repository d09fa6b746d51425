package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/quorumgate/internal/domain/orchestration"
	"github.com/Strob0t/quorumgate/internal/service"
)

// Handlers holds the coordinator the HTTP handlers delegate to.
type Handlers struct {
	Coordinator  *service.Coordinator
	MaxBodyBytes int64
}

// SubmitValidation runs the full pipeline for one change. A rejected change is
// a 200 with approved=false; only a failure to decide is an error status.
// The run completes even if the client disconnects.
func (h *Handlers) SubmitValidation(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[orchestration.Request](w, r, h.MaxBodyBytes)
	if !ok {
		return
	}
	res, err := h.Coordinator.Orchestrator.Orchestrate(context.WithoutCancel(r.Context()), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListAudit returns the audit trail, optionally filtered by ?run_id=.
func (h *Handlers) ListAudit(w http.ResponseWriter, r *http.Request) {
	if runID := r.URL.Query().Get("run_id"); runID != "" {
		writeJSON(w, http.StatusOK, nonNil(h.Coordinator.Log.ByRun(runID)))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(h.Coordinator.Log.Entries()))
}

// VerifyAudit recomputes the audit hash chain.
func (h *Handlers) VerifyAudit(w http.ResponseWriter, _ *http.Request) {
	res := h.Coordinator.Log.Verify()
	status := http.StatusOK
	if !res.Valid {
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

// ListBreakers returns the state of every circuit breaker.
func (h *Handlers) ListBreakers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.Coordinator.Monitor.Breakers()))
}

// ListAlerts returns the retained SLA alerts.
func (h *Handlers) ListAlerts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.Coordinator.Monitor.Alerts()))
}

// ListMetrics returns the retained per-run metrics and resource samples.
func (h *Handlers) ListMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":    nonNil(h.Coordinator.Monitor.History()),
		"samples": nonNil(h.Coordinator.Monitor.Samples()),
		"sla":     h.Coordinator.Monitor.SLA(),
	})
}

// ListAgents returns every registered agent.
func (h *Handlers) ListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.Coordinator.Isolation.Agents()))
}

// ListSecurityDecisions returns the append-only security decision ledger.
func (h *Handlers) ListSecurityDecisions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.Coordinator.Consensus.SecurityDecisions()))
}

// Health reports liveness and whether the audit chain is intact.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	v := h.Coordinator.Log.Verify()
	status, code := "ok", http.StatusOK
	if !v.Valid {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":        status,
		"agents":        len(h.Coordinator.Isolation.Agents()),
		"audit_entries": v.Entries,
	})
}

// nonNil makes empty collections encode as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
