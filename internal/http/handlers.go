package http

import (
	"context"
	"net/http"
	"time"

	"payoff/internal/core"
	"payoff/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the store and reports optional dependencies
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]string{}

	if err := s.planner.Ready(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		checks["storage"] = "failed: " + err.Error()
		status = "not_ready"
		code = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	if s.planner.AsyncEnabled() {
		checks["async"] = "enabled"
	} else {
		checks["async"] = "disabled"
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleListDebts(w http.ResponseWriter, r *http.Request) {
	debts, err := s.planner.ListDebts(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"debts": debts}).Write(w)
}

func (s *Server) handleGetDebt(w http.ResponseWriter, r *http.Request) {
	d, err := s.planner.GetDebt(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(d).Write(w)
}

// handleSaveDebt creates a debt or replaces the one with the same id
func (s *Server) handleSaveDebt(w http.ResponseWriter, r *http.Request) {
	var d core.Debt
	if err := DecodeJSON(w, r, s.maxBodyBytes, &d); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	d = sanitizeDebt(d)

	if err := s.planner.SaveDebt(r.Context(), d); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Body(d).Write(w)
}

func (s *Server) handleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.DeleteDebt(r.Context(), pathID(r)); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := DecodeJSON(w, r, s.maxBodyBytes, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	req.normalize()

	out, err := s.planner.Simulate(r.Context(), req.Debts, req.Strategy)
	if err != nil {
		writeError(w, r, log.OpSimulate, err)
		return
	}

	s.access.LogSimulationServed(r.Context(), log.OpSimulate,
		out.Method.String(), out.ExtraPayment.String(), len(out.Results),
		out.Aggregate.TotalMonthsToPayoff, out.Aggregate.TotalInterestPaid.String(), out.HitCeiling)
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := DecodeJSON(w, r, s.maxBodyBytes, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	req.normalize()

	cmp, err := s.planner.Compare(r.Context(), req.Debts, req.ExtraPayment, req.Methods...)
	if err != nil {
		writeError(w, r, log.OpCompare, err)
		return
	}

	if best, ok := cmp.Outputs[cmp.Best]; ok {
		s.access.LogSimulationServed(r.Context(), log.OpCompare,
			best.Method.String(), best.ExtraPayment.String(), len(best.Results),
			best.Aggregate.TotalMonthsToPayoff, best.Aggregate.TotalInterestPaid.String(), best.HitCeiling)
	}
	NewJSONResponse().Body(cmp).Write(w)
}

// handleSubmitRun queues a simulation and answers before it runs
func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := DecodeJSON(w, r, s.maxBodyBytes, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	req.normalize()

	run, err := s.planner.SubmitRun(r.Context(), req.Debts, req.Strategy)
	if err != nil {
		writeError(w, r, log.OpSubmit, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusAccepted).
		Header("Location", "/runs/"+run.ID).
		Body(map[string]any{"runId": run.ID, "status": run.Status}).
		Write(w)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.planner.GetRun(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	if !run.Done() {
		w.Header().Set("Retry-After", "1")
	}
	NewJSONResponse().Body(run).Write(w)
}
