package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/heimgewebe/indexd/internal/apperr"
	"github.com/heimgewebe/indexd/internal/forget"
	"github.com/heimgewebe/indexd/internal/ingest"
	"github.com/heimgewebe/indexd/internal/model"
	"github.com/heimgewebe/indexd/internal/retrieval"
)

type handlers struct {
	deps    Deps
	metrics *metrics
}

func (h *handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- upsert ---

type upsertRequest struct {
	DocID     string           `json:"doc_id"`
	Namespace string           `json:"namespace"`
	Chunks    []model.Chunk    `json:"chunks"`
	Meta      map[string]any   `json:"meta"`
	SourceRef *model.SourceRef `json:"source_ref"`
}

func (h *handlers) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorFor(w, apperr.ErrInvalidPayload, err.Error())
		return
	}

	result, err := h.deps.Pipeline.Upsert(ingest.Request{
		DocID:     req.DocID,
		Namespace: req.Namespace,
		Chunks:    req.Chunks,
		Meta:      req.Meta,
		SourceRef: req.SourceRef,
	})
	if err != nil {
		h.metrics.errorsByCode.WithLabelValues(apperr.Code(err)).Inc()
		writeErrorFor(w, err, err.Error())
		return
	}
	h.metrics.upserts.WithLabelValues(result.Namespace).Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"ingested":  result.Ingested,
		"namespace": result.Namespace,
	})
}

// --- search ---

type searchRequest struct {
	Query                string              `json:"query"`
	K                    *int                `json:"k"`
	Namespace            string              `json:"namespace"`
	ExcludeFlags         *[]model.ContentFlag `json:"exclude_flags"`
	MinTrustLevel        *model.TrustLevel   `json:"min_trust_level"`
	ExcludeOrigins       []string            `json:"exclude_origins"`
	ContextProfile       string              `json:"context_profile"`
	IncludeWeights       bool                `json:"include_weights"`
	EmitDecisionSnapshot bool                `json:"emit_decision_snapshot"`
}

func (h *handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorFor(w, apperr.ErrInvalidPayload, err.Error())
		return
	}

	engineReq := retrieval.Request{
		Query:                req.Query,
		K:                    req.K,
		Namespace:            req.Namespace,
		MinTrustLevel:        req.MinTrustLevel,
		ExcludeOrigins:       req.ExcludeOrigins,
		ContextProfile:       req.ContextProfile,
		IncludeWeights:       req.IncludeWeights,
		EmitDecisionSnapshot: req.EmitDecisionSnapshot,
	}
	if req.ExcludeFlags != nil {
		engineReq.ExcludeFlagsSet = true
		engineReq.ExcludeFlags = *req.ExcludeFlags
	}

	resp := h.deps.Engine.Search(engineReq)
	h.metrics.searches.Inc()
	h.metrics.searchHits.Observe(float64(len(resp.Matches)))

	body := map[string]any{
		"matches":    resp.Matches,
		"latency_ms": resp.LatencyMS,
		"budget_ms":  resp.BudgetMS,
	}
	if resp.DecisionID != "" {
		body["decision_id"] = resp.DecisionID
	}
	writeJSON(w, http.StatusOK, body)
}

// --- forget ---

type forgetRequest struct {
	Filter  model.ForgetFilter `json:"filter"`
	Reason  string             `json:"reason"`
	Confirm bool               `json:"confirm"`
	DryRun  bool               `json:"dry_run"`
}

func (h *handlers) handleForget(w http.ResponseWriter, r *http.Request) {
	var req forgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorFor(w, apperr.ErrInvalidPayload, err.Error())
		return
	}

	audit, err := h.deps.Forget.Forget(forget.Request{
		Filter:  req.Filter,
		Reason:  req.Reason,
		Confirm: req.Confirm,
		DryRun:  req.DryRun,
	})
	if err != nil {
		h.metrics.errorsByCode.WithLabelValues(apperr.Code(err)).Inc()
		writeErrorFor(w, err, err.Error())
		return
	}
	h.metrics.forgets.WithLabelValues(strconv.FormatBool(audit.DryRun)).Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"forgotten_count": audit.Count,
		"forgotten_docs":  audit.ForgottenDocs,
		"dry_run":         audit.DryRun,
		"audit_id":        audit.AuditID,
	})
}

// --- retention ---

func (h *handlers) handleGetRetention(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"configs": h.deps.Retention.GetConfigs()})
}

func (h *handlers) handlePutRetention(w http.ResponseWriter, r *http.Request) {
	namespace := r.PathValue("namespace")
	var cfg model.RetentionConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeErrorFor(w, apperr.ErrInvalidPayload, err.Error())
		return
	}
	h.deps.Retention.SetConfig(namespace, cfg)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleDecayPreview(w http.ResponseWriter, r *http.Request) {
	namespace := r.URL.Query().Get("namespace")
	previews := h.deps.Retention.PreviewDecay(namespace)
	writeJSON(w, http.StatusOK, map[string]any{
		"namespace":       namespace,
		"total_documents": len(previews),
		"previews":        previews,
	})
}

// --- ledger ---

func (h *handlers) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Ledger.ListSnapshots())
}

type outcomeRequest struct {
	DecisionID   string              `json:"decision_id"`
	Outcome      model.Outcome       `json:"outcome"`
	SignalSource model.OutcomeSignal `json:"signal_source"`
	Notes        string              `json:"notes"`
}

func (h *handlers) handleRecordOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorFor(w, apperr.ErrInvalidPayload, err.Error())
		return
	}

	err := h.deps.Ledger.RecordOutcome(model.DecisionOutcome{
		DecisionID:   req.DecisionID,
		Outcome:      req.Outcome,
		SignalSource: req.SignalSource,
		Timestamp:    time.Now().UTC(),
		Notes:        req.Notes,
	})
	if err != nil {
		h.metrics.errorsByCode.WithLabelValues(apperr.Code(err)).Inc()
		writeErrorFor(w, err, err.Error())
		return
	}
	h.metrics.outcomes.WithLabelValues(string(req.Outcome)).Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleGetOutcome(w http.ResponseWriter, r *http.Request) {
	decisionID := r.PathValue("decision_id")
	outcome, ok := h.deps.Ledger.GetOutcome(decisionID)
	if !ok {
		writeErrorFor(w, apperr.ErrDecisionNotFound, "no outcome recorded for this decision")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *handlers) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Ledger.ListOutcomes())
}

// --- stats ---

func (h *handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.deps.Store.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"total_documents": stats.TotalDocuments,
		"total_chunks":    stats.TotalChunks,
		"namespaces":      stats.Namespaces,
	})
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}

func writeErrorFor(w http.ResponseWriter, err error, message string) {
	writeError(w, apperr.HTTPStatus(err), apperr.Code(err), message)
}
