package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"actionbroker/internal/auth"
	"actionbroker/internal/broker"
	"actionbroker/internal/catalog"
	"actionbroker/internal/common"
	"actionbroker/internal/scoring"
)

// AssistantHandler exposes the broker's control plane: query ranks
// catalog methods against free text, execute runs approval-gated calls,
// catalog and refresh manage the discovered surface. Every endpoint
// requires an authenticated caller.
type AssistantHandler struct {
	logger    *common.Logger
	extractor *auth.Extractor
	catalog   *catalog.Service
	scorer    *scoring.Scorer
	broker    *broker.Broker
}

// NewAssistantHandler creates the control-plane handler.
func NewAssistantHandler(
	logger *common.Logger,
	extractor *auth.Extractor,
	catalogSvc *catalog.Service,
	scorer *scoring.Scorer,
	brk *broker.Broker,
) *AssistantHandler {
	return &AssistantHandler{
		logger:    logger,
		extractor: extractor,
		catalog:   catalogSvc,
		scorer:    scorer,
		broker:    brk,
	}
}

// authenticate resolves the caller's identity or writes a 401. The gate
// runs before any body parsing so unauthenticated probes learn nothing
// about the payload contract.
func (h *AssistantHandler) authenticate(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := h.extractor.FromRequest(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "authentication required")
		return auth.Identity{}, false
	}
	return identity, true
}

// queryRequest is the JSON body for POST /api/assistant/query.
type queryRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// HandleQuery handles POST /api/assistant/query.
func (h *AssistantHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	identity, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req queryRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.Query == "" {
		WriteError(w, http.StatusBadRequest, "query is required")
		return
	}

	methods, _, err := h.catalog.Methods(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Catalog unavailable for query")
		WriteError(w, http.StatusInternalServerError, "capability catalog unavailable")
		return
	}

	candidates := h.scorer.Score(req.Query, methods, req.Limit)
	if candidates == nil {
		candidates = []scoring.Candidate{}
	}

	h.logger.Debug().
		Str("user", identity.UserID).
		Str("query", req.Query).
		Int("candidates", len(candidates)).
		Msg("Query scored")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"query":      req.Query,
		"count":      len(candidates),
		"candidates": candidates,
	})
}

// executeRequest is the JSON body for POST /api/assistant/execute. Input
// is decoded per tool.
type executeRequest struct {
	ToolName string          `json:"toolName"`
	Input    json.RawMessage `json:"input"`
}

// HandleExecute handles POST /api/assistant/execute. The response is one
// of three shapes: a draft awaiting approval, a single result, or a
// batch result whose HTTP status mirrors the batch outcome (200 or 207).
func (h *AssistantHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	identity, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req executeRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if len(req.Input) == 0 {
		WriteError(w, http.StatusBadRequest, "input is required")
		return
	}

	creds := broker.CredentialsFromRequest(r)

	switch req.ToolName {
	case broker.ToolSingle:
		var input broker.Input
		if err := json.Unmarshal(req.Input, &input); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid single input")
			return
		}
		draft, result, err := h.broker.Single(r.Context(), creds, input)
		if err != nil {
			h.writeExecuteError(w, err)
			return
		}
		if draft != nil {
			h.logger.Info().
				Str("user", identity.UserID).
				Str("method", input.Method).
				Str("path", input.Path).
				Msg("Draft returned for approval")
			WriteJSON(w, http.StatusOK, map[string]interface{}{
				"requiresApproval": true,
				"draft":            draft,
			})
			return
		}
		WriteJSON(w, http.StatusOK, result)

	case broker.ToolBatch:
		var input broker.BatchInput
		if err := json.Unmarshal(req.Input, &input); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid batch input")
			return
		}
		draft, batch, err := h.broker.Batch(r.Context(), creds, input)
		if err != nil {
			h.writeExecuteError(w, err)
			return
		}
		if draft != nil {
			h.logger.Info().
				Str("user", identity.UserID).
				Int("requests", len(input.Requests)).
				Msg("Batch draft returned for approval")
			WriteJSON(w, http.StatusOK, map[string]interface{}{
				"requiresApproval": true,
				"draft":            draft,
			})
			return
		}
		WriteJSON(w, batch.Status, batch)

	default:
		WriteError(w, http.StatusBadRequest, `toolName must be "single" or "batch"`)
	}
}

// writeExecuteError maps broker rejections onto HTTP statuses.
func (h *AssistantHandler) writeExecuteError(w http.ResponseWriter, err error) {
	var verr *broker.ValidationError
	if errors.As(err, &verr) {
		WriteError(w, http.StatusBadRequest, verr.Reason)
		return
	}
	h.logger.Error().Err(err).Msg("Execute failed")
	WriteError(w, http.StatusInternalServerError, "execution failed")
}

// HandleCatalog handles GET /api/assistant/catalog.
func (h *AssistantHandler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	if _, ok := h.authenticate(w, r); !ok {
		return
	}

	methods, builtAt, err := h.catalog.Methods(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Catalog unavailable")
		WriteError(w, http.StatusInternalServerError, "capability catalog unavailable")
		return
	}
	if methods == nil {
		methods = []catalog.MethodSpec{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(methods),
		"builtAt": builtAt,
		"methods": methods,
	})
}

// HandleRefresh handles POST /api/assistant/refresh: a forced discovery
// re-scan regardless of snapshot freshness.
func (h *AssistantHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	identity, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	methods, builtAt, err := h.catalog.Refresh(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Str("user", identity.UserID).Msg("Forced refresh failed")
		WriteError(w, http.StatusInternalServerError, "discovery re-scan failed")
		return
	}

	h.logger.Info().
		Str("user", identity.UserID).
		Int("methods", len(methods)).
		Msg("Catalog refreshed on request")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"count":   len(methods),
		"builtAt": builtAt,
	})
}
