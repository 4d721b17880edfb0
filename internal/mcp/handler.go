package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"actionbroker/internal/auth"
	"actionbroker/internal/broker"
	"actionbroker/internal/catalog"
	"actionbroker/internal/common"
	"actionbroker/internal/config"
	"actionbroker/internal/scoring"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// catalogInitTimeout bounds the discovery scan performed at startup.
const catalogInitTimeout = 10 * time.Second

// Handler is the HTTP handler for the MCP endpoint.
// It wraps mcp-go's StreamableHTTPServer and delegates to it after
// resolving caller identity.
type Handler struct {
	streamable *mcpserver.StreamableHTTPServer
	server     *mcpserver.MCPServer
	extractor  *auth.Extractor
	catalog    *catalog.Service
	scorer     *scoring.Scorer
	broker     *broker.Broker
	logger     *common.Logger

	mu        sync.Mutex
	builtAt   time.Time
	toolCount int
}

// NewHandler creates the MCP handler and registers the initial tool set
// from the catalog. Discovery failure at startup is non-fatal: the handler
// starts with the built-in tools only and picks the catalog up on the next
// refresh.
func NewHandler(svc *catalog.Service, scorer *scoring.Scorer, brk *broker.Broker, extractor *auth.Extractor, logger *common.Logger) *Handler {
	mcpSrv := mcpserver.NewMCPServer(
		"actionbroker",
		config.GetVersion(),
		mcpserver.WithToolCapabilities(true),
	)

	h := &Handler{
		server:    mcpSrv,
		extractor: extractor,
		catalog:   svc,
		scorer:    scorer,
		broker:    brk,
		logger:    logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), catalogInitTimeout)
	defer cancel()
	if err := h.RefreshTools(ctx); err != nil {
		logger.Warn().
			Str("error", err.Error()).
			Msg("Endpoint discovery failed at startup, serving built-in tools only")
		h.setTools(h.builtinTools(), time.Time{})
	}

	h.streamable = mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithStateLess(true),
	)

	logger.Info().
		Int("tools", h.ToolCount()).
		Msg("MCP handler initialized")

	return h
}

// ToolCount returns the number of currently registered tools.
func (h *Handler) ToolCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.toolCount
}

// RefreshTools rebuilds the MCP tool set from the current catalog. The
// replacement is atomic: clients never observe a partial list. A catalog
// snapshot that has not changed since the last rebuild is a no-op.
func (h *Handler) RefreshTools(ctx context.Context) error {
	methods, builtAt, err := h.catalog.Methods(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.builtAt.IsZero() && builtAt.Equal(h.builtAt) {
		return nil
	}

	tools := h.buildServerTools(methods)
	h.server.SetTools(tools...)
	h.builtAt = builtAt
	h.toolCount = len(tools)

	h.logger.Info().
		Int("tools", len(tools)).
		Str("built_at", builtAt.Format(time.RFC3339)).
		Msg("MCP tool set replaced")
	return nil
}

// setTools installs a fixed tool list. Caller must not hold h.mu.
func (h *Handler) setTools(tools []mcpserver.ServerTool, builtAt time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.server.SetTools(tools...)
	h.builtAt = builtAt
	h.toolCount = len(tools)
}

// buildServerTools converts catalog methods plus the built-in tools into
// the slice form SetTools expects. Duplicate method names are skipped with
// a warning; the first occurrence wins. Caller holds h.mu.
func (h *Handler) buildServerTools(methods []catalog.MethodSpec) []mcpserver.ServerTool {
	tools := make([]mcpserver.ServerTool, 0, len(methods)+2)
	seen := make(map[string]bool, len(methods))
	for _, m := range methods {
		if seen[m.Name] {
			h.logger.Warn().
				Str("name", m.Name).
				Str("path", m.PathTemplate).
				Msg("skipping duplicate catalog method")
			continue
		}
		seen[m.Name] = true
		tools = append(tools, mcpserver.ServerTool{
			Tool:    BuildTool(m),
			Handler: MethodToolHandler(h.broker, m),
		})
	}
	return append(tools, h.builtinTools()...)
}

// builtinTools returns the tools that exist regardless of catalog state.
func (h *Handler) builtinTools() []mcpserver.ServerTool {
	return []mcpserver.ServerTool{
		{Tool: SearchTool(), Handler: SearchToolHandler(h.catalog, h.scorer)},
		{Tool: VersionTool(), Handler: VersionToolHandler()},
	}
}

// ServeHTTP resolves caller identity, attaches it together with the raw
// credential headers to the request context, and delegates to the mcp-go
// StreamableHTTPServer. Requests with no valid identity receive a 401
// challenge; tool handlers read the attached credentials when forwarding.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := h.extractor.FromRequest(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "unauthorized",
			"error_description": "Authentication required to access MCP endpoint",
		})
		return
	}

	ctx := auth.WithIdentity(r.Context(), id)
	ctx = WithCredentials(ctx, broker.CredentialsFromRequest(r))
	h.streamable.ServeHTTP(w, r.WithContext(ctx))
}
