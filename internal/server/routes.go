package server

import "net/http"

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// MCP endpoint (JSON-RPC over HTTP)
	if s.app.MCPHandler != nil {
		mux.Handle("/mcp", s.app.MCPHandler)
	}

	// Assistant control plane
	assistant := s.app.AssistantHandler
	mux.HandleFunc("/api/assistant/query", assistant.HandleQuery)
	mux.HandleFunc("/api/assistant/execute", assistant.HandleExecute)
	mux.HandleFunc("/api/assistant/catalog", assistant.HandleCatalog)
	mux.HandleFunc("/api/assistant/refresh", assistant.HandleRefresh)

	// Service endpoints
	mux.HandleFunc("/api/health", s.app.HealthHandler.ServeHTTP)
	mux.HandleFunc("/api/version", s.app.VersionHandler.ServeHTTP)

	// JSON 404 for everything else; this service has no HTML surface
	mux.HandleFunc("/", s.handleNotFound)

	return mux
}

// handleNotFound returns a JSON 404 for unmatched routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not Found","message":"The requested endpoint does not exist"}`))
}
