// Package server provides HTTP server initialization and lifecycle
// management for the QualAgents API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/qualagents/qualagents/internal/config"
	"github.com/qualagents/qualagents/internal/llm"
	"github.com/qualagents/qualagents/internal/memory"
	"github.com/qualagents/qualagents/internal/storage"
	"github.com/qualagents/qualagents/web/handlers"
)

// Deps carries the wired application components into the server.
type Deps struct {
	Analysis handlers.AnalysisAPI
	Store    storage.SemanticStore
	Projects storage.ProjectStore
	Agents   storage.AgentStore
	Embedder llm.EmbeddingGenerator
	Memory   *memory.Pipeline
}

// Routes builds the full HTTP handler: API routes behind auth, the health
// endpoint, the status-stream WebSocket, all wrapped in rate limiting and
// security headers.
func Routes(cfg *config.Config, deps Deps, hub *handlers.StatusHub) http.Handler {
	mux := http.NewServeMux()

	analysisHandlers := handlers.NewAnalysisHandlers(deps.Analysis)
	memoryHandlers := handlers.NewMemoryHandlers(deps.Store, deps.Embedder, deps.Memory)
	projectHandlers := handlers.NewProjectHandlers(deps.Projects)
	agentHandlers := handlers.NewAgentHandlers(deps.Agents)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/analyses", analysisHandlers.SubmitAnalysis)
	apiMux.HandleFunc("GET /api/analyses", analysisHandlers.ListAnalyses)
	apiMux.HandleFunc("GET /api/analyses/{id}", analysisHandlers.GetAnalysis)
	apiMux.HandleFunc("GET /api/analyses/{id}/results", analysisHandlers.GetAnalysisResults)
	apiMux.HandleFunc("POST /api/memories", memoryHandlers.CreateMemory)
	apiMux.HandleFunc("GET /api/memories", memoryHandlers.SearchMemories)
	apiMux.HandleFunc("DELETE /api/memories", memoryHandlers.DeleteMemories)
	apiMux.HandleFunc("POST /api/projects", projectHandlers.CreateProject)
	apiMux.HandleFunc("GET /api/projects", projectHandlers.ListProjects)
	apiMux.HandleFunc("GET /api/projects/{id}", projectHandlers.GetProject)
	apiMux.HandleFunc("DELETE /api/projects/{id}", projectHandlers.DeleteProject)
	apiMux.HandleFunc("POST /api/agents", agentHandlers.CreateAgent)
	apiMux.HandleFunc("GET /api/agents", agentHandlers.ListAgents)
	apiMux.HandleFunc("GET /api/agents/{id}", agentHandlers.GetAgent)
	apiMux.HandleFunc("DELETE /api/agents/{id}", agentHandlers.DeleteAgent)

	// Health endpoint - no auth required, used by monitoring.
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","version":"1.0.0"}`))
	})

	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoints for job status streaming. Origin validation
	// handles security; an abandoned stream never cancels the job.
	mux.Handle("/ws", hub)
	mux.Handle("GET /ws/analyses/{id}", hub)

	rateLimiter := handlers.NewRateLimiter(10.0, 20)
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	return handlers.SecurityHeaders(handler)
}

// Start initializes and starts the HTTP server. It returns the actual
// address being listened on (useful for testing with port 0) and the status
// hub for wiring job status broadcasts.
func Start(ctx context.Context, cfg *config.Config, deps Deps) (string, *handlers.StatusHub, error) {
	hub := handlers.NewStatusHub(cfg.Server.StreamTimeout, allowedOrigins(cfg))
	go hub.Run()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      Routes(cfg, deps, hub),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		hub.Stop()
		return "", nil, fmt.Errorf("server: failed to listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		hub.Stop()
	}()

	return actualAddr, hub, nil
}

// allowedOrigins returns the WebSocket origin patterns for the configured
// listen address. Development mode accepts any origin.
func allowedOrigins(cfg *config.Config) []string {
	if cfg.Security.SecurityMode == "development" {
		return nil
	}
	return []string{
		fmt.Sprintf("localhost:%d", cfg.Server.Port),
		fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
	}
}
