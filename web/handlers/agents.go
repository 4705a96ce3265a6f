package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/qualagents/qualagents/internal/storage"
	"github.com/qualagents/qualagents/pkg/types"
)

// AgentHandlers contains the HTTP handlers for the agents API.
type AgentHandlers struct {
	store storage.AgentStore
}

// NewAgentHandlers creates a new AgentHandlers instance.
func NewAgentHandlers(store storage.AgentStore) *AgentHandlers {
	return &AgentHandlers{store: store}
}

// CreateAgentRequest is the request body for POST /api/agents.
type CreateAgentRequest struct {
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Model         string            `json:"model"`
	Configuration types.AgentConfig `json:"configuration,omitempty"`
}

// CreateAgent handles POST /api/agents.
func (h *AgentHandlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.Model == "" {
		respondError(w, http.StatusBadRequest, "model is required", nil)
		return
	}

	agent := &types.Agent{
		Name:          req.Name,
		Description:   req.Description,
		Model:         req.Model,
		Configuration: req.Configuration,
	}
	if err := h.store.CreateAgent(r.Context(), agent); err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "invalid agent", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create agent", err)
		return
	}
	respondJSON(w, http.StatusCreated, agent)
}

// GetAgent handles GET /api/agents/{id}.
func (h *AgentHandlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid agent ID", err)
		return
	}

	agent, err := h.store.GetAgent(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "agent not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get agent", err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

// ListAgents handles GET /api/agents.
func (h *AgentHandlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	if limit > 100 {
		limit = 100
	}

	agents, err := h.store.ListAgents(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list agents", err)
		return
	}
	if agents == nil {
		agents = []*types.Agent{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"agents": agents,
		"total":  len(agents),
	})
}

// DeleteAgent handles DELETE /api/agents/{id}.
func (h *AgentHandlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid agent ID", err)
		return
	}

	if err := h.store.DeleteAgent(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "agent not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete agent", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}
