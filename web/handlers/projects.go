package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/qualagents/qualagents/internal/storage"
	"github.com/qualagents/qualagents/pkg/types"
)

// ProjectHandlers contains the HTTP handlers for the projects API.
type ProjectHandlers struct {
	store storage.ProjectStore
}

// NewProjectHandlers creates a new ProjectHandlers instance.
func NewProjectHandlers(store storage.ProjectStore) *ProjectHandlers {
	return &ProjectHandlers{store: store}
}

// CreateProjectRequest is the request body for POST /api/projects.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateProject handles POST /api/projects.
func (h *ProjectHandlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	project := &types.Project{Name: req.Name, Description: req.Description}
	if err := h.store.CreateProject(r.Context(), project); err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "invalid project", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create project", err)
		return
	}
	respondJSON(w, http.StatusCreated, project)
}

// GetProject handles GET /api/projects/{id}.
func (h *ProjectHandlers) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project ID", err)
		return
	}

	project, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "project not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get project", err)
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// ListProjects handles GET /api/projects.
func (h *ProjectHandlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	if limit > 100 {
		limit = 100
	}

	projects, err := h.store.ListProjects(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list projects", err)
		return
	}
	if projects == nil {
		projects = []*types.Project{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"projects": projects,
		"total":    len(projects),
	})
}

// DeleteProject handles DELETE /api/projects/{id}.
func (h *ProjectHandlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project ID", err)
		return
	}

	if err := h.store.DeleteProject(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "project not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete project", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}
