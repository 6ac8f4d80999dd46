package api

import (
	"encoding/json"
	"net/http"

	"github.com/starford/slideman/internal/models"
)

// ListAssemblies handles GET /api/projects/{id}/assemblies.
func (h *Handler) ListAssemblies(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	out, err := h.svc.ListAssemblies(r.Context(), id)
	if err != nil {
		writeError(w, "list assemblies", err)
		return
	}
	if out == nil {
		out = []models.Assembly{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assemblies": out})
}

// CreateAssembly handles POST /api/projects/{id}/assemblies. The body names
// either an explicit slide id list or a keyword filter.
func (h *Handler) CreateAssembly(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	var req CreateAssemblyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	if len(req.SlideIDs) == 0 && len(req.Keywords) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("slide_ids or keywords are required"))
		return
	}

	var a models.Assembly
	if len(req.SlideIDs) > 0 {
		a, err = h.svc.CreateAssembly(r.Context(), id, req.Name, req.SlideIDs)
	} else {
		a, err = h.svc.BuildAssembly(r.Context(), id, req.Name, req.Keywords, req.MatchAll)
	}
	if err != nil {
		writeError(w, "create assembly", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// GetAssembly handles GET /api/assemblies/{id}.
func (h *Handler) GetAssembly(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	a, err := h.svc.GetAssembly(r.Context(), id)
	if err != nil {
		writeError(w, "get assembly", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ReorderAssembly handles PUT /api/assemblies/{id}/order.
func (h *Handler) ReorderAssembly(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	var req ReorderAssemblyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.ReorderAssembly(r.Context(), id, req.SlideIDs); err != nil {
		writeError(w, "reorder assembly", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAssembly handles DELETE /api/assemblies/{id}.
func (h *Handler) DeleteAssembly(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if err := h.svc.DeleteAssembly(r.Context(), id); err != nil {
		writeError(w, "delete assembly", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportAssembly handles POST /api/assemblies/{id}/export.
func (h *Handler) ExportAssembly(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	rel, err := h.svc.ExportAssembly(r.Context(), id)
	if err != nil {
		writeError(w, "export assembly", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": rel})
}
