package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/starford/slideman/internal/apperr"
	"github.com/starford/slideman/internal/models"
)

// ListKeywords handles GET /api/keywords.
func (h *Handler) ListKeywords(w http.ResponseWriter, r *http.Request) {
	kws, err := h.svc.ListKeywords(r.Context(), r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, "list keywords", err)
		return
	}
	if kws == nil {
		kws = []models.Keyword{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"keywords": kws})
}

// CreateKeyword handles POST /api/keywords.
func (h *Handler) CreateKeyword(w http.ResponseWriter, r *http.Request) {
	var req CreateKeywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Text == "" || req.Kind == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text and kind are required"))
		return
	}
	if !models.ValidKeywordKind(req.Kind) {
		writeJSON(w, http.StatusBadRequest, errorBody("kind must be topic, title, or name"))
		return
	}
	k, err := h.svc.CreateKeyword(r.Context(), req.Text, req.Kind)
	if err != nil {
		writeError(w, "create keyword", err)
		return
	}
	writeJSON(w, http.StatusCreated, k)
}

// RenameKeyword handles PUT /api/keywords/{id}.
func (h *Handler) RenameKeyword(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	var req RenameKeywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}
	if err := h.svc.RenameKeyword(r.Context(), id, req.Text); err != nil {
		writeError(w, "rename keyword", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteKeyword handles DELETE /api/keywords/{id}.
func (h *Handler) DeleteKeyword(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if err := h.svc.DeleteKeyword(r.Context(), id); err != nil {
		writeError(w, "delete keyword", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateKeywords handles GET /api/keywords/duplicates.
func (h *Handler) DuplicateKeywords(w http.ResponseWriter, r *http.Request) {
	cands, err := h.svc.DuplicateKeywords(r.Context())
	if err != nil {
		writeError(w, "duplicate keywords", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": cands})
}

// MergeKeywords handles POST /api/keywords/merge.
func (h *Handler) MergeKeywords(w http.ResponseWriter, r *http.Request) {
	var req MergeKeywordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.WinnerID <= 0 || req.LoserID <= 0 || req.WinnerID == req.LoserID {
		writeJSON(w, http.StatusBadRequest, errorBody("winner_id and loser_id must be distinct keyword ids"))
		return
	}
	if err := h.svc.MergeKeywords(r.Context(), req.WinnerID, req.LoserID); err != nil {
		writeError(w, "merge keywords", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// tagPair parses the {id} and {kid} route parameters.
func tagPair(r *http.Request) (int64, int64, error) {
	id, err := idParam(r, "id")
	if err != nil {
		return 0, 0, err
	}
	kid, err := idParam(r, "kid")
	if err != nil {
		return 0, 0, err
	}
	return id, kid, nil
}

// TagSlide handles POST /api/slides/{id}/keywords/{kid}.
func (h *Handler) TagSlide(w http.ResponseWriter, r *http.Request) {
	id, kid, err := tagPair(r)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if err := h.svc.TagSlide(r.Context(), id, kid); err != nil {
		writeError(w, "tag slide", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UntagSlide handles DELETE /api/slides/{id}/keywords/{kid}.
func (h *Handler) UntagSlide(w http.ResponseWriter, r *http.Request) {
	id, kid, err := tagPair(r)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if err := h.svc.UntagSlide(r.Context(), id, kid); err != nil {
		writeError(w, "untag slide", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TagElement handles POST /api/elements/{id}/keywords/{kid}.
func (h *Handler) TagElement(w http.ResponseWriter, r *http.Request) {
	id, kid, err := tagPair(r)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if err := h.svc.TagElement(r.Context(), id, kid); err != nil {
		writeError(w, "tag element", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UntagElement handles DELETE /api/elements/{id}/keywords/{kid}.
func (h *Handler) UntagElement(w http.ResponseWriter, r *http.Request) {
	id, kid, err := tagPair(r)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if err := h.svc.UntagElement(r.Context(), id, kid); err != nil {
		writeError(w, "untag element", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Undo handles POST /api/undo.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	name, err := h.svc.Undo(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusConflict, errorBody("nothing to undo"))
			return
		}
		writeError(w, "undo", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"undone": name})
}

// Redo handles POST /api/redo.
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	name, err := h.svc.Redo(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusConflict, errorBody("nothing to redo"))
			return
		}
		writeError(w, "redo", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redone": name})
}

// History handles GET /api/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"commands": h.svc.History(r.Context())})
}
