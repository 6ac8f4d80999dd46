package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/slideman/internal/convert"
)

// ThumbHandler serves slide thumbnail files from the library's thumbs dir.
type ThumbHandler struct {
	libraryRoot string
}

// NewThumbHandler creates a handler rooted at the library directory.
func NewThumbHandler(libraryRoot string) *ThumbHandler {
	return &ThumbHandler{libraryRoot: libraryRoot}
}

func (h *ThumbHandler) thumbsPath() string {
	return filepath.Join(h.libraryRoot, convert.ThumbsDir)
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal) and returns the absolute path under the thumbs dir.
func (h *ThumbHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	abs := filepath.Join(h.thumbsPath(), cleaned)
	if !strings.HasPrefix(abs, h.thumbsPath()+string(os.PathSeparator)) && abs != h.thumbsPath() {
		return "", fmt.Errorf("path escapes thumbs directory")
	}
	return abs, nil
}

// ServeFile handles GET /api/thumbs/{filename}.
func (h *ThumbHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	abs, err := h.safeName(filename)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}
