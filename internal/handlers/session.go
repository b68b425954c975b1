package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

var errInvalidFolder = errors.New("invalid folder")

// OpenRequest is the body of POST /api/session/open.
type OpenRequest struct {
	Folder string `json:"folder"`
}

// OpenSession opens a folder and starts generating its thumbnails. The
// response is the session snapshot; thumbnails arrive on the stream.
func (h *Handlers) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	folder, err := h.resolveFolder(req.Folder)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.session.OpenFolder(r.Context(), folder); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.session.Snapshot())
}

// LoadMore scans the next page of the open folder.
func (h *Handlers) LoadMore(w http.ResponseWriter, r *http.Request) {
	if err := h.session.LoadMore(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.session.Snapshot())
}

// CancelSession stops thumbnail generation. It always succeeds.
func (h *Handlers) CancelSession(w http.ResponseWriter, _ *http.Request) {
	h.session.Cancel()
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.session.Snapshot())
}

// ViewportRequest is the body of POST /api/session/viewport.
type ViewportRequest struct {
	First int `json:"first"`
}

// SetViewport tells the session which image is first on screen so the
// next batch starts there.
func (h *Handlers) SetViewport(w http.ResponseWriter, r *http.Request) {
	var req ViewportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil || req.First < 0 {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.session.SetViewport(req.First)
	w.WriteHeader(http.StatusNoContent)
}

// GetSession returns the session snapshot.
func (h *Handlers) GetSession(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, h.session.Snapshot())
}

// resolveFolder maps a requested folder onto the filesystem. With a media
// directory configured, folders are taken relative to it and may not
// escape it; without one, absolute paths are required.
func (h *Handlers) resolveFolder(folder string) (string, error) {
	folder = strings.TrimSpace(folder)

	if h.mediaDir == "" {
		if !filepath.IsAbs(folder) {
			return "", fmt.Errorf("%w: %q is not an absolute path", errInvalidFolder, folder)
		}
		return filepath.Clean(folder), nil
	}

	root := filepath.Clean(h.mediaDir)
	full := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(folder, "/")))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q is outside the media directory", errInvalidFolder, folder)
	}
	return full, nil
}
