package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"gallery/internal/logging"
	"gallery/internal/scanner"
	"gallery/internal/session"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": status})
}

// statusForError maps session and scanner errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, errInvalidFolder), errors.Is(err, session.ErrNoFolder):
		return http.StatusBadRequest
	case errors.Is(err, scanner.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scanner.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrNoMore):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusForError(err)
	if code == http.StatusInternalServerError {
		logging.Error("request failed: %v", err)
	}
	writeJSONError(w, err.Error(), code)
}

// sameOrigin refuses browser requests sent by pages from another origin.
// Requests without an Origin header are not from a browser page and pass.
func sameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			u, err := url.Parse(origin)
			if err != nil || !strings.EqualFold(u.Host, r.Host) {
				logging.Warn("Refused cross-origin %s %s from %q", r.Method, r.URL.Path, origin)
				writeJSONError(w, "cross-origin request refused", http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
