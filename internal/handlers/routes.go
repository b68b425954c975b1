package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router builds the application routes.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api/session").Subrouter()
	api.Use(sameOrigin)
	api.HandleFunc("", h.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/open", h.OpenSession).Methods(http.MethodPost)
	api.HandleFunc("/more", h.LoadMore).Methods(http.MethodPost)
	api.HandleFunc("/cancel", h.CancelSession).Methods(http.MethodPost)
	api.HandleFunc("/viewport", h.SetViewport).Methods(http.MethodPost)
	api.HandleFunc("/stream", h.StreamSession).Methods(http.MethodGet)

	return r
}

// MetricsRouter serves /metrics on its own listener.
func (h *Handlers) MetricsRouter() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet)
	return r
}
