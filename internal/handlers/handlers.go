package handlers

import (
	"context"
	"time"

	"gallery/internal/render"
	"gallery/internal/session"
	"gallery/internal/startup"
)

// SessionService is the part of the session manager the API drives.
type SessionService interface {
	OpenFolder(ctx context.Context, folder string) error
	LoadMore(ctx context.Context) error
	Cancel()
	SetViewport(first int)
	Snapshot() session.Snapshot
}

// Replayer gives read access to the retained thumbnails, used to bring a
// newly connected stream client up to date. *render.Loop implements it.
type Replayer interface {
	Inspect(fn func(w *render.Window))
}

// MemoryReporter exposes memory backpressure state. *memory.Monitor
// implements it.
type MemoryReporter interface {
	IsPaused() bool
	GetStats() (current, limit int64, usage float64)
}

type Handlers struct {
	session   SessionService
	hub       *Hub
	replay    Replayer
	memory    MemoryReporter
	mediaDir  string
	startTime time.Time
}

func New(sess SessionService, hub *Hub, replay Replayer, config *startup.Config) *Handlers {
	return &Handlers{
		session:   sess,
		hub:       hub,
		replay:    replay,
		mediaDir:  config.MediaDir,
		startTime: time.Now(),
	}
}

// SetMemoryReporter adds memory figures to the health response.
func (h *Handlers) SetMemoryReporter(m MemoryReporter) {
	h.memory = m
}
