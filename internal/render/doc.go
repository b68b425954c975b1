// Package render is the boundary between the session and whatever draws
// thumbnails.
//
// The session reports through a Coordinator, which may be called from any
// goroutine. Loop is the standard Coordinator: it queues every call onto a
// single owner goroutine that keeps a bounded Window of thumbnails and
// drives a Renderer.
package render
