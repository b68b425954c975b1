// Package handlers provides the HTTP API for the gallery server.
//
// It includes handlers for:
//   - Opening a folder, loading more, cancelling and reading the session
//   - A WebSocket stream of thumbnails and progress
//   - Health checks and version information
//   - The Prometheus metrics endpoint
package handlers
