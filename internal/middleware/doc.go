// Package middleware provides HTTP middleware for the gallery server.
//
// It includes:
//   - Structured access logging with health-check filtering
//   - Response compression (zstd, gzip)
//   - Prometheus request metrics labelled by route
package middleware
