// Package main is the gallery command line.
//
// Gallery lists the images of a folder one page at a time and generates
// their thumbnails asynchronously on a fixed worker pool. Every front end
// shares the same core: a scanner, a thumbnail pipeline and a session
// manager that cancels outstanding work whenever the folder changes.
//
// # Commands
//
//   - serve: HTTP API under /api/session, a WebSocket event stream at
//     /api/session/stream, health probes, and Prometheus metrics on a
//     separate port
//   - render <folder>: headless run that prints progress and can write the
//     thumbnails to a directory
//   - browse <folder>: interactive terminal view
//   - version: build information
//
// # Configuration
//
// Settings are read from built-in defaults, then an optional YAML file
// (--config or GALLERY_CONFIG), then environment variables, then command
// line flags:
//
//   - GALLERY_INITIAL_PAGE_LIMIT: images in the first page (default: 500)
//   - GALLERY_LOAD_MORE_PAGE_SIZE: images per load-more page (default: 200)
//   - GALLERY_WORKERS: thumbnail workers, 0 for auto (default: 4)
//   - GALLERY_INITIAL_THUMBNAIL_COUNT: images from the first visible one
//     generated first (default: 50)
//   - GALLERY_ITEM_TIMEOUT: per-thumbnail timeout in seconds (default: 5)
//   - GALLERY_PROGRESSIVE: show thumbnails as they arrive (default: true)
//   - GALLERY_THUMBNAIL_SIZE, GALLERY_FORMAT, GALLERY_JPEG_QUALITY
//   - GALLERY_CACHE_SIZE (0 disables the cache), GALLERY_RETENTION_CAP
//   - GALLERY_USE_VIPS: decode through libvips when available
//   - GALLERY_MEDIA_DIR: root that API folder paths are resolved against
//   - GALLERY_HOST: listen address (default: 127.0.0.1). Any non-loopback
//     address requires GALLERY_MEDIA_DIR
//   - PORT, METRICS_PORT, METRICS_ENABLED, LOG_HEALTH_CHECKS
//   - LOG_LEVEL, DEBUG, MEMORY_LIMIT, GOMEMLIMIT
//
// # Graceful Shutdown
//
// serve handles SIGINT and SIGTERM:
//
//  1. Stop the metrics collector
//  2. Close WebSocket clients
//  3. Shut down the HTTP and metrics servers (30s timeout)
//  4. Cancel the active task and close the worker pool
//  5. Stop the folder watcher and memory monitor
package main
