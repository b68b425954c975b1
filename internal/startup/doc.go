// Package startup loads configuration and owns the startup and shutdown log
// output shared by the gallery commands.
//
// # Configuration
//
// [LoadConfig] layers, lowest precedence first:
//
//  1. built-in defaults ([DefaultConfig])
//  2. an optional YAML file (--config)
//  3. environment variables
//
// Command-line flags are applied on top by cmd/gallery. Recognised
// environment variables:
//
//   - GALLERY_INITIAL_PAGE_LIMIT: first page size (default: 500)
//   - GALLERY_LOAD_MORE_PAGE_SIZE: load-more page size (default: 200)
//   - GALLERY_WORKERS: thumbnail workers, 0 = auto (default: 4, max 16)
//   - GALLERY_INITIAL_THUMBNAIL_COUNT: items generated first (default: 50)
//   - GALLERY_ITEM_TIMEOUT: per-thumbnail timeout in seconds (default: 5)
//   - GALLERY_PROGRESSIVE: deliver thumbnails as they finish (default: true)
//   - GALLERY_THUMBNAIL_SIZE: bounding box in pixels (default: 150)
//   - GALLERY_FORMAT: jpeg or png (default: jpeg)
//   - GALLERY_CACHE_SIZE: in-memory thumbnail cache entries (default: 200)
//   - GALLERY_RETENTION_CAP: thumbnails kept by a renderer (default: 2000)
//   - GALLERY_EXTENSIONS: comma separated list of image extensions
//   - GALLERY_USE_VIPS: use libvips when available (default: false)
//   - GALLERY_MEDIA_DIR: restrict the HTTP API to this directory
//   - PORT, METRICS_PORT, METRICS_ENABLED, LOG_HEALTH_CHECKS, LOG_LEVEL
//
// Out of range numbers are clamped by [Config.Validate]; only an unknown
// thumbnail format is rejected.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed through
// [GetBuildInfo].
package startup
