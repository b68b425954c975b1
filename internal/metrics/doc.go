// Package metrics provides Prometheus instrumentation for gallery.
//
// All metrics are registered through promauto and prefixed with "gallery_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//   - StreamClients, StreamMessagesDropped: websocket event stream
//
// ## Scanner Metrics
//
//   - ScannerOperationsTotal / ScannerOperationDuration: per operation and status
//   - ScannerItemsReturned: page sizes handed back to callers
//   - ScannerIndexCacheTotal: folder index cache hits, misses and stale entries
//   - ScannerWatcherEventsTotal, ScannerWatcherErrors, ScannerWatchedDirectories
//
// ## Thumbnail Pipeline Metrics
//
//   - ThumbnailGenerationsTotal: outcomes by status (ready/failed/timeout/stale)
//   - ThumbnailGenerationDuration: per backend (imaging/vips)
//   - ThumbnailsInFlight: decodes in progress, never above the worker count
//   - PipelineWorkers, PipelineTasksActive, PipelineTasksTotal, PipelineTaskDuration
//
// ## Session Metrics
//
//   - SessionTransitionsTotal: state machine transitions by target state
//   - SessionLoadedItems, SessionWorkingSet, SessionFailedItems: sampled by Collector
//   - ThumbnailCacheHits, ThumbnailCacheMisses, ThumbnailCacheCount
//
// ## Memory and Filesystem Metrics
//
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses
//   - FilesystemRetry*: NFS stale handle retries, fed by NewFilesystemObserver
//
// # Usage
//
//	metrics.InitializeMetrics()
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
//	collector := metrics.NewCollector(manager, 15*time.Second)
//	collector.Start()
//	defer collector.Stop()
//
// The /metrics endpoint is served by promhttp on the metrics port.
package metrics
