package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_stream_clients",
			Help: "Number of connected websocket stream clients",
		},
	)

	StreamMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_stream_messages_dropped_total",
			Help: "Messages dropped because a stream client could not keep up",
		},
	)
)

// Scanner metrics
var (
	ScannerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_scanner_operations_total",
			Help: "Total number of scanner operations",
		},
		[]string{"operation", "status"},
	)

	ScannerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_scanner_operation_duration_seconds",
			Help:    "Scanner operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	ScannerItemsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_scanner_items_returned",
			Help:    "Number of items returned by scanner operations",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200, 500, 1000},
		},
		[]string{"operation"},
	)

	ScannerFilesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_scanner_files_scanned_total",
			Help: "Directory entries visited while building folder indexes",
		},
	)

	ScannerIndexCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_scanner_index_cache_total",
			Help: "Folder index cache lookups by result",
		},
		[]string{"result"}, // hit, miss, stale
	)

	ScannerWatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_scanner_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)

	ScannerWatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_scanner_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)

	ScannerWatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_scanner_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)
)

// Thumbnail pipeline metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_thumbnail_generations_total",
			Help: "Thumbnail outcomes by status",
		},
		[]string{"status"}, // ready, failed, timeout, stale
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_thumbnail_generation_duration_seconds",
			Help:    "Time spent producing one thumbnail",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend"}, // imaging, vips
	)

	ThumbnailsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_thumbnails_in_flight",
			Help: "Thumbnails currently being decoded",
		},
	)

	PipelineWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_pipeline_workers",
			Help: "Size of the thumbnail worker pool",
		},
	)

	PipelineTasksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_pipeline_tasks_active",
			Help: "Generation tasks submitted and not yet finished",
		},
	)

	PipelineTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_pipeline_tasks_total",
			Help: "Generation tasks by final state",
		},
		[]string{"state"}, // completed, cancelled, rejected
	)

	PipelineTaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gallery_pipeline_task_duration_seconds",
			Help:    "Wall time from submit to the last item of a task",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)

// Session metrics
var (
	SessionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_session_transitions_total",
			Help: "Session state transitions by target state",
		},
		[]string{"state"},
	)

	SessionLoadedItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_session_loaded_items",
			Help: "Thumbnails delivered for the current task",
		},
	)

	SessionWorkingSet = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_session_working_set",
			Help: "Image references in the current working set",
		},
	)

	SessionFailedItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_session_failed_items",
			Help: "Thumbnails that failed in the current working set",
		},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_thumbnail_cache_hits_total",
			Help: "Thumbnails served from the in-memory cache",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_thumbnail_cache_misses_total",
			Help: "Thumbnails that had to be generated",
		},
	)

	ThumbnailCacheCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_thumbnail_cache_count",
			Help: "Entries in the in-memory thumbnail cache",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_memory_usage_ratio",
			Help: "Heap in use relative to the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_memory_paused",
			Help: "1 while thumbnail work is paused for memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_memory_gc_pauses_total",
			Help: "Number of times work was paused for memory pressure",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_filesystem_retry_attempts_total",
			Help: "Retries caused by NFS stale file handles",
		},
		[]string{"operation", "label"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_filesystem_retry_success_total",
			Help: "Operations that succeeded after retrying",
		},
		[]string{"operation", "label"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "label"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "label"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		},
		[]string{"operation", "label"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gallery_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
