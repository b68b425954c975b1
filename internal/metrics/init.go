package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, op := range []string{"scan", "index"} {
		ScannerOperationsTotal.WithLabelValues(op, "success")
		ScannerOperationsTotal.WithLabelValues(op, "error")
		ScannerOperationDuration.WithLabelValues(op)
	}
	ScannerItemsReturned.WithLabelValues("scan")

	for _, r := range []string{"hit", "miss", "stale"} {
		ScannerIndexCacheTotal.WithLabelValues(r)
	}

	for _, s := range []string{"ready", "failed", "timeout", "stale"} {
		ThumbnailGenerationsTotal.WithLabelValues(s)
	}
	for _, b := range []string{"imaging", "vips"} {
		ThumbnailGenerationDuration.WithLabelValues(b)
	}

	for _, s := range []string{"completed", "cancelled", "rejected"} {
		PipelineTasksTotal.WithLabelValues(s)
	}

	for _, s := range []string{"idle", "scanning", "generating", "cancelling", "complete"} {
		SessionTransitionsTotal.WithLabelValues(s)
	}

	for _, op := range []string{"stat", "open"} {
		for _, label := range []string{"scanner", "thumbnail"} {
			FilesystemRetryAttempts.WithLabelValues(op, label)
			FilesystemRetrySuccess.WithLabelValues(op, label)
			FilesystemRetryFailures.WithLabelValues(op, label)
			FilesystemStaleErrors.WithLabelValues(op, label)
			FilesystemRetryDuration.WithLabelValues(op, label)
		}
	}
}
