/*
Package filesystem wraps os.Stat and os.Open with retry logic for NFS stale
file handle errors.

Galleries are often browsed over network mounts. A folder that is being
rewritten on the server can briefly answer ESTALE; the scanner and the
thumbnail codec go through this package so such a hiccup costs a short
backoff instead of a failed scan or a Failed thumbnail.

# Usage

	info, err := filesystem.StatWithRetry(folder, filesystem.DefaultRetryConfig())

	cfg := filesystem.DefaultRetryConfig()
	cfg.Label = "thumbnail"
	f, err := filesystem.OpenWithRetry(path, cfg)

# Retry Behavior

  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms, doubled per attempt
  - MaxBackoff: 500ms

Only ESTALE triggers a retry. Every other error is returned unchanged, so
callers can keep using errors.Is(err, fs.ErrNotExist) and friends.

Metrics are reported through an Observer installed with SetObserver; the
metrics package provides the implementation.
*/
package filesystem
