package filesystem

import "sync/atomic"

// Observer records filesystem retry metrics. The implementation lives in the
// metrics package so that filesystem does not import it.
type Observer interface {
	// op is "stat" or "open"; label is RetryConfig.Label.
	ObserveRetryAttempt(op, label string)
	ObserveRetrySuccess(op, label string)
	ObserveRetryFailure(op, label string)
	ObserveRetryDuration(op, label string, durationSeconds float64)
	ObserveStaleError(op, label string)
}

type observerHolder struct{ o Observer }

var defaultObserver atomic.Pointer[observerHolder]

// SetObserver sets the package-level metrics observer.
// Passing nil disables metric recording.
func SetObserver(o Observer) {
	defaultObserver.Store(&observerHolder{o: o})
}

// observe returns the current observer, or nil when none is set.
func observe() Observer {
	h := defaultObserver.Load()
	if h == nil {
		return nil
	}
	return h.o
}
