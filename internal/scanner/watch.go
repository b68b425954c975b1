package scanner

import (
	"path/filepath"

	"gallery/internal/logging"
	"gallery/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// Watch starts watching folder and drops its index on any change. The
// watcher is created on first use and shared by all folders.
func (s *Scanner) Watch(folder string) error {
	folder, err := canonical(folder)
	if err != nil {
		return err
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.closed || s.watched[folder] {
		return nil
	}

	if s.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			metrics.ScannerWatcherErrors.Inc()
			return err
		}
		s.watcher = w
		s.watchDone = make(chan struct{})
		go s.processWatcherEvents(w, s.watchDone)
	}

	if err := s.watcher.Add(folder); err != nil {
		metrics.ScannerWatcherErrors.Inc()
		return err
	}
	s.watched[folder] = true
	metrics.ScannerWatchedDirectories.Set(float64(len(s.watched)))
	logging.Debug("Watching %s for changes", folder)
	return nil
}

// unwatch is the index cache eviction hook. It runs with s.mu held, so it
// must not call back into the cache.
func (s *Scanner) unwatch(folder string) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.watcher == nil || !s.watched[folder] {
		return
	}
	if err := s.watcher.Remove(folder); err != nil {
		logging.Debug("failed to remove watch on %s: %v", folder, err)
	}
	delete(s.watched, folder)
	metrics.ScannerWatchedDirectories.Set(float64(len(s.watched)))
}

// Close stops the watcher. Scan keeps working afterwards, relying on
// modification times alone.
func (s *Scanner) Close() error {
	s.watchMu.Lock()
	s.closed = true
	w, done := s.watcher, s.watchDone
	s.watcher = nil
	s.watched = make(map[string]bool)
	s.watchMu.Unlock()

	metrics.ScannerWatchedDirectories.Set(0)

	if w == nil {
		return nil
	}
	err := w.Close()
	<-done
	return err
}

func (s *Scanner) processWatcherEvents(w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			s.handleWatcherEvent(event)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error: %v", err)
			metrics.ScannerWatcherErrors.Inc()
		}
	}
}

func (s *Scanner) handleWatcherEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	metrics.ScannerWatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	// events name either the watched folder itself or one of its children
	s.Invalidate(event.Name)
	s.Invalidate(filepath.Dir(event.Name))
}

func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}
