package scanner

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gallery/internal/filesystem"
	"gallery/internal/logging"
	"gallery/internal/mediatypes"
	"gallery/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// DefaultPageSize is used when Scan is called with a non-positive limit.
const DefaultPageSize = 500

// ImageReference identifies one image in a working set. Index is the
// image's position in the folder's sorted order and never changes while the
// folder is unchanged.
type ImageReference struct {
	Path  string `json:"path"`
	Index int    `json:"index"`
}

// BatchResult is one page of a folder scan.
type BatchResult struct {
	Images []ImageReference `json:"images"`
	// TotalCountEstimate never decreases between scans of the same folder
	// until ResetEstimate is called.
	TotalCountEstimate int  `json:"totalCountEstimate"`
	HasMore            bool `json:"hasMore"`
	// Offset is where this page starts; NextOffset is where the next one does.
	Offset     int `json:"offset"`
	NextOffset int `json:"nextOffset"`
}

// Options configures a Scanner.
type Options struct {
	// IndexCacheSize bounds the number of folder indexes kept in memory.
	IndexCacheSize int
	// Watch installs an fsnotify watch on every indexed folder so its index
	// is dropped as soon as the folder changes.
	Watch bool
	Retry filesystem.RetryConfig
}

// Scanner lists image files in a folder one page at a time.
//
// The first scan of a folder reads its entries once and keeps the sorted
// name list; later pages are served from that list for as long as the
// directory's modification time is unchanged.
type Scanner struct {
	retry filesystem.RetryConfig
	watch bool

	mu        sync.Mutex
	cache     *indexCache
	estimates map[string]int

	watchMu   sync.Mutex
	watcher   *fsnotify.Watcher
	watched   map[string]bool
	watchDone chan struct{}
	closed    bool
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	if opts.IndexCacheSize <= 0 {
		opts.IndexCacheSize = 16
	}
	if opts.Retry.MaxRetries == 0 && opts.Retry.InitialBackoff == 0 {
		opts.Retry = filesystem.DefaultRetryConfig()
	}
	if opts.Retry.Label == "" || opts.Retry.Label == "default" {
		opts.Retry.Label = "scanner"
	}

	s := &Scanner{
		retry:     opts.Retry,
		watch:     opts.Watch,
		estimates: make(map[string]int),
		watched:   make(map[string]bool),
	}
	s.cache = newIndexCache(opts.IndexCacheSize, s.unwatch)
	return s
}

// Scan returns up to limit images of folder starting at offset. exts lists
// the extensions to include; nil means every recognised image type.
func (s *Scanner) Scan(ctx context.Context, folder string, exts []string, offset, limit int) (*BatchResult, error) {
	return s.page(ctx, folder, exts, limit, func([]string) int { return max(offset, 0) })
}

// ScanAfter returns up to limit images of folder that sort after the image
// named after. Unlike an offset, the cursor stays put when files are added
// or removed between pages: nothing listed before is returned again and no
// file sorting after the cursor is skipped.
func (s *Scanner) ScanAfter(ctx context.Context, folder string, exts []string, after string, limit int) (*BatchResult, error) {
	after = filepath.Base(after)
	return s.page(ctx, folder, exts, limit, func(names []string) int {
		return sort.Search(len(names), func(i int) bool { return lessName(after, names[i]) })
	})
}

// page lists folder and slices limit names from the position first picks.
func (s *Scanner) page(ctx context.Context, folder string, exts []string, limit int, first func([]string) int) (result *BatchResult, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ScannerOperationsTotal.WithLabelValues("scan", status).Inc()
		metrics.ScannerOperationDuration.WithLabelValues("scan").Observe(time.Since(start).Seconds())
		if result != nil {
			metrics.ScannerItemsReturned.WithLabelValues("scan").Observe(float64(len(result.Images)))
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	folder, err = canonical(folder)
	if err != nil {
		return nil, classify(folder, err)
	}

	if limit <= 0 {
		limit = DefaultPageSize
	}

	names, err := s.names(ctx, folder, exts)
	if err != nil {
		return nil, err
	}

	total := len(names)
	offset := first(names)
	begin := min(offset, total)
	end := min(begin+limit, total)

	images := make([]ImageReference, 0, end-begin)
	for i := begin; i < end; i++ {
		images = append(images, ImageReference{
			Path:  filepath.Join(folder, names[i]),
			Index: i,
		})
	}

	s.mu.Lock()
	estimate := max(s.estimates[folder], total)
	s.estimates[folder] = estimate
	s.mu.Unlock()

	logging.Debug("Scanned %s: offset=%d limit=%d returned=%d total=%d", folder, offset, limit, len(images), total)

	return &BatchResult{
		Images:             images,
		TotalCountEstimate: estimate,
		HasMore:            end < total,
		Offset:             offset,
		NextOffset:         end,
	}, nil
}

// ResetEstimate forgets the running total estimate for folder, so the next
// scan reports the folder's current size. Sessions call it when a folder is
// opened afresh.
func (s *Scanner) ResetEstimate(folder string) {
	folder, err := canonical(folder)
	if err != nil {
		return
	}
	s.mu.Lock()
	delete(s.estimates, folder)
	s.mu.Unlock()
}

// Invalidate drops the cached index for folder.
func (s *Scanner) Invalidate(folder string) {
	folder, err := canonical(folder)
	if err != nil {
		return
	}
	s.mu.Lock()
	removed := s.cache.remove(folder)
	s.mu.Unlock()
	if removed {
		logging.Debug("Dropped folder index for %s", folder)
	}
}

func (s *Scanner) cached(folder string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cache.entries[folder]
	return ok
}

// names returns the sorted matching names for folder, reading the
// directory only when no valid index is cached.
func (s *Scanner) names(ctx context.Context, folder string, exts []string) ([]string, error) {
	exts = mediatypes.NormalizeExtensions(exts)
	if len(exts) == 0 {
		exts = mediatypes.DefaultExtensions()
	}
	extKey := strings.Join(exts, ",")

	info, err := filesystem.StatWithRetry(folder, s.retry)
	if err != nil {
		return nil, classify(folder, err)
	}
	if !info.IsDir() {
		return nil, &ScanError{Folder: folder, Err: ErrNotFound}
	}

	s.mu.Lock()
	idx, ok := s.cache.get(folder)
	if ok && idx.extKey == extKey && idx.modTime.Equal(info.ModTime()) {
		s.mu.Unlock()
		metrics.ScannerIndexCacheTotal.WithLabelValues("hit").Inc()
		return idx.names, nil
	}
	s.mu.Unlock()
	if ok {
		metrics.ScannerIndexCacheTotal.WithLabelValues("stale").Inc()
	} else {
		metrics.ScannerIndexCacheTotal.WithLabelValues("miss").Inc()
	}

	names, err := s.buildIndex(ctx, folder, exts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache.put(&folderIndex{folder: folder, extKey: extKey, modTime: info.ModTime(), names: names})
	s.mu.Unlock()

	if s.watch {
		if err := s.Watch(folder); err != nil {
			logging.Warn("Failed to watch %s: %v", folder, err)
		}
	}

	return names, nil
}

func (s *Scanner) buildIndex(ctx context.Context, folder string, exts []string) (names []string, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ScannerOperationsTotal.WithLabelValues("index", status).Inc()
		metrics.ScannerOperationDuration.WithLabelValues("index").Observe(time.Since(start).Seconds())
	}()

	// surfaces EACCES before walking; stat alone succeeds on unreadable dirs
	f, err := filesystem.OpenWithRetry(folder, s.retry)
	if err != nil {
		return nil, classify(folder, err)
	}
	f.Close()

	extSet := make(map[string]bool, len(exts))
	for _, ext := range exts {
		extSet[ext] = true
	}

	names, err = listImageNames(ctx, folder, extSet)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classify(folder, err)
	}

	logging.Debug("Indexed %s: %d images in %v", folder, len(names), time.Since(start))
	return names, nil
}

func canonical(folder string) (string, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return folder, err
	}
	return filepath.Clean(abs), nil
}
