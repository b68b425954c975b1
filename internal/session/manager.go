package session

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"gallery/internal/logging"
	"gallery/internal/metrics"
	"gallery/internal/pipeline"
	"gallery/internal/render"
	"gallery/internal/scanner"

	"github.com/google/uuid"
)

// Scanner lists a folder one page at a time. *scanner.Scanner implements it.
type Scanner interface {
	Scan(ctx context.Context, folder string, exts []string, offset, limit int) (*scanner.BatchResult, error)
	ScanAfter(ctx context.Context, folder string, exts []string, after string, limit int) (*scanner.BatchResult, error)
	ResetEstimate(folder string)
}

// Pipeline runs thumbnail tasks. *pipeline.Pool implements it.
type Pipeline interface {
	Submit(task pipeline.Task, onItem pipeline.ItemFunc, onComplete pipeline.CompleteFunc) error
	Cancel(id pipeline.TaskID)
}

// Config holds the session settings.
type Config struct {
	Extensions       []string
	InitialPageLimit int
	LoadMorePageSize int
	ThumbnailSize    int
	// EagerCount is how many images from the first visible one (see
	// SetViewport) are dispatched ahead of the rest of a batch.
	EagerCount int
	// CacheSize bounds the thumbnail cache. Zero disables it.
	CacheSize int
	// Progressive forwards thumbnails as they arrive. When false they are
	// held back and released in index order when the task ends.
	Progressive bool
	// EventBuffer sizes the queue between the workers and the consumer.
	EventBuffer int
}

// DefaultConfig returns the standard session settings.
func DefaultConfig() Config {
	return Config{
		InitialPageLimit: 500,
		LoadMorePageSize: 200,
		ThumbnailSize:    150,
		CacheSize:        DefaultCacheSize,
		Progressive:      true,
		EventBuffer:      256,
	}
}

type eventKind int

const (
	evStart eventKind = iota
	evItem
	evComplete
	evFailure
	evCancelled
)

type event struct {
	kind    eventKind
	id      pipeline.TaskID
	folder  string
	reset   bool
	cached  []pipeline.Outcome
	outcome pipeline.Outcome
	err     error
}

type state struct {
	sessionID  string
	status     Status
	folder     string
	working    []scanner.ImageReference
	hasMore    bool
	nextOffset int
	estimate   int
	loaded     int
	total      int
	failed     int
}

// Manager is the single live browsing session. It decides which task is
// current and is the only place results are accepted or dropped.
//
// Pipeline callbacks are turned into events on a channel; one consumer
// goroutine checks each against the active task ID, keeps the counts and
// calls the Coordinator. The Coordinator is never called concurrently.
type Manager struct {
	cfg     Config
	scanner Scanner
	pool    Pipeline
	coord   render.Coordinator
	cache   *Cache

	nextID   atomic.Uint64
	active   atomic.Uint64
	viewport atomic.Int64

	mu      sync.Mutex
	st      state
	closed  bool
	subs    map[int]chan render.Progress
	nextSub int

	events    chan event
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// owned by the consumer goroutine
	current pipeline.TaskID
	held    []pipeline.Outcome
}

// New creates a Manager and starts its consumer goroutine. A nil
// coordinator discards output.
func New(sc Scanner, pool Pipeline, coord render.Coordinator, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.InitialPageLimit <= 0 {
		cfg.InitialPageLimit = def.InitialPageLimit
	}
	if cfg.LoadMorePageSize <= 0 {
		cfg.LoadMorePageSize = def.LoadMorePageSize
	}
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = def.ThumbnailSize
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	if coord == nil {
		coord = render.Discard{}
	}

	m := &Manager{
		cfg:     cfg,
		scanner: sc,
		pool:    pool,
		coord:   coord,
		cache:   NewCache(cfg.CacheSize),
		subs:    make(map[int]chan render.Progress),
		events:  make(chan event, cfg.EventBuffer),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go m.consume()
	return m
}

// OpenFolder makes folder the session's folder: it invalidates every
// outstanding result, scans the first page and starts generating its
// thumbnails. It may be called in any state.
//
// A scan failure is returned and leaves the previous view in place with
// the session idle.
func (m *Manager) OpenFolder(ctx context.Context, folder string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	id := m.mint()
	prev := pipeline.TaskID(m.active.Swap(uint64(id)))
	m.setStatus(StatusScanning)
	m.mu.Unlock()

	if prev != 0 {
		m.pool.Cancel(prev)
	}

	m.scanner.ResetEstimate(folder)
	res, err := m.scanner.Scan(ctx, folder, m.cfg.Extensions, 0, m.cfg.InitialPageLimit)

	m.mu.Lock()
	if !m.isCurrent(id) {
		m.mu.Unlock()
		logging.Debug("Scan of %s superseded", folder)
		return nil
	}
	if err != nil {
		m.active.Store(0)
		m.setStatus(StatusIdle)
		m.mu.Unlock()
		logging.Warn("Failed to open %s: %v", folder, err)
		return err
	}

	m.st = state{
		sessionID:  uuid.NewString(),
		status:     m.st.status,
		folder:     folder,
		working:    slices.Clone(res.Images),
		hasMore:    res.HasMore,
		nextOffset: res.NextOffset,
		estimate:   res.TotalCountEstimate,
	}
	logging.Info("Session %s opened %s: %d images (estimate %d, more: %v)",
		m.st.sessionID, folder, len(res.Images), res.TotalCountEstimate, res.HasMore)
	m.mu.Unlock()

	m.start(id, res.Images, folder, true)
	return nil
}

// LoadMore scans the next page of the current folder and generates its
// thumbnails as a separate task. The session must be idle or complete.
func (m *Manager) LoadMore(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.st.folder == "":
		m.mu.Unlock()
		return ErrNoFolder
	case m.st.status != StatusIdle && m.st.status != StatusComplete:
		m.mu.Unlock()
		return ErrBusy
	case !m.st.hasMore:
		m.mu.Unlock()
		return ErrNoMore
	}

	id := m.mint()
	m.active.Store(uint64(id))
	prevStatus := m.st.status
	folder, offset := m.st.folder, m.st.nextOffset
	var last string
	if n := len(m.st.working); n > 0 {
		last = m.st.working[n-1].Path
	}
	m.setStatus(StatusScanning)
	m.mu.Unlock()

	// resume after the last listed image so a folder that changed since the
	// previous page neither repeats nor skips anything
	var res *scanner.BatchResult
	var err error
	if last != "" {
		res, err = m.scanner.ScanAfter(ctx, folder, m.cfg.Extensions, last, m.cfg.LoadMorePageSize)
	} else {
		res, err = m.scanner.Scan(ctx, folder, m.cfg.Extensions, offset, m.cfg.LoadMorePageSize)
	}

	m.mu.Lock()
	if !m.isCurrent(id) {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.active.Store(0)
		m.setStatus(prevStatus)
		m.mu.Unlock()
		logging.Warn("Failed to load more from %s: %v", folder, err)
		return err
	}

	// Index is the position in the working set, which drifts from the
	// folder position once the folder changes between pages
	images := slices.Clone(res.Images)
	for i := range images {
		images[i].Index = len(m.st.working) + i
	}
	m.st.working = append(m.st.working, images...)
	m.st.hasMore = res.HasMore
	m.st.nextOffset = res.NextOffset
	m.st.estimate = max(m.st.estimate, res.TotalCountEstimate)
	logging.Debug("Session %s loaded %d more images from offset %d", m.st.sessionID, len(images), res.Offset)
	m.mu.Unlock()

	m.start(id, images, folder, false)
	return nil
}

// Cancel stops the running task. Thumbnails already delivered stay. It
// does nothing unless thumbnails are being generated, and may be called
// from any goroutine, the Coordinator included.
func (m *Manager) Cancel() {
	m.mu.Lock()
	if m.st.status != StatusGenerating {
		m.mu.Unlock()
		return
	}
	id := pipeline.TaskID(m.active.Swap(0))
	m.setStatus(StatusCancelling)
	m.mu.Unlock()

	m.pool.Cancel(id)

	m.mu.Lock()
	if m.st.status == StatusCancelling {
		m.setStatus(StatusComplete)
	}
	m.mu.Unlock()
	logging.Debug("Task %d cancelled", id)

	ev := event{kind: evCancelled, id: id}
	select {
	case m.events <- ev:
	default:
		// the caller may be the consumer itself
		go m.send(ev)
	}
}

// SetViewport records the Index of the first image on screen. Batches
// started afterwards generate the EagerCount images from there first.
func (m *Manager) SetViewport(first int) {
	m.viewport.Store(int64(max(first, 0)))
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		SessionID:      m.st.sessionID,
		ActiveTaskID:   pipeline.TaskID(m.active.Load()),
		Status:         m.st.status,
		Folder:         m.st.folder,
		LoadedCount:    m.st.loaded,
		TotalCount:     m.st.total,
		Failed:         m.st.failed,
		HasMore:        m.st.hasMore,
		TotalEstimate:  m.st.estimate,
		WorkingSetSize: len(m.st.working),
	}
}

// WorkingSet returns a copy of every image listed so far.
func (m *Manager) WorkingSet() []scanner.ImageReference {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.st.working)
}

// GetStats implements metrics.StatsProvider.
func (m *Manager) GetStats() metrics.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return metrics.Stats{
		WorkingSet:   len(m.st.working),
		Loaded:       m.st.loaded,
		Failed:       m.st.failed,
		CacheEntries: m.cache.Len(),
	}
}

// Subscribe returns a channel of progress updates and a function that
// ends the subscription. Updates are dropped while the channel is full.
func (m *Manager) Subscribe() (<-chan render.Progress, func()) {
	ch := make(chan render.Progress, 16)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(ch)
			}
		})
	}
}

// Close cancels any running task and stops the consumer. The Manager
// cannot be used afterwards.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		id := pipeline.TaskID(m.active.Swap(0))
		m.mu.Unlock()

		if id != 0 {
			m.pool.Cancel(id)
		}
		close(m.quit)
		<-m.done

		m.mu.Lock()
		for key, ch := range m.subs {
			delete(m.subs, key)
			close(ch)
		}
		m.mu.Unlock()
		logging.Debug("Session manager closed")
	})
}

func (m *Manager) mint() pipeline.TaskID {
	return pipeline.TaskID(m.nextID.Add(1))
}

func (m *Manager) isCurrent(id pipeline.TaskID) bool {
	return id != 0 && m.active.Load() == uint64(id)
}

// setStatus must be called with mu held.
func (m *Manager) setStatus(s Status) {
	if m.st.status == s {
		return
	}
	logging.Debug("Session %s: %s -> %s", m.st.sessionID, m.st.status, s)
	m.st.status = s
	metrics.SessionTransitionsTotal.WithLabelValues(s.String()).Inc()
}

// start delivers cached thumbnails for refs and submits the rest.
func (m *Manager) start(id pipeline.TaskID, refs []scanner.ImageReference, folder string, reset bool) {
	size := m.cfg.ThumbnailSize

	var cached []pipeline.Outcome
	todo := make([]scanner.ImageReference, 0, len(refs))
	for _, ref := range refs {
		if uri, ok := m.cache.Get(ref.Path, size); ok {
			cached = append(cached, pipeline.Outcome{
				TaskID: id, Index: ref.Index, Path: ref.Path, Kind: pipeline.KindReady, DataURI: uri,
			})
			continue
		}
		todo = append(todo, ref)
	}

	m.mu.Lock()
	if !m.isCurrent(id) {
		m.mu.Unlock()
		return
	}
	m.st.loaded = 0
	m.st.total = len(refs)
	m.setStatus(StatusGenerating)
	m.mu.Unlock()

	if !m.send(event{kind: evStart, id: id, folder: folder, reset: reset, cached: cached}) {
		return
	}
	if len(todo) == 0 {
		m.send(event{kind: evComplete, id: id})
		return
	}

	task := pipeline.Task{
		ID:            id,
		Items:         todo,
		ThumbnailSize: size,
		Current:       m.isCurrent,
	}
	if m.cfg.EagerCount > 0 {
		task.PriorityOrder = pipeline.PriorityOrder(todo, m.eagerStart(todo), m.cfg.EagerCount)
	}

	err := m.pool.Submit(task, m.onItem, m.onComplete)
	if err != nil {
		logging.Error("Failed to start thumbnail task %d: %v", id, err)
		m.send(event{kind: evFailure, id: id, err: err})
		m.send(event{kind: evComplete, id: id})
		return
	}
	logging.Debug("Task %d started: %d to generate, %d cached", id, len(todo), len(cached))
}

// eagerStart returns the position in refs of the first image at or after
// the viewport.
func (m *Manager) eagerStart(refs []scanner.ImageReference) int {
	first := int(m.viewport.Load())
	pos, _ := slices.BinarySearchFunc(refs, first, func(ref scanner.ImageReference, idx int) int {
		return ref.Index - idx
	})
	return pos
}

func (m *Manager) onItem(o pipeline.Outcome) {
	m.send(event{kind: evItem, id: o.TaskID, outcome: o})
}

func (m *Manager) onComplete(id pipeline.TaskID) {
	m.send(event{kind: evComplete, id: id})
}

func (m *Manager) send(ev event) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.quit:
		return false
	}
}

func (m *Manager) consume() {
	defer close(m.done)
	for {
		select {
		case ev := <-m.events:
			m.handle(ev)
		case <-m.quit:
			return
		}
	}
}

func (m *Manager) handle(ev event) {
	switch ev.kind {
	case evStart:
		if !m.isCurrent(ev.id) {
			return
		}
		m.current = ev.id
		// anything still held belongs to a task that ended without release
		m.held = nil
		if ev.reset {
			m.coord.OnReset(ev.folder)
		}
		for _, o := range ev.cached {
			m.accept(o)
		}
		m.publish()

	case evItem:
		// the active ID is read again here, at delivery
		if ev.id != m.current || !m.isCurrent(ev.id) {
			logging.Debug("Dropping stale result for %s (task %d)", ev.outcome.Path, ev.id)
			return
		}
		m.accept(ev.outcome)
		m.publish()

	case evFailure:
		if m.isCurrent(ev.id) {
			m.coord.OnFailure(ev.err)
		}

	case evComplete:
		if !m.isCurrent(ev.id) {
			return
		}
		m.mu.Lock()
		if m.st.status == StatusGenerating {
			m.setStatus(StatusComplete)
		}
		m.mu.Unlock()
		m.flush(ev.id)
		m.publish()
		m.coord.OnComplete()
		logging.Debug("Task %d complete", ev.id)

	case evCancelled:
		if ev.id != m.current {
			return
		}
		// held outcomes were never shown and stay unshown
		if len(m.held) > 0 {
			logging.Debug("Discarding %d held results of cancelled task %d", len(m.held), ev.id)
			m.held = nil
		}
		m.publish()
	}
}

func (m *Manager) accept(o pipeline.Outcome) {
	m.mu.Lock()
	m.st.loaded++
	if o.Kind == pipeline.KindFailed {
		m.st.failed++
	}
	m.mu.Unlock()

	if o.Kind == pipeline.KindReady {
		m.cache.Put(o.Path, m.cfg.ThumbnailSize, o.DataURI)
	} else {
		logging.Debug("Thumbnail failed for %s: %v", o.Path, o.Err)
	}

	if m.cfg.Progressive {
		m.coord.OnItem(o)
		return
	}
	m.held = append(m.held, o)
}

// flush releases the held outcomes of task id in index order.
func (m *Manager) flush(id pipeline.TaskID) {
	held := m.held
	m.held = nil
	slices.SortFunc(held, func(a, b pipeline.Outcome) int { return a.Index - b.Index })
	for _, o := range held {
		if o.TaskID == id {
			m.coord.OnItem(o)
		}
	}
}

func (m *Manager) publish() {
	m.mu.Lock()
	p := render.Progress{
		Loaded:          m.st.loaded,
		Total:           m.st.total,
		Failed:          m.st.failed,
		WorkingSet:      len(m.st.working),
		HasMore:         m.st.hasMore,
		CancelAvailable: m.st.status == StatusGenerating,
	}
	for _, ch := range m.subs {
		select {
		case ch <- p:
		default:
		}
	}
	m.mu.Unlock()

	m.coord.OnProgress(p)
}
