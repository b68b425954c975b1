package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gallery/internal/logging"
	"gallery/internal/metrics"
	"gallery/internal/scanner"
)

// Options configures a Pool.
type Options struct {
	// Workers is the fixed number of concurrent decodes. Default 4.
	Workers int
	// ItemTimeout bounds the wait for one thumbnail. Default 5s.
	ItemTimeout time.Duration
	// MaxTasks bounds the number of tasks tracked at once, cancelled ones
	// included until their in-flight items drain. Default 64.
	MaxTasks int
	// Waiter, if set, is consulted before every decode.
	Waiter Waiter
}

// Pool is a fixed-size thumbnail worker pool.
//
// Each submitted task gets a dispatcher goroutine that feeds items to the
// shared workers in priority order over an unbuffered channel, so at most
// Workers items are ever started and nothing is queued on behalf of a task
// once it is cancelled.
type Pool struct {
	codec    Codec
	workers  int
	timeout  time.Duration
	maxTasks int
	waiter   Waiter

	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan job

	mu     sync.Mutex
	tasks  map[TaskID]*taskState
	closed bool

	dispatchers sync.WaitGroup
	workerWG    sync.WaitGroup

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

type taskState struct {
	task       Task
	onItem     ItemFunc
	onComplete CompleteFunc

	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	remaining atomic.Int64
	started   time.Time
	finalize  sync.Once
}

type job struct {
	st  *taskState
	ref scanner.ImageReference
}

// New starts a pool of workers around codec.
func New(codec Codec, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 5 * time.Second
	}
	if opts.MaxTasks <= 0 {
		opts.MaxTasks = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		codec:    codec,
		workers:  opts.Workers,
		timeout:  opts.ItemTimeout,
		maxTasks: opts.MaxTasks,
		waiter:   opts.Waiter,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(chan job),
		tasks:    make(map[TaskID]*taskState),
	}

	for i := 0; i < p.workers; i++ {
		p.workerWG.Add(1)
		go p.worker(i)
	}

	metrics.PipelineWorkers.Set(float64(p.workers))
	logging.Debug("Thumbnail pool started with %d workers (timeout %v)", p.workers, p.timeout)
	return p
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// Submit schedules task and returns immediately. onItem receives every
// delivered outcome; onComplete, which may be nil, fires once after the
// last item if the task is still current by then.
//
// Callers cancel any task they are replacing before submitting.
func (p *Pool) Submit(task Task, onItem ItemFunc, onComplete CompleteFunc) error {
	if task.ID == 0 || onItem == nil {
		return ErrInvalidTask
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if _, exists := p.tasks[task.ID]; exists {
		return fmt.Errorf("%w: task %d already submitted", ErrInvalidTask, task.ID)
	}
	if len(p.tasks) >= p.maxTasks {
		metrics.PipelineTasksTotal.WithLabelValues("rejected").Inc()
		logging.Warn("Rejecting task %d: %d tasks already in flight", task.ID, len(p.tasks))
		return ErrPoolExhausted
	}

	ctx, cancel := context.WithCancel(p.ctx)
	st := &taskState{
		task:       task,
		onItem:     onItem,
		onComplete: onComplete,
		ctx:        ctx,
		cancel:     cancel,
		started:    time.Now(),
	}
	st.remaining.Store(int64(len(task.Items)))
	p.tasks[task.ID] = st

	metrics.PipelineTasksActive.Set(float64(len(p.tasks)))
	logging.Debug("Task %d submitted: %d items, size %d", task.ID, len(task.Items), task.ThumbnailSize)

	p.dispatchers.Add(1)
	go p.dispatch(st)
	return nil
}

// Cancel marks the task inactive. Items not yet started are dropped
// without work; items mid-decode finish and their results are dropped.
// Cancel never blocks and may be called any number of times, for any ID.
func (p *Pool) Cancel(id TaskID) {
	p.mu.Lock()
	st := p.tasks[id]
	p.mu.Unlock()

	if st == nil {
		return
	}
	if st.cancelled.CompareAndSwap(false, true) {
		st.cancel()
		logging.Debug("Task %d cancelled with %d items outstanding", id, st.remaining.Load())
	}
}

// Active reports whether id is submitted, unfinished and not cancelled.
func (p *Pool) Active(id TaskID) bool {
	p.mu.Lock()
	st := p.tasks[id]
	p.mu.Unlock()
	return st != nil && !st.cancelled.Load()
}

// InFlight returns the number of codec calls currently running.
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// MaxInFlight returns the highest InFlight value observed.
func (p *Pool) MaxInFlight() int {
	return int(p.maxInFlight.Load())
}

// Close cancels every task and stops the workers once they are idle. Codec
// calls abandoned after a timeout are waited for.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	ids := make([]TaskID, 0, len(p.tasks))
	for id := range p.tasks {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.Cancel(id)
	}
	p.cancel()
	p.dispatchers.Wait()
	close(p.jobs)
	p.workerWG.Wait()

	metrics.PipelineWorkers.Set(0)
	logging.Debug("Thumbnail pool stopped")
}

// current is the relevance check applied before work and before delivery.
func (p *Pool) current(st *taskState) bool {
	if st.cancelled.Load() {
		return false
	}
	if st.task.Current != nil {
		return st.task.Current(st.task.ID)
	}
	return true
}

func (p *Pool) dispatch(st *taskState) {
	defer p.dispatchers.Done()

	items := st.task.Items
	if len(items) == 0 {
		p.finish(st)
		return
	}

	order := resolveOrder(items, st.task.PriorityOrder)
	for i, pos := range order {
		if !p.current(st) {
			p.discard(st, order[i:])
			return
		}
		select {
		case p.jobs <- job{st: st, ref: items[pos]}:
		case <-st.ctx.Done():
			p.discard(st, order[i:])
			return
		}
	}
}

// discard accounts for items that will never be started.
func (p *Pool) discard(st *taskState, positions []int) {
	if len(positions) == 0 {
		return
	}
	metrics.ThumbnailGenerationsTotal.WithLabelValues("stale").Add(float64(len(positions)))
	if st.remaining.Add(-int64(len(positions))) == 0 {
		p.finish(st)
	}
}

func (p *Pool) itemDone(st *taskState) {
	if st.remaining.Add(-1) == 0 {
		p.finish(st)
	}
}

// finish runs once per task, after its last item is accounted for.
func (p *Pool) finish(st *taskState) {
	st.finalize.Do(func() {
		p.mu.Lock()
		delete(p.tasks, st.task.ID)
		active := len(p.tasks)
		p.mu.Unlock()
		metrics.PipelineTasksActive.Set(float64(active))

		current := p.current(st)
		st.cancel()

		if !current {
			metrics.PipelineTasksTotal.WithLabelValues("cancelled").Inc()
			logging.Debug("Task %d finished after cancellation", st.task.ID)
			return
		}

		metrics.PipelineTasksTotal.WithLabelValues("completed").Inc()
		metrics.PipelineTaskDuration.Observe(time.Since(st.started).Seconds())
		logging.Debug("Task %d complete: %d items in %v", st.task.ID, len(st.task.Items), time.Since(st.started))
		if st.onComplete != nil {
			st.onComplete(st.task.ID)
		}
	})
}

func (p *Pool) worker(id int) {
	defer p.workerWG.Done()
	logging.Debug("Thumbnail worker %d started", id)

	for j := range p.jobs {
		p.process(j)
	}

	logging.Debug("Thumbnail worker %d stopped", id)
}

func (p *Pool) process(j job) {
	st := j.st

	if !p.current(st) {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("stale").Inc()
		p.itemDone(st)
		return
	}

	if p.waiter != nil {
		if err := p.waiter.Wait(st.ctx); err != nil || !p.current(st) {
			metrics.ThumbnailGenerationsTotal.WithLabelValues("stale").Inc()
			p.itemDone(st)
			return
		}
	}

	out, pending := p.generate(st, j.ref)

	if out.Kind == KindStale || !p.current(st) {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("stale").Inc()
	} else {
		if out.Kind == KindReady {
			metrics.ThumbnailGenerationsTotal.WithLabelValues("ready").Inc()
		} else if errors.Is(out.Err, ErrTimeout) {
			metrics.ThumbnailGenerationsTotal.WithLabelValues("timeout").Inc()
		} else {
			metrics.ThumbnailGenerationsTotal.WithLabelValues("failed").Inc()
		}
		st.onItem(out)
	}
	p.itemDone(st)

	// an abandoned codec call keeps this worker's slot until it returns
	if pending != nil {
		<-pending
	}
}

type codecResult struct {
	uri string
	err error
}

// generate runs the codec under the item deadline. If the deadline passes
// or the task is cancelled first, it returns without the result and hands
// back a channel that closes when the codec call finally returns.
func (p *Pool) generate(st *taskState, ref scanner.ImageReference) (Outcome, <-chan struct{}) {
	out := Outcome{TaskID: st.task.ID, Index: ref.Index, Path: ref.Path}

	ctx, cancel := context.WithTimeout(st.ctx, p.timeout)
	resCh := make(chan codecResult, 1)
	pending := make(chan struct{})

	p.enter()
	go func() {
		defer close(pending)
		r := p.invoke(ctx, ref.Path, st.task.ThumbnailSize)
		p.leave()
		resCh <- r
	}()

	select {
	case r := <-resCh:
		cancel()
		switch {
		case r.err == nil:
			out.Kind = KindReady
			out.DataURI = r.uri
		case errors.Is(r.err, context.DeadlineExceeded):
			out.Kind = KindFailed
			out.Err = fmt.Errorf("%w after %v", ErrTimeout, p.timeout)
		case errors.Is(r.err, context.Canceled):
			out.Kind = KindStale
		default:
			out.Kind = KindFailed
			out.Err = r.err
		}
		return out, nil

	case <-ctx.Done():
		timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
		cancel()
		if timedOut {
			logging.Warn("Thumbnail for %s timed out after %v", ref.Path, p.timeout)
			out.Kind = KindFailed
			out.Err = fmt.Errorf("%w after %v", ErrTimeout, p.timeout)
		} else {
			out.Kind = KindStale
		}
		return out, pending
	}
}

func (p *Pool) invoke(ctx context.Context, path string, size int) (r codecResult) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("Thumbnail codec panicked on %s: %v", path, rec)
			r = codecResult{err: fmt.Errorf("%w: %v", ErrCodecPanic, rec)}
		}
	}()
	uri, err := p.codec.Generate(ctx, path, size)
	return codecResult{uri: uri, err: err}
}

func (p *Pool) enter() {
	n := p.inFlight.Add(1)
	metrics.ThumbnailsInFlight.Inc()
	for {
		m := p.maxInFlight.Load()
		if n <= m || p.maxInFlight.CompareAndSwap(m, n) {
			return
		}
	}
}

func (p *Pool) leave() {
	p.inFlight.Add(-1)
	metrics.ThumbnailsInFlight.Dec()
}
