package render

import (
	"slices"
	"sync"

	"gallery/internal/logging"
	"gallery/internal/pipeline"
)

// Loop is a Coordinator that serialises everything onto one goroutine,
// which owns the Window and is the only caller of the Renderer.
type Loop struct {
	renderer Renderer
	window   *Window

	msgs     chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a Loop around renderer. The Loop takes ownership of
// window; buffer sizes the message queue (default 256).
func NewLoop(renderer Renderer, window *Window, buffer int) *Loop {
	if window == nil {
		window = NewWindow(0)
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		renderer: renderer,
		window:   window,
		msgs:     make(chan func(), buffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the owner goroutine.
func (l *Loop) Start() {
	go l.run()
}

// Stop ends the owner goroutine. Queued messages are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.quit)
		<-l.done
	})
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.msgs:
			fn()
		case <-l.quit:
			return
		}
	}
}

// post queues fn, blocking while the queue is full. It reports false once
// the Loop is stopped.
func (l *Loop) post(fn func()) bool {
	select {
	case l.msgs <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Sync waits until every message posted before it has been handled.
func (l *Loop) Sync() {
	done := make(chan struct{})
	if l.post(func() { close(done) }) {
		select {
		case <-done:
		case <-l.quit:
		}
	}
}

// SetVisible moves the visible range of the retention window.
func (l *Loop) SetVisible(start, end int) {
	l.post(func() {
		if evicted := l.window.SetVisible(start, end); len(evicted) > 0 {
			l.renderer.Evict(evicted)
		}
	})
}

// Inspect runs fn on the owner goroutine and waits for it.
func (l *Loop) Inspect(fn func(w *Window)) {
	done := make(chan struct{})
	if !l.post(func() { fn(l.window); close(done) }) {
		return
	}
	select {
	case <-done:
	case <-l.quit:
	}
}

func (l *Loop) OnReset(folder string) {
	l.post(func() {
		l.window.Reset()
		l.renderer.Reset(folder)
	})
}

func (l *Loop) OnItem(o pipeline.Outcome) {
	l.post(func() {
		if o.Kind != pipeline.KindReady {
			l.renderer.Show(o)
			return
		}
		evicted := l.window.Put(o.Index, o.DataURI)
		if i := slices.Index(evicted, o.Index); i >= 0 {
			logging.Debug("Thumbnail %d outside retention window, not shown", o.Index)
			evicted = slices.Delete(evicted, i, i+1)
		} else {
			l.renderer.Show(o)
		}
		if len(evicted) > 0 {
			l.renderer.Evict(evicted)
		}
	})
}

func (l *Loop) OnProgress(p Progress) {
	l.post(func() { l.renderer.Progress(p) })
}

func (l *Loop) OnComplete() {
	l.post(l.renderer.Complete)
}

func (l *Loop) OnFailure(err error) {
	l.post(func() { l.renderer.Failure(err) })
}
