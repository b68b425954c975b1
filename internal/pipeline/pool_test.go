package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery/internal/scanner"
	"gallery/internal/thumbnail"
)

// fakeCodec returns "data:<path>" after delay, or the error from fail.
type fakeCodec struct {
	delay time.Duration
	fail  func(path string) error
	calls atomic.Int64

	// gate, when set, blocks every call until it is closed, ignoring ctx.
	gate chan struct{}
}

func (c *fakeCodec) Generate(ctx context.Context, path string, size int) (string, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if c.fail != nil {
		if err := c.fail(path); err != nil {
			return "", err
		}
	}
	return "data:" + path, nil
}

type collector struct {
	mu       sync.Mutex
	outcomes []Outcome
	done     chan TaskID
}

func newCollector() *collector {
	return &collector{done: make(chan TaskID, 1)}
}

func (c *collector) item(o Outcome) {
	c.mu.Lock()
	c.outcomes = append(c.outcomes, o)
	c.mu.Unlock()
}

func (c *collector) complete(id TaskID) {
	c.done <- id
}

func (c *collector) snapshot() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Outcome(nil), c.outcomes...)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

func refs(n int) []scanner.ImageReference {
	out := make([]scanner.ImageReference, n)
	for i := range out {
		out[i] = scanner.ImageReference{Path: fmt.Sprintf("img_%03d.jpg", i), Index: i}
	}
	return out
}

func waitComplete(t *testing.T, c *collector, id TaskID) {
	t.Helper()
	select {
	case got := <-c.done:
		assert.Equal(t, id, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("task %d did not complete", id)
	}
}

func TestPoolDeliversEveryItem(t *testing.T) {
	codec := &fakeCodec{delay: time.Millisecond}
	p := New(codec, Options{Workers: 4})
	defer p.Close()

	c := newCollector()
	require.NoError(t, p.Submit(Task{ID: 1, Items: refs(100), ThumbnailSize: 200}, c.item, c.complete))
	waitComplete(t, c, 1)

	outcomes := c.snapshot()
	require.Len(t, outcomes, 100)
	seen := make(map[int]bool)
	for _, o := range outcomes {
		assert.Equal(t, TaskID(1), o.TaskID)
		assert.Equal(t, KindReady, o.Kind)
		assert.Equal(t, "data:"+o.Path, o.DataURI)
		assert.False(t, seen[o.Index], "index %d delivered twice", o.Index)
		seen[o.Index] = true
	}
	assert.False(t, p.Active(1))
}

func TestPoolBoundsConcurrency(t *testing.T) {
	codec := &fakeCodec{delay: 5 * time.Millisecond}
	p := New(codec, Options{Workers: 3})
	defer p.Close()

	c := newCollector()
	require.NoError(t, p.Submit(Task{ID: 1, Items: refs(60)}, c.item, c.complete))
	waitComplete(t, c, 1)

	assert.LessOrEqual(t, p.MaxInFlight(), 3)
	assert.Equal(t, 0, p.InFlight())
}

func TestPoolCancelStopsDelivery(t *testing.T) {
	const workers = 4
	codec := &fakeCodec{delay: 2 * time.Millisecond}
	p := New(codec, Options{Workers: workers})
	defer p.Close()

	var (
		delivered     atomic.Int64
		afterCancel   atomic.Int64
		cancelled     atomic.Bool
		cancelledOnce sync.Once
		completed     atomic.Bool
	)
	onItem := func(Outcome) {
		if cancelled.Load() {
			afterCancel.Add(1)
		}
		if delivered.Add(1) == 20 {
			cancelledOnce.Do(func() {
				cancelled.Store(true)
				p.Cancel(1)
			})
		}
	}
	require.NoError(t, p.Submit(Task{ID: 1, Items: refs(100)}, onItem, func(TaskID) { completed.Store(true) }))

	require.Eventually(t, func() bool {
		return cancelled.Load() && p.InFlight() == 0
	}, 5*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.False(t, completed.Load(), "cancelled task must not complete")
	assert.Less(t, codec.calls.Load(), int64(100))
	assert.LessOrEqual(t, afterCancel.Load(), int64(workers))
	assert.False(t, p.Active(1))
}

func TestPoolCancelIsIdempotent(t *testing.T) {
	codec := &fakeCodec{delay: 10 * time.Millisecond}
	p := New(codec, Options{Workers: 2})
	defer p.Close()

	c := newCollector()
	require.NoError(t, p.Submit(Task{ID: 7, Items: refs(20)}, c.item, c.complete))

	p.Cancel(7)
	p.Cancel(7)
	p.Cancel(99)
	assert.False(t, p.Active(7))

	require.Eventually(t, func() bool { return p.InFlight() == 0 }, 5*time.Second, 5*time.Millisecond)
	select {
	case <-c.done:
		t.Fatal("cancelled task completed")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestPoolSubmitValidation(t *testing.T) {
	codec := &fakeCodec{gate: make(chan struct{})}
	p := New(codec, Options{Workers: 1, MaxTasks: 2})

	noop := func(Outcome) {}
	assert.ErrorIs(t, p.Submit(Task{ID: 0, Items: refs(1)}, noop, nil), ErrInvalidTask)
	assert.ErrorIs(t, p.Submit(Task{ID: 1, Items: refs(1)}, nil, nil), ErrInvalidTask)

	require.NoError(t, p.Submit(Task{ID: 1, Items: refs(1)}, noop, nil))
	assert.ErrorIs(t, p.Submit(Task{ID: 1, Items: refs(1)}, noop, nil), ErrInvalidTask)
	require.NoError(t, p.Submit(Task{ID: 2, Items: refs(1)}, noop, nil))
	assert.ErrorIs(t, p.Submit(Task{ID: 3, Items: refs(1)}, noop, nil), ErrPoolExhausted)

	close(codec.gate)
	p.Close()
	assert.ErrorIs(t, p.Submit(Task{ID: 4, Items: refs(1)}, noop, nil), ErrPoolClosed)
}

func TestPoolCorruptImageFailsAlone(t *testing.T) {
	dir := t.TempDir()
	var items []scanner.ImageReference
	for i := 0; i < 10; i++ {
		path := filepath.Join(dir, fmt.Sprintf("ok_%02d.png", i))
		writePNG(t, path, 64, 48)
		items = append(items, scanner.ImageReference{Path: path, Index: i})
	}
	corrupt := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("not an image at all"), 0o644))
	items = append(items, scanner.ImageReference{Path: corrupt, Index: 10})

	gen := thumbnail.New(thumbnail.Options{})
	p := New(gen, Options{Workers: 4})
	defer p.Close()

	c := newCollector()
	require.NoError(t, p.Submit(Task{ID: 1, Items: items, ThumbnailSize: 32}, c.item, c.complete))
	waitComplete(t, c, 1)

	var ready, failed int
	for _, o := range c.snapshot() {
		switch o.Kind {
		case KindReady:
			ready++
			assert.Contains(t, o.DataURI, "data:image/jpeg;base64,")
		case KindFailed:
			failed++
			assert.Equal(t, 10, o.Index)
			assert.ErrorIs(t, o.Err, thumbnail.ErrDecode)
		}
	}
	assert.Equal(t, 10, ready)
	assert.Equal(t, 1, failed)
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestPoolTimeoutReportsPromptlyAndHoldsSlot(t *testing.T) {
	gate := make(chan struct{})
	codec := &fakeCodec{fail: func(path string) error {
		if path == "img_000.jpg" {
			<-gate
		}
		return nil
	}}
	p := New(codec, Options{Workers: 1, ItemTimeout: 30 * time.Millisecond})
	defer p.Close()

	c := newCollector()
	require.NoError(t, p.Submit(Task{ID: 1, Items: refs(2)}, c.item, c.complete))

	require.Eventually(t, func() bool { return c.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	first := c.snapshot()[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, KindFailed, first.Kind)
	assert.ErrorIs(t, first.Err, ErrTimeout)

	// the single worker is still held by the abandoned decode
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, c.count())
	assert.Equal(t, int64(1), codec.calls.Load())

	close(gate)
	waitComplete(t, c, 1)
	outcomes := c.snapshot()
	require.Len(t, outcomes, 2)
	assert.Equal(t, KindReady, outcomes[1].Kind)
	assert.LessOrEqual(t, p.MaxInFlight(), 1)
}

type panicCodec struct{}

func (panicCodec) Generate(ctx context.Context, path string, size int) (string, error) {
	if path == "img_001.jpg" {
		panic("decoder exploded")
	}
	return "data:" + path, nil
}

func TestPoolRecoversCodecPanic(t *testing.T) {
	p := New(panicCodec{}, Options{Workers: 2})
	defer p.Close()

	c := newCollector()
	require.NoError(t, p.Submit(Task{ID: 1, Items: refs(3)}, c.item, c.complete))
	waitComplete(t, c, 1)

	outcomes := c.snapshot()
	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		if o.Index == 1 {
			assert.Equal(t, KindFailed, o.Kind)
			assert.ErrorIs(t, o.Err, ErrCodecPanic)
		} else {
			assert.Equal(t, KindReady, o.Kind)
		}
	}
}

func TestPoolCodecErrorIsDelivered(t *testing.T) {
	boom := errors.New("boom")
	codec := &fakeCodec{fail: func(path string) error {
		if path == "img_002.jpg" {
			return boom
		}
		return nil
	}}
	p := New(codec, Options{Workers: 2})
	defer p.Close()

	c := newCollector()
	require.NoError(t, p.Submit(Task{ID: 1, Items: refs(4)}, c.item, c.complete))
	waitComplete(t, c, 1)

	for _, o := range c.snapshot() {
		if o.Index == 2 {
			assert.ErrorIs(t, o.Err, boom)
		} else {
			assert.NoError(t, o.Err)
		}
	}
}

func TestPoolPriorityOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	codec := &fakeCodec{fail: func(path string) error {
		mu.Lock()
		order = append(order, path)
		mu.Unlock()
		return nil
	}}
	p := New(codec, Options{Workers: 1})
	defer p.Close()

	items := refs(6)
	c := newCollector()
	task := Task{ID: 1, Items: items, PriorityOrder: PriorityOrder(items, 3, 2)}
	require.NoError(t, p.Submit(task, c.item, c.complete))
	waitComplete(t, c, 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"img_003.jpg", "img_004.jpg", "img_000.jpg", "img_001.jpg", "img_002.jpg", "img_005.jpg",
	}, order)
}

func TestPoolEmptyTaskCompletes(t *testing.T) {
	p := New(&fakeCodec{}, Options{Workers: 1})
	defer p.Close()

	c := newCollector()
	require.NoError(t, p.Submit(Task{ID: 5}, c.item, c.complete))
	waitComplete(t, c, 5)
	assert.Zero(t, c.count())
}

func TestPoolCurrentPredicate(t *testing.T) {
	codec := &fakeCodec{delay: time.Millisecond}
	p := New(codec, Options{Workers: 1})
	defer p.Close()

	var current atomic.Bool
	current.Store(true)
	var delivered atomic.Int64
	onItem := func(Outcome) {
		if delivered.Add(1) == 3 {
			current.Store(false)
		}
	}
	var completed atomic.Bool
	task := Task{ID: 1, Items: refs(50), Current: func(TaskID) bool { return current.Load() }}
	require.NoError(t, p.Submit(task, onItem, func(TaskID) { completed.Store(true) }))

	require.Eventually(t, func() bool { return !p.Active(1) && p.InFlight() == 0 }, 5*time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, delivered.Load(), int64(4))
	assert.False(t, completed.Load())
}

type gateWaiter struct {
	open chan struct{}
}

func (w *gateWaiter) Wait(ctx context.Context) error {
	select {
	case <-w.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestPoolWaitsForWaiter(t *testing.T) {
	w := &gateWaiter{open: make(chan struct{})}
	codec := &fakeCodec{}
	p := New(codec, Options{Workers: 2, Waiter: w})
	defer p.Close()

	c := newCollector()
	require.NoError(t, p.Submit(Task{ID: 1, Items: refs(5)}, c.item, c.complete))

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, codec.calls.Load())

	close(w.open)
	waitComplete(t, c, 1)
	assert.Equal(t, 5, c.count())
}

func TestPoolCloseWhileRunning(t *testing.T) {
	codec := &fakeCodec{delay: 5 * time.Millisecond}
	p := New(codec, Options{Workers: 2})

	c := newCollector()
	require.NoError(t, p.Submit(Task{ID: 1, Items: refs(200)}, c.item, c.complete))
	time.Sleep(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.Less(t, c.count(), 200)
	assert.False(t, p.Active(1))
	p.Close()
}

func TestPriorityOrder(t *testing.T) {
	items := refs(5)
	tests := []struct {
		name         string
		start, eager int
		want         []int
	}{
		{"front window", 0, 2, []int{0, 1, 2, 3, 4}},
		{"middle window", 2, 2, []int{2, 3, 0, 1, 4}},
		{"window past end", 4, 10, []int{4, 0, 1, 2, 3}},
		{"no eager items", 2, 0, []int{0, 1, 2, 3, 4}},
		{"start out of range", 9, 3, []int{0, 1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityOrder(items, tt.start, tt.eager))
		})
	}
}

func TestResolveOrder(t *testing.T) {
	items := []scanner.ImageReference{{Index: 10}, {Index: 11}, {Index: 12}, {Index: 13}}

	assert.Equal(t, []int{0, 1, 2, 3}, resolveOrder(items, nil))
	assert.Equal(t, []int{2, 0, 1, 3}, resolveOrder(items, []int{12, 10}))
	assert.Equal(t, []int{3, 0, 1, 2}, resolveOrder(items, []int{13, 99, 13}))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "ready", KindReady.String())
	assert.Equal(t, "failed", KindFailed.String())
	assert.Equal(t, "stale", KindStale.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
