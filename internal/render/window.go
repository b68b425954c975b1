package render

import "sort"

// DefaultRetention is the default number of thumbnails a Window keeps.
const DefaultRetention = 2000

// Window is a bounded store of thumbnails keyed by index. When full, the
// entry farthest from the visible range [start, end) is evicted. Entries
// inside the visible range are never evicted, so a visible range larger
// than the capacity lets the window grow past it.
//
// A Window is not safe for concurrent use; it belongs to the goroutine
// that owns the view.
type Window struct {
	capacity   int
	start, end int
	items      map[int]string
}

// NewWindow returns an empty Window. A non-positive capacity uses
// DefaultRetention.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultRetention
	}
	return &Window{capacity: capacity, items: make(map[int]string)}
}

// Capacity returns the retention cap.
func (w *Window) Capacity() int { return w.capacity }

// Visible returns the visible range.
func (w *Window) Visible() (start, end int) { return w.start, w.end }

// SetVisible moves the visible range and returns the indices evicted to get
// back under capacity, in ascending order.
func (w *Window) SetVisible(start, end int) []int {
	if start < 0 {
		start = 0
	}
	if end < start {
		end = start
	}
	w.start, w.end = start, end
	return w.trim()
}

// Put stores a thumbnail and returns the evicted indices in ascending
// order. The returned slice contains index itself when the new entry is
// the farthest from view.
func (w *Window) Put(index int, dataURI string) []int {
	w.items[index] = dataURI
	return w.trim()
}

// Get returns the stored thumbnail for index.
func (w *Window) Get(index int) (string, bool) {
	uri, ok := w.items[index]
	return uri, ok
}

// Len returns the number of stored thumbnails.
func (w *Window) Len() int { return len(w.items) }

// Indices returns the stored indices in ascending order.
func (w *Window) Indices() []int {
	out := make([]int, 0, len(w.items))
	for idx := range w.items {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Reset drops every entry and the visible range.
func (w *Window) Reset() {
	w.items = make(map[int]string)
	w.start, w.end = 0, 0
}

func (w *Window) distance(index int) int {
	switch {
	case index < w.start:
		return w.start - index
	case index >= w.end:
		return index - w.end + 1
	default:
		return 0
	}
}

func (w *Window) trim() []int {
	var evicted []int
	for len(w.items) > w.capacity {
		victim, far := -1, 0
		for idx := range w.items {
			d := w.distance(idx)
			if d == 0 {
				continue
			}
			// ties go to the higher index
			if d > far || (d == far && idx > victim) {
				victim, far = idx, d
			}
		}
		if victim < 0 {
			break
		}
		delete(w.items, victim)
		evicted = append(evicted, victim)
	}
	sort.Ints(evicted)
	return evicted
}
