package pipeline

import (
	"context"
	"errors"
	"fmt"

	"gallery/internal/scanner"
)

// TaskID identifies a generation task. IDs are minted by the caller from a
// monotonically increasing counter; zero is never a valid task.
type TaskID uint64

// Kind tags an Outcome.
type Kind int

const (
	// KindReady carries an encoded thumbnail.
	KindReady Kind = iota
	// KindFailed carries the reason the item produced no thumbnail.
	KindFailed
	// KindStale marks a result whose task stopped being current. Stale
	// outcomes are dropped before delivery.
	KindStale
)

func (k Kind) String() string {
	switch k {
	case KindReady:
		return "ready"
	case KindFailed:
		return "failed"
	case KindStale:
		return "stale"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of one item.
type Outcome struct {
	TaskID  TaskID
	Index   int
	Path    string
	Kind    Kind
	DataURI string
	Err     error
}

// Task is a batch of images to thumbnail.
type Task struct {
	ID            TaskID
	Items         []scanner.ImageReference
	ThumbnailSize int
	// PriorityOrder lists Index values to dispatch first; items it omits
	// follow in their natural order. Nil means natural order.
	PriorityOrder []int
	// Current, when set, decides whether the task is still wanted. It is
	// consulted before work starts on an item and again before delivery,
	// in addition to the pool's own cancellation state.
	Current func(TaskID) bool
}

// ItemFunc receives each delivered outcome. It is called from worker
// goroutines and must not block for long.
type ItemFunc func(Outcome)

// CompleteFunc is called once when every item of a still-current task has
// been delivered or discarded.
type CompleteFunc func(TaskID)

// Codec produces one thumbnail. thumbnail.Generator implements it.
type Codec interface {
	Generate(ctx context.Context, path string, size int) (string, error)
}

// Waiter blocks while work should be held back. memory.Monitor implements it.
type Waiter interface {
	Wait(ctx context.Context) error
}

var (
	// ErrTimeout is the Failed reason for an item that exceeded the per-item deadline.
	ErrTimeout = errors.New("thumbnail generation timed out")
	// ErrPoolExhausted is returned by Submit when too many tasks are in flight.
	ErrPoolExhausted = errors.New("worker pool exhausted")
	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("worker pool closed")
	// ErrInvalidTask is returned by Submit for a zero or duplicate task ID.
	ErrInvalidTask = errors.New("invalid task")
	// ErrCodecPanic is the Failed reason for an item whose codec panicked.
	ErrCodecPanic = errors.New("thumbnail codec panicked")
)

// PriorityOrder returns the Index values of items with the eager items
// starting at position start moved to the front. Relative order is kept
// within both groups.
func PriorityOrder(items []scanner.ImageReference, start, eager int) []int {
	start = max(0, min(start, len(items)))
	end := max(start, min(start+max(eager, 0), len(items)))

	order := make([]int, 0, len(items))
	for _, ref := range items[start:end] {
		order = append(order, ref.Index)
	}
	for _, ref := range items[:start] {
		order = append(order, ref.Index)
	}
	for _, ref := range items[end:] {
		order = append(order, ref.Index)
	}
	return order
}

// resolveOrder maps a priority list of Index values onto positions in
// items. Unknown and repeated indices are ignored; every item appears once.
func resolveOrder(items []scanner.ImageReference, priority []int) []int {
	order := make([]int, 0, len(items))
	seen := make([]bool, len(items))

	if len(priority) > 0 {
		position := make(map[int]int, len(items))
		for i, ref := range items {
			position[ref.Index] = i
		}
		for _, idx := range priority {
			if p, ok := position[idx]; ok && !seen[p] {
				seen[p] = true
				order = append(order, p)
			}
		}
	}

	for p := range items {
		if !seen[p] {
			order = append(order, p)
		}
	}
	return order
}
