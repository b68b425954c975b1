package tui

import (
	"sync"

	"gallery/internal/pipeline"
	"gallery/internal/render"

	tea "github.com/charmbracelet/bubbletea"
)

type (
	resetMsg    struct{ folder string }
	itemMsg     struct{ outcome pipeline.Outcome }
	progressMsg struct{ progress render.Progress }
	completeMsg struct{}
	failureMsg  struct{ err error }
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards session events into a running program as messages, so
// the Model sees them on the program's own goroutine. Events arriving
// before a Sender is attached are dropped.
type Bridge struct {
	mu     sync.RWMutex
	sender Sender
}

// NewBridge returns a Bridge with no program attached.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach sets the program that receives events.
func (b *Bridge) Attach(s Sender) {
	b.mu.Lock()
	b.sender = s
	b.mu.Unlock()
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.RLock()
	s := b.sender
	b.mu.RUnlock()
	if s != nil {
		s.Send(msg)
	}
}

func (b *Bridge) OnReset(folder string) { b.send(resetMsg{folder: folder}) }
func (b *Bridge) OnItem(o pipeline.Outcome) { b.send(itemMsg{outcome: o}) }
func (b *Bridge) OnProgress(p render.Progress) { b.send(progressMsg{progress: p}) }
func (b *Bridge) OnComplete() { b.send(completeMsg{}) }
func (b *Bridge) OnFailure(err error) { b.send(failureMsg{err: err}) }

var _ render.Coordinator = (*Bridge)(nil)
