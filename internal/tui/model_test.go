package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"gallery/internal/pipeline"
	"gallery/internal/render"
	"gallery/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeController struct {
	mu       sync.Mutex
	opened   []string
	more     int
	cancels  int
	moreErr  error
	viewport int
}

func (f *fakeController) OpenFolder(_ context.Context, folder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, folder)
	return nil
}

func (f *fakeController) LoadMore(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.more++
	return f.moreErr
}

func (f *fakeController) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeController) SetViewport(first int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewport = first
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func ready(index int) itemMsg {
	return itemMsg{outcome: pipeline.Outcome{TaskID: 1, Index: index, Path: "/photos/img.png", Kind: pipeline.KindReady, DataURI: "data:image/jpeg;base64,AA=="}}
}

func TestLoadMoreKey(t *testing.T) {
	ctrl := &fakeController{moreErr: session.ErrNoMore}
	m := New(context.Background(), ctrl, "/photos", 10)

	m, cmd := update(t, m, runes("m"))
	if cmd == nil {
		t.Fatal("Expected a command for load more")
	}
	msg := cmd()
	if ctrl.more != 1 {
		t.Errorf("Expected LoadMore to be called once, got %d", ctrl.more)
	}

	m, _ = update(t, m, msg)
	if m.notice != "nothing more to load" {
		t.Errorf("Expected ErrNoMore notice, got %q", m.notice)
	}
}

func TestCancelKey(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, "/photos", 10)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd != nil {
		t.Error("Expected no command for cancel")
	}
	if ctrl.cancels != 1 {
		t.Errorf("Expected Cancel to be called once, got %d", ctrl.cancels)
	}
}

func TestQuitKeyCancels(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, "/photos", 10)

	_, cmd := update(t, m, runes("q"))
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
	if ctrl.cancels != 1 {
		t.Errorf("Expected quitting to cancel generation, got %d cancels", ctrl.cancels)
	}
}

func TestInitOpensFolder(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, "/photos", 10)

	open := m.run("open", func(ctx context.Context) error {
		return m.ctrl.OpenFolder(ctx, m.folder)
	})
	if msg, ok := open().(actionMsg); !ok || msg.err != nil {
		t.Fatalf("Unexpected open result: %#v", msg)
	}
	if len(ctrl.opened) != 1 || ctrl.opened[0] != "/photos" {
		t.Errorf("Expected /photos to be opened, got %v", ctrl.opened)
	}
	if m.Init() == nil {
		t.Error("Expected Init to return a command")
	}
}

func TestItemsRespectRetention(t *testing.T) {
	m := New(context.Background(), &fakeController{}, "/photos", 3)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: chromeHeight + 2})

	for i := 0; i < 6; i++ {
		m, _ = update(t, m, ready(i))
	}

	if len(m.rows) != 6 {
		t.Fatalf("Expected 6 rows, got %d", len(m.rows))
	}
	if m.window.Len() != 3 {
		t.Errorf("Expected 3 retained thumbnails, got %d", m.window.Len())
	}
	for _, i := range []int{0, 1} {
		if _, ok := m.window.Get(i); !ok {
			t.Errorf("Expected visible index %d to be retained", i)
		}
	}
	if !strings.Contains(m.renderRow(5), "○") {
		t.Errorf("Expected evicted row to render dimmed, got %q", m.renderRow(5))
	}
}

func TestScrollMovesVisibleRange(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, "/photos", 100)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: chromeHeight + 5})
	for i := 0; i < 20; i++ {
		m, _ = update(t, m, ready(i))
	}

	m, _ = update(t, m, runes("j"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyPgDown})
	start, end := m.window.Visible()
	if start != 6 || end != 11 {
		t.Errorf("Expected visible range [6,11), got [%d,%d)", start, end)
	}
	if ctrl.viewport != 6 {
		t.Errorf("Expected session viewport 6, got %d", ctrl.viewport)
	}

	for i := 0; i < 10; i++ {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyPgDown})
	}
	if m.offset != 15 {
		t.Errorf("Expected offset clamped to 15, got %d", m.offset)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyPgUp})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyPgUp})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyPgUp})
	m, _ = update(t, m, runes("k"))
	if m.offset != 0 {
		t.Errorf("Expected offset clamped to 0, got %d", m.offset)
	}
}

func TestResetClearsView(t *testing.T) {
	m := New(context.Background(), &fakeController{}, "/photos", 10)
	m, _ = update(t, m, ready(0))
	m, _ = update(t, m, completeMsg{})
	m, _ = update(t, m, failureMsg{err: errors.New("boom")})

	m, _ = update(t, m, resetMsg{folder: "/other"})
	if len(m.rows) != 0 || m.window.Len() != 0 {
		t.Errorf("Expected empty view after reset, got %d rows %d thumbnails", len(m.rows), m.window.Len())
	}
	if m.done || m.failure != nil || m.folder != "/other" {
		t.Errorf("Expected reset state, got done=%v failure=%v folder=%q", m.done, m.failure, m.folder)
	}
}

func TestViewShowsProgressAndFailures(t *testing.T) {
	m := New(context.Background(), &fakeController{}, "/photos", 10)
	m, _ = update(t, m, ready(0))
	m, _ = update(t, m, itemMsg{outcome: pipeline.Outcome{TaskID: 1, Index: 1, Path: "/photos/bad.png", Kind: pipeline.KindFailed, Err: pipeline.ErrTimeout}})
	m, _ = update(t, m, progressMsg{progress: render.Progress{Loaded: 2, Total: 4, Failed: 1, WorkingSet: 4, CancelAvailable: true}})

	view := m.View()
	for _, want := range []string{"/photos", "2/4 loaded", "1 failed", "generating", "bad.png", "timed out"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q", want)
		}
	}
	if len(m.rows) != 4 {
		t.Errorf("Expected rows sized to the working set, got %d", len(m.rows))
	}

	m, _ = update(t, m, completeMsg{})
	if !strings.Contains(m.View(), "complete") {
		t.Error("Expected complete status")
	}
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func TestBridgeForwardsEvents(t *testing.T) {
	b := NewBridge()
	b.OnComplete() // dropped, nothing attached

	s := &recordingSender{}
	b.Attach(s)
	b.OnReset("/photos")
	b.OnItem(pipeline.Outcome{Index: 3})
	b.OnProgress(render.Progress{Loaded: 1})
	b.OnFailure(errors.New("boom"))
	b.OnComplete()

	if len(s.msgs) != 5 {
		t.Fatalf("Expected 5 messages, got %d", len(s.msgs))
	}
	if msg, ok := s.msgs[0].(resetMsg); !ok || msg.folder != "/photos" {
		t.Errorf("Unexpected first message %#v", s.msgs[0])
	}
	if msg, ok := s.msgs[1].(itemMsg); !ok || msg.outcome.Index != 3 {
		t.Errorf("Unexpected second message %#v", s.msgs[1])
	}
	if _, ok := s.msgs[4].(completeMsg); !ok {
		t.Errorf("Unexpected last message %#v", s.msgs[4])
	}
}
