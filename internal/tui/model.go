package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gallery/internal/pipeline"
	"gallery/internal/render"
	"gallery/internal/session"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Lines taken by everything except the item list.
const chromeHeight = 6

// Controller is the part of the session the browser drives.
type Controller interface {
	OpenFolder(ctx context.Context, folder string) error
	LoadMore(ctx context.Context) error
	Cancel()
	SetViewport(first int)
}

// actionMsg reports the result of a session call made from a command.
type actionMsg struct {
	action string
	err    error
}

type row struct {
	path string
	kind pipeline.Kind
	err  error
	seen bool
}

// Model is the bubbletea model of the folder browser. It owns a
// render.Window that holds the retained thumbnails; only Update touches it.
type Model struct {
	ctx    context.Context
	ctrl   Controller
	folder string

	keys    KeyMap
	help    help.Model
	bar     progress.Model
	spinner spinner.Model

	window   *render.Window
	rows     []row
	progress render.Progress
	done     bool
	failure  error
	notice   string

	offset int
	width  int
	height int
}

// New returns a Model that opens folder when the program starts.
func New(ctx context.Context, ctrl Controller, folder string, retention int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = readyStyle

	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		folder:  folder,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		bar:     progress.New(progress.WithDefaultGradient()),
		spinner: sp,
		window:  render.NewWindow(retention),
		height:  chromeHeight + 20,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run("open", func(ctx context.Context) error {
		return m.ctrl.OpenFolder(ctx, m.folder)
	}))
}

func (m Model) run(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{action: action, err: fn(m.ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = max(10, min(msg.Width-4, 80))
		m.help.Width = msg.Width
		m.syncVisible()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case resetMsg:
		m.folder = msg.folder
		m.window.Reset()
		m.rows = m.rows[:0]
		m.progress = render.Progress{}
		m.done = false
		m.failure = nil
		m.notice = ""
		m.offset = 0
		m.syncVisible()
		return m, nil

	case itemMsg:
		m.accept(msg.outcome)
		return m, nil

	case progressMsg:
		m.progress = msg.progress
		m.grow(msg.progress.WorkingSet)
		if m.progress.CancelAvailable {
			m.done = false
		}
		return m, nil

	case completeMsg:
		m.done = true
		return m, nil

	case failureMsg:
		m.failure = msg.err
		return m, nil

	case actionMsg:
		m.notice = describe(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Cancel):
		m.ctrl.Cancel()
		return m, nil
	case key.Matches(msg, m.keys.LoadMore):
		m.notice = ""
		return m, m.run("load more", m.ctrl.LoadMore)
	case key.Matches(msg, m.keys.Up):
		m.scroll(-1)
	case key.Matches(msg, m.keys.Down):
		m.scroll(1)
	case key.Matches(msg, m.keys.PageUp):
		m.scroll(-m.listHeight())
	case key.Matches(msg, m.keys.PageDown):
		m.scroll(m.listHeight())
	}
	return m, nil
}

func (m *Model) accept(o pipeline.Outcome) {
	m.grow(o.Index + 1)
	m.rows[o.Index] = row{path: o.Path, kind: o.Kind, err: o.Err, seen: true}
	if o.Kind == pipeline.KindReady {
		// rows keep their status after eviction; View shows them dimmed
		m.window.Put(o.Index, o.DataURI)
	}
}

func (m *Model) grow(n int) {
	for len(m.rows) < n {
		m.rows = append(m.rows, row{})
	}
}

func (m *Model) scroll(delta int) {
	m.offset += delta
	if limit := len(m.rows) - m.listHeight(); m.offset > limit {
		m.offset = limit
	}
	if m.offset < 0 {
		m.offset = 0
	}
	m.syncVisible()
}

func (m *Model) syncVisible() {
	m.window.SetVisible(m.offset, m.offset+m.listHeight())
	m.ctrl.SetViewport(m.offset)
}

func (m Model) listHeight() int {
	return max(1, m.height-chromeHeight)
}

func describe(msg actionMsg) string {
	switch {
	case msg.err == nil:
		return ""
	case errors.Is(msg.err, session.ErrNoMore):
		return "nothing more to load"
	case errors.Is(msg.err, session.ErrBusy):
		return "still loading, try again when complete"
	default:
		return fmt.Sprintf("%s failed: %v", msg.action, msg.err)
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("gallery"))
	b.WriteString(" ")
	b.WriteString(folderStyle.Render(m.folder))
	b.WriteString("\n")

	fraction := 0.0
	if m.progress.Total > 0 {
		fraction = float64(m.progress.Loaded) / float64(m.progress.Total)
	}
	b.WriteString(" ")
	b.WriteString(m.bar.ViewAs(fraction))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status()))
	b.WriteString("\n")

	var list strings.Builder
	end := min(len(m.rows), m.offset+m.listHeight())
	for i := m.offset; i < end; i++ {
		list.WriteString(m.renderRow(i))
		list.WriteString("\n")
	}
	b.WriteString(listStyle.Render(strings.TrimSuffix(list.String(), "\n")))
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) status() string {
	p := m.progress
	counts := fmt.Sprintf("%d/%d loaded", p.Loaded, p.Total)
	if p.Failed > 0 {
		counts += fmt.Sprintf(", %d failed", p.Failed)
	}
	if p.HasMore {
		counts += ", more available"
	}

	switch {
	case m.failure != nil:
		return failedStyle.Render("error: "+m.failure.Error()) + "  " + counts
	case m.done:
		return "complete  " + counts
	case p.CancelAvailable:
		return m.spinner.View() + " generating  " + counts
	default:
		return counts
	}
}

func (m Model) renderRow(i int) string {
	r := m.rows[i]
	if !r.seen {
		return pendingStyle.Render(fmt.Sprintf("·  %5d", i))
	}
	name := filepath.Base(r.path)
	switch r.kind {
	case pipeline.KindFailed:
		return failedStyle.Render(fmt.Sprintf("✗  %5d  %s  %v", i, name, r.err))
	default:
		if uri, ok := m.window.Get(i); ok {
			return readyStyle.Render(fmt.Sprintf("✓  %5d  %s", i, name)) +
				evictedStyle.Render(fmt.Sprintf("  %d bytes", len(uri)))
		}
		return evictedStyle.Render(fmt.Sprintf("○  %5d  %s", i, name))
	}
}
