package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gallery/internal/pipeline"
	"gallery/internal/render"
)

// console is a render.Renderer that reports progress on a writer. On a
// terminal it redraws one status line; otherwise it prints a line per
// tenth of progress. When outDir is set, shown thumbnails are written
// there.
type console struct {
	out    io.Writer
	tty    bool
	width  int
	outDir string

	last     render.Progress
	lastStep int
	shown    int
	failed   []pipeline.Outcome

	completed chan struct{}
}

func newConsole(out io.Writer, tty bool, width int, outDir string) *console {
	if width <= 0 {
		width = 80
	}
	return &console{
		out:       out,
		tty:       tty,
		width:     width,
		outDir:    outDir,
		lastStep:  -1,
		completed: make(chan struct{}, 16),
	}
}

func (c *console) Reset(folder string) {
	c.last = render.Progress{}
	c.lastStep = -1
	c.shown = 0
	c.failed = nil
	fmt.Fprintf(c.out, "Rendering %s\n", folder)
}

func (c *console) Show(o pipeline.Outcome) {
	if o.Kind == pipeline.KindFailed {
		c.failed = append(c.failed, o)
		return
	}
	c.shown++
	if c.outDir == "" {
		return
	}
	if err := writeThumbnail(c.outDir, o); err != nil {
		c.clearLine()
		fmt.Fprintf(c.out, "write %s: %v\n", filepath.Base(o.Path), err)
	}
}

func (c *console) Evict([]int) {}

func (c *console) Progress(p render.Progress) {
	c.last = p
	if c.tty {
		c.redraw()
		return
	}
	if p.Total == 0 {
		return
	}
	if step := p.Loaded * 10 / p.Total; step != c.lastStep {
		c.lastStep = step
		fmt.Fprintln(c.out, progressLine(p))
	}
}

func (c *console) Complete() {
	c.clearLine()
	fmt.Fprintln(c.out, summaryLine(c.last))
	for _, o := range c.failed {
		fmt.Fprintf(c.out, "  failed %s: %v\n", o.Path, o.Err)
	}
	c.failed = nil
	select {
	case c.completed <- struct{}{}:
	default:
	}
}

func (c *console) Failure(err error) {
	c.clearLine()
	fmt.Fprintf(c.out, "error: %v\n", err)
}

func (c *console) redraw() {
	line := progressLine(c.last)
	if len(line) > c.width-1 {
		line = line[:c.width-1]
	}
	fmt.Fprintf(c.out, "\r%-*s", c.width-1, line)
}

func (c *console) clearLine() {
	if c.tty {
		fmt.Fprintf(c.out, "\r%s\r", strings.Repeat(" ", c.width-1))
	}
}

func progressLine(p render.Progress) string {
	const barWidth = 30
	filled := 0
	if p.Total > 0 {
		filled = p.Loaded * barWidth / p.Total
	}
	return fmt.Sprintf("[%s%s] %d/%d (%d failed)",
		strings.Repeat("#", filled), strings.Repeat(".", barWidth-filled),
		p.Loaded, p.Total, p.Failed)
}

func summaryLine(p render.Progress) string {
	s := fmt.Sprintf("Loaded %d of %d thumbnails, %d failed", p.Loaded, p.Total, p.Failed)
	if p.HasMore {
		s += "; more images available"
	}
	return s
}

// writeThumbnail decodes the outcome's data URI into dir, prefixing the
// file name with the item index.
func writeThumbnail(dir string, o pipeline.Outcome) error {
	header, payload, ok := strings.Cut(o.DataURI, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return fmt.Errorf("unexpected data URI header %q", header)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return err
	}

	ext := ".jpg"
	if strings.HasPrefix(header, "data:image/png") {
		ext = ".png"
	}
	name := strings.TrimSuffix(filepath.Base(o.Path), filepath.Ext(o.Path))
	return os.WriteFile(filepath.Join(dir, fmt.Sprintf("%06d_%s%s", o.Index, name, ext)), data, 0o644)
}

var _ render.Renderer = (*console)(nil)
