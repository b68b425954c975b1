package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gallery/internal/pipeline"
	"gallery/internal/render"
	"gallery/internal/scanner"
	"gallery/internal/session"
	"gallery/internal/startup"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		for y := 0; y < 24; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 8), uint8(y * 10), 128, 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "gallery dev")

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	var info startup.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, startup.Version, info.Version)
}

func TestUnknownLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "version")
	assert.Error(t, err)
}

func TestPipelineFlagsOverrideConfig(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	pf := &pipelineFlags{}
	pf.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--workers", "2", "--size", "64", "--progressive=false"}))

	cfg := startup.DefaultConfig()
	cfg.ItemTimeoutSeconds = 9
	pf.apply(cmd, cfg)

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 64, cfg.ThumbnailSize)
	assert.False(t, cfg.ProgressiveRendering)
	assert.Equal(t, 9, cfg.ItemTimeoutSeconds, "unset flags keep the configured value")
}

func TestConsoleReportsProgress(t *testing.T) {
	var out bytes.Buffer
	con := newConsole(&out, false, 0, "")

	con.Reset("/photos")
	for i := 1; i <= 10; i++ {
		con.Progress(render.Progress{Loaded: i, Total: 10, Failed: 1})
	}
	con.Show(pipeline.Outcome{Index: 4, Path: "/photos/bad.png", Kind: pipeline.KindFailed, Err: pipeline.ErrTimeout})
	con.Complete()

	text := out.String()
	assert.Contains(t, text, "Rendering /photos")
	assert.Contains(t, text, "10/10 (1 failed)")
	assert.Contains(t, text, "Loaded 10 of 10 thumbnails, 1 failed")
	assert.Contains(t, text, "failed /photos/bad.png: thumbnail generation timed out")
	assert.Equal(t, 13, strings.Count(text, "\n"), "header, one line per tenth, summary and the failure")

	select {
	case <-con.completed:
	default:
		t.Fatal("expected completion to be signalled")
	}
}

func TestConsoleRedrawsOnTerminal(t *testing.T) {
	var out bytes.Buffer
	con := newConsole(&out, true, 40, "")
	con.Progress(render.Progress{Loaded: 1, Total: 2})
	con.Progress(render.Progress{Loaded: 2, Total: 2})

	assert.Equal(t, 2, strings.Count(out.String(), "\r"))
	assert.NotContains(t, out.String(), "\n")
}

func TestWriteThumbnail(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("not really a png")
	o := pipeline.Outcome{
		Index:   3,
		Path:    "/photos/cat.webp",
		Kind:    pipeline.KindReady,
		DataURI: "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload),
	}
	require.NoError(t, writeThumbnail(dir, o))

	data, err := os.ReadFile(filepath.Join(dir, "000003_cat.png"))
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	o.DataURI = "image/jpeg,AAAA"
	assert.Error(t, writeThumbnail(dir, o))
}

func testConfig() *startup.Config {
	cfg := startup.DefaultConfig()
	cfg.Workers = 2
	cfg.WatchFolders = false
	cfg.ThumbnailSize = 32
	return cfg
}

func startRender(t *testing.T, cfg *startup.Config, outDir string) (*core, *render.Loop, *console, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	con := newConsole(&out, false, 0, outDir)
	loop := render.NewLoop(con, render.NewWindow(cfg.RetentionCap), 0)
	loop.Start()
	c := newCore(cfg, loop)
	t.Cleanup(func() {
		c.Close()
		loop.Stop()
	})
	return c, loop, con, &out
}

func TestRunRenderFolder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png", "e.png"} {
		writePNG(t, filepath.Join(dir, name))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("garbage"), 0o644))
	outDir := t.TempDir()

	c, loop, con, out := startRender(t, testConfig(), outDir)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, runRender(ctx, c.session, loop, con, dir, false))
	loop.Sync()

	assert.Contains(t, out.String(), "Loaded 6 of 6 thumbnails, 1 failed")
	assert.Contains(t, out.String(), "broken.png")

	written, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, written, 5)
}

func TestRunRenderAllPages(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 12; i++ {
		writePNG(t, filepath.Join(dir, string(rune('a'+i))+".png"))
	}
	outDir := t.TempDir()

	cfg := testConfig()
	cfg.InitialPageLimit = 5
	cfg.LoadMorePageSize = 5
	c, loop, con, out := startRender(t, cfg, outDir)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, runRender(ctx, c.session, loop, con, dir, true))
	loop.Sync()

	assert.Equal(t, 3, strings.Count(out.String(), "Loaded "))
	written, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, written, 12)
	assert.Equal(t, session.StatusComplete, c.session.Snapshot().Status)
}

func TestRunRenderMissingFolder(t *testing.T) {
	c, loop, con, _ := startRender(t, testConfig(), "")
	err := runRender(context.Background(), c.session, loop, con, filepath.Join(t.TempDir(), "missing"), false)
	assert.ErrorIs(t, err, scanner.ErrNotFound)
}

type stuckSession struct {
	mu      sync.Mutex
	cancels int
}

func (s *stuckSession) OpenFolder(context.Context, string) error { return nil }
func (s *stuckSession) LoadMore(context.Context) error { return errors.New("unexpected") }
func (s *stuckSession) Cancel() {
	s.mu.Lock()
	s.cancels++
	s.mu.Unlock()
}

func TestRunRenderCancelsOnInterrupt(t *testing.T) {
	var out bytes.Buffer
	con := newConsole(&out, false, 0, "")
	loop := render.NewLoop(con, render.NewWindow(10), 0)
	loop.Start()
	defer loop.Stop()

	sess := &stuckSession{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, runRender(ctx, sess, loop, con, "/photos", true))
	assert.Equal(t, 1, sess.cancels)
	assert.Contains(t, out.String(), "Cancelled.")
}
