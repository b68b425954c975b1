package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gallery/internal/render"
	"gallery/internal/session"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type renderOptions struct {
	pipeline pipelineFlags
	all      bool
	outDir   string
}

// folderSession is what the headless and terminal front ends drive.
type folderSession interface {
	OpenFolder(ctx context.Context, folder string) error
	LoadMore(ctx context.Context) error
	Cancel()
}

func newRenderCmd(root *rootOptions) *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render <folder>",
		Short: "Generate thumbnails for a folder without a UI",
		Long: `Render opens a folder, generates thumbnails for its first page and
reports progress. With --all it keeps loading pages until the folder is
exhausted. With --out the thumbnails are written to a directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root, cmd, &opts.pipeline)
			if err != nil {
				return err
			}
			folder, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if opts.outDir != "" {
				if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			tty, width := terminal(out)
			con := newConsole(out, tty, width, opts.outDir)

			loop := render.NewLoop(con, render.NewWindow(cfg.RetentionCap), 0)
			loop.Start()
			defer loop.Stop()

			c := newCore(cfg, loop)
			defer c.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runRender(ctx, c.session, loop, con, folder, opts.all)
		},
	}

	opts.pipeline.register(cmd)
	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "Keep loading pages until the folder is exhausted")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "Directory to write thumbnails to")
	return cmd
}

func runRender(ctx context.Context, sess folderSession, loop *render.Loop, con *console, folder string, all bool) error {
	if err := sess.OpenFolder(ctx, folder); err != nil {
		return err
	}

	for {
		select {
		case <-con.completed:
		case <-ctx.Done():
			sess.Cancel()
			loop.Inspect(func(*render.Window) {
				con.clearLine()
				fmt.Fprintln(con.out, "Cancelled. "+summaryLine(con.last))
			})
			return nil
		}

		if !all {
			return nil
		}
		err := sess.LoadMore(ctx)
		if errors.Is(err, session.ErrNoMore) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// terminal reports whether w is a terminal and its width.
func terminal(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		width = 80
	}
	return true, width
}
