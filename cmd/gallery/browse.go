package main

import (
	"io"
	"os"
	"path/filepath"

	"gallery/internal/logging"
	"gallery/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

type browseOptions struct {
	pipeline pipelineFlags
	logFile  string
}

func newBrowseCmd(root *rootOptions) *cobra.Command {
	opts := &browseOptions{}

	cmd := &cobra.Command{
		Use:   "browse <folder>",
		Short: "Browse a folder's thumbnails in the terminal",
		Long: `Browse opens a folder in an interactive terminal view.

Keys:
  j/k, pgup/pgdn  scroll
  m               load the next page
  esc             cancel thumbnail generation
  q               quit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// the program owns the screen; log lines go to a file or nowhere
			var logOut io.Writer = io.Discard
			if opts.logFile != "" {
				f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()
				logOut = f
			}
			logging.SetOutput(logOut)
			defer logging.SetOutput(os.Stderr)

			cfg, err := loadConfig(root, cmd, &opts.pipeline)
			if err != nil {
				return err
			}
			folder, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			bridge := tui.NewBridge()
			c := newCore(cfg, bridge)
			defer c.Close()

			model := tui.New(cmd.Context(), c.session, folder, cfg.RetentionCap)
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			bridge.Attach(p)

			_, err = p.Run()
			bridge.Attach(nil)
			return err
		},
	}

	opts.pipeline.register(cmd)
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "Append log output to this file")
	return cmd
}
