package main

import (
	"fmt"
	"os"

	"gallery/internal/logging"
	"gallery/internal/startup"

	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "Asynchronous, cancellable thumbnail gallery",
		Long: `Gallery lists the images of a folder one page at a time and generates
their thumbnails on a bounded worker pool. Opening another folder or
cancelling stops outstanding work; nothing from a superseded folder is
ever shown.

Examples:
  gallery serve --media-dir /srv/photos
  gallery render ./vacation --all
  gallery browse ./vacation
  gallery version`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.logLevel == "" {
				return nil
			}
			lvl, ok := logging.ParseLevel(opts.logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", opts.logLevel)
			}
			logging.SetLevel(lvl)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("GALLERY_CONFIG"), "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (default from LOG_LEVEL)")

	cmd.AddCommand(
		newServeCmd(opts),
		newRenderCmd(opts),
		newBrowseCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the pipeline flags that
// were set on the command line.
func loadConfig(opts *rootOptions, cmd *cobra.Command, pf *pipelineFlags) (*startup.Config, error) {
	cfg, err := startup.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if pf != nil {
		pf.apply(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// pipelineFlags override configuration values for one run.
type pipelineFlags struct {
	workers       int
	thumbnailSize int
	timeout       int
	eager         int
	progressive   bool
}

func (pf *pipelineFlags) register(cmd *cobra.Command) {
	defaults := startup.DefaultConfig()
	cmd.Flags().IntVarP(&pf.workers, "workers", "w", defaults.Workers, "Thumbnail workers (0 = auto)")
	cmd.Flags().IntVar(&pf.thumbnailSize, "size", defaults.ThumbnailSize, "Thumbnail edge length in pixels")
	cmd.Flags().IntVar(&pf.timeout, "timeout", defaults.ItemTimeoutSeconds, "Per-thumbnail timeout in seconds")
	cmd.Flags().IntVar(&pf.eager, "eager", defaults.InitialThumbnailCount, "Images at the start of each page generated first")
	cmd.Flags().BoolVar(&pf.progressive, "progressive", defaults.ProgressiveRendering, "Show thumbnails as they arrive instead of in order at the end")
}

func (pf *pipelineFlags) apply(cmd *cobra.Command, cfg *startup.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = pf.workers
	}
	if flags.Changed("size") {
		cfg.ThumbnailSize = pf.thumbnailSize
	}
	if flags.Changed("timeout") {
		cfg.ItemTimeoutSeconds = pf.timeout
	}
	if flags.Changed("eager") {
		cfg.InitialThumbnailCount = pf.eager
	}
	if flags.Changed("progressive") {
		cfg.ProgressiveRendering = pf.progressive
	}
}
