package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gallery/internal/handlers"
	"gallery/internal/logging"
	"gallery/internal/memory"
	"gallery/internal/metrics"
	"gallery/internal/middleware"
	"gallery/internal/render"
	"gallery/internal/startup"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	pipeline    pipelineFlags
	port        string
	metricsPort string
	host        string
	mediaDir    string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startTime := time.Now()

			memResult := memory.ConfigureFromEnv()

			cfg, err := loadConfig(root, cmd, &opts.pipeline)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = opts.host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = opts.port
			}
			if cmd.Flags().Changed("metrics-port") {
				cfg.MetricsPort = opts.metricsPort
			}
			if cmd.Flags().Changed("media-dir") {
				cfg.MediaDir = opts.mediaDir
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if err := cfg.ValidateServer(); err != nil {
				return err
			}

			startup.PrintBanner(cmd.ErrOrStderr())
			startup.LogSystemInfo()
			startup.LogMemoryConfig(memResult)
			startup.LogConfig(cfg)

			return serve(cmd.Context(), cfg, startTime)
		},
	}

	opts.pipeline.register(cmd)
	cmd.Flags().StringVar(&opts.host, "host", "127.0.0.1", "Address to listen on")
	cmd.Flags().StringVarP(&opts.port, "port", "p", "8080", "HTTP port")
	cmd.Flags().StringVar(&opts.metricsPort, "metrics-port", "9090", "Metrics port")
	cmd.Flags().StringVar(&opts.mediaDir, "media-dir", "", "Root that folder paths are resolved against")
	return cmd
}

func serve(parent context.Context, cfg *startup.Config, startTime time.Time) error {
	if parent == nil {
		parent = context.Background()
	}

	hub := handlers.NewHub()
	loop := render.NewLoop(hub, render.NewWindow(cfg.RetentionCap), 0)
	loop.Start()

	c := newCore(cfg, loop)

	build := startup.GetBuildInfo()
	metrics.SetAppInfo(build.Version, build.Commit, build.GoVersion)
	metrics.InitializeMetrics()
	collector := metrics.NewCollector(c.session, metrics.DefaultCollectInterval)

	h := handlers.New(c.session, hub, loop, cfg)
	h.SetMemoryReporter(c.monitor)
	router := h.Router()
	startup.LogHTTPRoutes(router, cfg.LogHealthChecks)

	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = cfg.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	srv := &http.Server{
		Addr:              cfg.Addr(cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.MetricsEnabled {
		metricsSrv = &http.Server{
			Addr:              cfg.Addr(cfg.MetricsPort),
			Handler:           h.MetricsRouter(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		collector.Run(gctx)
		return nil
	})
	g.Go(func() error { return listen(srv) })
	if metricsSrv != nil {
		g.Go(func() error { return listen(metricsSrv) })
	}

	startup.LogServerStarted(startup.ServerConfig{
		Port:            cfg.Port,
		MetricsPort:     cfg.MetricsPort,
		MetricsEnabled:  cfg.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	g.Go(func() error {
		<-gctx.Done()
		reason := "server error"
		if ctx.Err() != nil {
			reason = "signal"
		}
		startup.LogShutdownInitiated(reason)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		startup.LogShutdownStep("Closing event stream")
		hub.Close()
		startup.LogShutdownStepComplete("Event stream closed")

		startup.LogShutdownStep("Shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("HTTP server stopped")
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logging.Warn("Metrics server shutdown error: %v", err)
			}
		}

		startup.LogShutdownStep("Stopping thumbnail pipeline")
		c.Close()
		loop.Stop()
		startup.LogShutdownStepComplete("Thumbnail pipeline stopped")

		startup.LogShutdownComplete()
		return nil
	})

	return g.Wait()
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
