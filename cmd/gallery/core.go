package main

import (
	"gallery/internal/filesystem"
	"gallery/internal/logging"
	"gallery/internal/memory"
	"gallery/internal/metrics"
	"gallery/internal/pipeline"
	"gallery/internal/render"
	"gallery/internal/scanner"
	"gallery/internal/session"
	"gallery/internal/startup"
	"gallery/internal/thumbnail"
	"gallery/internal/workers"
)

// core is the scanner, pipeline and session shared by every front end.
type core struct {
	monitor *memory.Monitor
	scanner *scanner.Scanner
	pool    *pipeline.Pool
	session *session.Manager
	vips    bool
}

func newCore(cfg *startup.Config, coord render.Coordinator) *core {
	c := &core{}

	filesystem.SetObserver(metrics.NewFilesystemObserver())

	c.monitor = memory.NewMonitor(memory.DefaultConfig())
	c.monitor.Start()

	nworkers := workers.Resolve(cfg.Workers)
	if cfg.UseVips {
		if err := thumbnail.InitVips(nworkers); err != nil {
			logging.Warn("libvips unavailable, using pure Go decoding: %v", err)
		} else {
			c.vips = true
		}
	}

	gen := thumbnail.New(thumbnail.Options{
		Format:  thumbnail.Format(cfg.Format),
		Quality: cfg.JPEGQuality,
		UseVips: c.vips,
		Retry:   filesystem.DefaultRetryConfig(),
	})
	startup.LogThumbnailInit(gen.Backend(), nworkers)

	c.scanner = scanner.New(scanner.Options{
		IndexCacheSize: cfg.IndexCacheSize,
		Watch:          cfg.WatchFolders,
		Retry:          filesystem.DefaultRetryConfig(),
	})

	c.pool = pipeline.New(gen, pipeline.Options{
		Workers:     nworkers,
		ItemTimeout: cfg.ItemTimeout(),
		Waiter:      c.monitor,
	})

	c.session = session.New(c.scanner, c.pool, coord, sessionConfig(cfg))
	return c
}

func sessionConfig(cfg *startup.Config) session.Config {
	sc := session.DefaultConfig()
	sc.Extensions = cfg.Extensions
	sc.InitialPageLimit = cfg.InitialPageLimit
	sc.LoadMorePageSize = cfg.LoadMorePageSize
	sc.ThumbnailSize = cfg.ThumbnailSize
	sc.EagerCount = cfg.InitialThumbnailCount
	sc.CacheSize = cfg.CacheSize
	sc.Progressive = cfg.ProgressiveRendering
	return sc
}

// Close stops the session first so no new work reaches the pool.
func (c *core) Close() {
	c.session.Close()
	c.pool.Close()
	if err := c.scanner.Close(); err != nil {
		logging.Debug("Scanner close: %v", err)
	}
	c.monitor.Stop()
	if c.vips {
		thumbnail.ShutdownVips()
	}
}
