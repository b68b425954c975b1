package thumbnail

import (
	"fmt"
	"sync"

	"gallery/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
)

// InitVips starts libvips with its log output routed through the logging
// package. Call it once at startup, and only when libvips is wanted.
func InitVips(concurrency int) error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// configure logging before Startup so LOG_LEVEL applies to init messages
	vips.LoggingSettings(vipsLogHandler, vipsLogLevel(logging.GetLevel()))

	vips.Startup(&vips.Config{
		ConcurrencyLevel: max(concurrency, 1),
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitialized = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsInitialized
}

// vipsLogLevel maps our level to the most verbose vips level worth forwarding.
func vipsLogLevel(l logging.LogLevel) vips.LogLevel {
	switch l {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelWarn:
		return vips.LogLevelError
	case logging.LevelError:
		return vips.LogLevelCritical
	default:
		return vips.LogLevelWarning
	}
}

func vipsLogHandler(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// generateVips resizes through libvips and exports straight to the
// configured format. libvips reads pixels lazily, so the pixel limit is
// checked from the header before anything is decoded.
func (g *Generator) generateVips(path string, size int) ([]byte, error) {
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("%w: vips load: %v", ErrDecode, err)
	}
	defer ref.Close()

	if pixels := ref.Width() * ref.Height(); pixels > g.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d over the %d pixel limit", ErrDecode, ref.Width(), ref.Height(), g.maxPixels)
	}

	// apply the EXIF orientation as imaging.AutoOrientation does
	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips rotate: %w", err)
	}

	// no upscaling, matching imaging.Fit
	if ref.Width() > size || ref.Height() > size {
		if err := ref.Thumbnail(size, size, vips.InterestingNone); err != nil {
			return nil, fmt.Errorf("vips resize: %w", err)
		}
	}

	var data []byte
	if g.format == FormatPNG {
		data, _, err = ref.ExportPng(vips.NewPngExportParams())
	} else {
		params := vips.NewJpegExportParams()
		params.Quality = g.quality
		params.OptimizeCoding = true
		params.StripMetadata = true
		data, _, err = ref.ExportJpeg(params)
	}
	if err != nil {
		return nil, fmt.Errorf("vips export: %w", err)
	}
	return data, nil
}
