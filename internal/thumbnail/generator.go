package thumbnail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"time"

	"gallery/internal/filesystem"
	"gallery/internal/logging"
	"gallery/internal/metrics"

	// Decoders beyond the ones imaging registers
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode reports an image that could not be decoded: corrupt data, an
// unsupported format, or dimensions beyond the decode limit.
var ErrDecode = errors.New("cannot decode image")

// MaxImagePixels is the default decode limit. A 100MP image needs ~400MB
// as RGBA; anything larger is refused instead of risking the process.
const MaxImagePixels = 100_000_000

// Format is the encoding of generated thumbnails.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// MimeType returns the MIME type used in data URIs for f.
func (f Format) MimeType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Options configures a Generator.
type Options struct {
	Format    Format
	Quality   int // JPEG quality, 1-100
	MaxPixels int
	// UseVips routes generation through libvips when InitVips succeeded,
	// falling back to the pure Go path on any vips error.
	UseVips bool
	Retry   filesystem.RetryConfig
}

// Generator turns image files into thumbnail data URIs.
type Generator struct {
	format    Format
	quality   int
	maxPixels int
	useVips   bool
	retry     filesystem.RetryConfig
}

// New creates a Generator.
func New(opts Options) *Generator {
	if opts.Format != FormatPNG {
		opts.Format = FormatJPEG
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 80
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = MaxImagePixels
	}
	if opts.Retry.MaxRetries == 0 && opts.Retry.InitialBackoff == 0 {
		opts.Retry = filesystem.DefaultRetryConfig()
	}
	opts.Retry.Label = "thumbnail"

	return &Generator{
		format:    opts.Format,
		quality:   opts.Quality,
		maxPixels: opts.MaxPixels,
		useVips:   opts.UseVips,
		retry:     opts.Retry,
	}
}

// Backend names the decoder that Generate will use first.
func (g *Generator) Backend() string {
	if g.useVips && IsVipsAvailable() {
		return "vips"
	}
	return "imaging"
}

// Generate produces a thumbnail of path that fits in a size×size box,
// preserving aspect ratio, encoded as a data URI. Images smaller than the
// box are not enlarged.
//
// ctx is checked between the decode, resize and encode steps; a decode
// already underway runs to completion.
func (g *Generator) Generate(ctx context.Context, path string, size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("invalid thumbnail size %d", size)
	}

	if g.useVips && IsVipsAvailable() {
		start := time.Now()
		data, err := g.generateVips(path, size)
		if err == nil {
			metrics.ThumbnailGenerationDuration.WithLabelValues("vips").Observe(time.Since(start).Seconds())
			return g.dataURI(data), nil
		}
		logging.Debug("vips failed for %s, falling back to imaging: %v", filepath.Base(path), err)
	}

	start := time.Now()
	data, err := g.generateImaging(ctx, path, size)
	if err != nil {
		return "", err
	}
	metrics.ThumbnailGenerationDuration.WithLabelValues("imaging").Observe(time.Since(start).Seconds())
	return g.dataURI(data), nil
}

func (g *Generator) generateImaging(ctx context.Context, path string, size int) ([]byte, error) {
	f, err := filesystem.OpenWithRetry(path, g.retry)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, filepath.Base(path), err)
	}
	if pixels := cfg.Width * cfg.Height; pixels > g.maxPixels {
		return nil, fmt.Errorf("%w: %s is %dx%d, over the %d pixel limit",
			ErrDecode, filepath.Base(path), cfg.Width, cfg.Height, g.maxPixels)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", path, err)
	}

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%s): %v", ErrDecode, filepath.Base(path), format, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	thumb := imaging.Fit(img, size, size, imaging.Lanczos)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if g.format == FormatPNG {
		err = imaging.Encode(&buf, thumb, imaging.PNG)
	} else {
		err = imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(g.quality))
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	logging.Debug("Thumbnail for %s: %dx%d %s -> %dx%d", filepath.Base(path),
		cfg.Width, cfg.Height, format, thumb.Bounds().Dx(), thumb.Bounds().Dy())

	return buf.Bytes(), nil
}

func (g *Generator) dataURI(data []byte) string {
	return "data:" + g.format.MimeType() + ";base64," + base64.StdEncoding.EncodeToString(data)
}
