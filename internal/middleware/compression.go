package middleware

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"gallery/internal/logging"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the minimum response size in bytes before compression is applied
	MinSize int
	// GzipLevel is the gzip compression level (gzip.BestSpeed to gzip.BestCompression)
	GzipLevel int
	// Zstd enables zstd for clients that advertise it; gzip is used otherwise.
	Zstd bool
	// CompressibleTypes is a list of content types that should be compressed
	CompressibleTypes []string
}

// DefaultCompressionConfig returns sensible defaults for compression
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:   1024,
		GzipLevel: gzip.DefaultCompression,
		Zstd:      true,
		CompressibleTypes: []string{
			"text/html",
			"text/plain",
			"application/json",
			"application/openmetrics-text",
		},
	}
}

// encoder is satisfied by both *gzip.Writer and *zstd.Encoder.
type encoder interface {
	io.WriteCloser
	Flush() error
	Reset(w io.Writer)
}

type encoderPools struct {
	gzip sync.Pool
	zstd sync.Pool
}

func newEncoderPools(level int) *encoderPools {
	p := &encoderPools{}
	p.gzip.New = func() interface{} {
		w, err := gzip.NewWriterLevel(io.Discard, level)
		if err != nil {
			w = gzip.NewWriter(io.Discard)
		}
		return w
	}
	p.zstd.New = func() interface{} {
		w, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
		if err != nil {
			logging.Error("failed to create zstd encoder: %v", err)
			return nil
		}
		return w
	}
	return p
}

func (p *encoderPools) get(encoding string, w io.Writer) encoder {
	var enc encoder
	switch encoding {
	case "zstd":
		if z, ok := p.zstd.Get().(*zstd.Encoder); ok && z != nil {
			enc = z
		}
	case "gzip":
		enc = p.gzip.Get().(*gzip.Writer)
	}
	if enc != nil {
		enc.Reset(w)
	}
	return enc
}

func (p *encoderPools) put(encoding string, enc encoder) {
	switch encoding {
	case "zstd":
		p.zstd.Put(enc)
	case "gzip":
		p.gzip.Put(enc)
	}
}

// negotiate picks the response encoding from Accept-Encoding.
func negotiate(r *http.Request, config CompressionConfig) string {
	accept := strings.ToLower(r.Header.Get("Accept-Encoding"))
	switch {
	case config.Zstd && strings.Contains(accept, "zstd"):
		return "zstd"
	case strings.Contains(accept, "gzip"):
		return "gzip"
	default:
		return ""
	}
}

// compressWriter buffers the start of a response until it can tell whether
// the body is worth compressing.
type compressWriter struct {
	http.ResponseWriter
	pools    *encoderPools
	encoding string
	enc      encoder
	config   CompressionConfig

	buffer     []byte
	statusCode int
	decided    bool
	compress   bool
}

func newCompressWriter(w http.ResponseWriter, pools *encoderPools, encoding string, config CompressionConfig) *compressWriter {
	return &compressWriter{
		ResponseWriter: w,
		pools:          pools,
		encoding:       encoding,
		config:         config,
		statusCode:     http.StatusOK,
		buffer:         make([]byte, 0, config.MinSize+1),
	}
}

// WriteHeader captures the status code
func (c *compressWriter) WriteHeader(statusCode int) {
	if c.decided {
		return
	}
	c.statusCode = statusCode
}

func (c *compressWriter) Write(data []byte) (int, error) {
	if c.decided {
		if c.enc != nil {
			return c.enc.Write(data)
		}
		return c.ResponseWriter.Write(data)
	}

	c.buffer = append(c.buffer, data...)
	if len(c.buffer) > c.config.MinSize {
		if err := c.decide(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (c *compressWriter) compressible() bool {
	contentType := c.Header().Get("Content-Type")
	if contentType == "" || c.Header().Get("Content-Encoding") != "" {
		return false
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, t := range c.config.CompressibleTypes {
		if mediaType == t {
			return true
		}
	}
	return false
}

// decide commits to compressing or not and writes the buffered bytes.
func (c *compressWriter) decide() error {
	if c.decided {
		return nil
	}
	c.decided = true
	buffered := c.buffer
	c.buffer = nil

	c.compress = len(buffered) >= c.config.MinSize && c.compressible()
	if c.compress {
		c.enc = c.pools.get(c.encoding, c.ResponseWriter)
	}
	if c.enc == nil {
		c.compress = false
		c.ResponseWriter.WriteHeader(c.statusCode)
		_, err := c.ResponseWriter.Write(buffered)
		return err
	}

	c.Header().Del("Content-Length")
	c.Header().Set("Content-Encoding", c.encoding)
	c.Header().Add("Vary", "Accept-Encoding")
	c.ResponseWriter.WriteHeader(c.statusCode)
	_, err := c.enc.Write(buffered)
	return err
}

// Close flushes everything and returns the encoder to its pool.
func (c *compressWriter) Close() error {
	if err := c.decide(); err != nil {
		return err
	}
	if c.enc == nil {
		return nil
	}
	err := c.enc.Close()
	c.pools.put(c.encoding, c.enc)
	c.enc = nil
	return err
}

// Flush implements http.Flusher
func (c *compressWriter) Flush() {
	_ = c.decide()
	if c.enc != nil {
		_ = c.enc.Flush()
	}
	if flusher, ok := c.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Compression returns a middleware that compresses responses with zstd or
// gzip, whichever the client prefers and the config allows.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	pools := newEncoderPools(config.GzipLevel)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// WebSocket upgrades need the raw connection
			if r.Header.Get("Upgrade") != "" {
				next.ServeHTTP(w, r)
				return
			}

			encoding := negotiate(r, config)
			if encoding == "" || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			cw := newCompressWriter(w, pools, encoding, config)
			defer func() {
				if err := cw.Close(); err != nil {
					logging.Debug("compression close failed: %v", err)
				}
			}()

			next.ServeHTTP(cw, r)
		})
	}
}
