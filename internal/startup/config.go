package startup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gallery/internal/logging"
	"gallery/internal/mediatypes"
	"gallery/internal/workers"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Scanning
	InitialPageLimit int      `yaml:"initial_page_limit"`
	LoadMorePageSize int      `yaml:"load_more_page_size"`
	Extensions       []string `yaml:"extensions"`
	IndexCacheSize   int      `yaml:"index_cache_size"`
	WatchFolders     bool     `yaml:"watch_folders"`

	// Thumbnail pipeline
	Workers               int    `yaml:"workers"`
	InitialThumbnailCount int    `yaml:"initial_thumbnail_count"`
	ItemTimeoutSeconds    int    `yaml:"item_timeout_seconds"`
	ThumbnailSize         int    `yaml:"thumbnail_size"`
	Format                string `yaml:"format"`
	JPEGQuality           int    `yaml:"jpeg_quality"`
	UseVips               bool   `yaml:"use_vips"`

	// Session and rendering
	ProgressiveRendering bool `yaml:"progressive_rendering"`
	CacheSize            int  `yaml:"cache_size"` // 0 disables the thumbnail cache
	RetentionCap         int  `yaml:"retention_cap"`

	// Server
	MediaDir        string `yaml:"media_dir"`
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	MetricsPort     string `yaml:"metrics_port"`
	MetricsEnabled  bool   `yaml:"metrics_enabled"`
	LogHealthChecks bool   `yaml:"log_health_checks"`
}

// Thumbnail size bounds accepted by Validate.
const (
	MinThumbnailSize = 16
	MaxThumbnailSize = 1024
)

// ErrInvalidConfig wraps validation failures that cannot be corrected by clamping.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		InitialPageLimit:      500,
		LoadMorePageSize:      200,
		Extensions:            mediatypes.DefaultExtensions(),
		IndexCacheSize:        16,
		WatchFolders:          true,
		Workers:               4,
		InitialThumbnailCount: 50,
		ItemTimeoutSeconds:    5,
		ThumbnailSize:         150,
		Format:                "jpeg",
		JPEGQuality:           80,
		ProgressiveRendering:  true,
		CacheSize:             200,
		RetentionCap:          2000,
		Host:                  "127.0.0.1",
		Port:                  "8080",
		MetricsPort:           "9090",
		MetricsEnabled:        true,
		LogHealthChecks:       false,
	}
}

// ItemTimeout returns the per-thumbnail deadline.
func (c *Config) ItemTimeout() time.Duration {
	return time.Duration(c.ItemTimeoutSeconds) * time.Second
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// and GALLERY_* environment variables, in that order, then validates it.
// An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		if err := decodeYAML(f, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		logging.Debug("Loaded configuration file %s", path)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

func (c *Config) applyEnv() {
	c.InitialPageLimit = getEnvInt("GALLERY_INITIAL_PAGE_LIMIT", c.InitialPageLimit)
	c.LoadMorePageSize = getEnvInt("GALLERY_LOAD_MORE_PAGE_SIZE", c.LoadMorePageSize)
	c.IndexCacheSize = getEnvInt("GALLERY_INDEX_CACHE_SIZE", c.IndexCacheSize)
	c.WatchFolders = getEnvBool("GALLERY_WATCH_FOLDERS", c.WatchFolders)
	c.Workers = getEnvInt("GALLERY_WORKERS", c.Workers)
	c.InitialThumbnailCount = getEnvInt("GALLERY_INITIAL_THUMBNAIL_COUNT", c.InitialThumbnailCount)
	c.ItemTimeoutSeconds = getEnvInt("GALLERY_ITEM_TIMEOUT", c.ItemTimeoutSeconds)
	c.ThumbnailSize = getEnvInt("GALLERY_THUMBNAIL_SIZE", c.ThumbnailSize)
	c.Format = getEnv("GALLERY_FORMAT", c.Format)
	c.JPEGQuality = getEnvInt("GALLERY_JPEG_QUALITY", c.JPEGQuality)
	c.UseVips = getEnvBool("GALLERY_USE_VIPS", c.UseVips)
	c.ProgressiveRendering = getEnvBool("GALLERY_PROGRESSIVE", c.ProgressiveRendering)
	c.CacheSize = getEnvInt("GALLERY_CACHE_SIZE", c.CacheSize)
	c.RetentionCap = getEnvInt("GALLERY_RETENTION_CAP", c.RetentionCap)
	c.MediaDir = getEnv("GALLERY_MEDIA_DIR", c.MediaDir)
	c.Host = getEnv("GALLERY_HOST", c.Host)
	c.Port = getEnv("PORT", c.Port)
	c.MetricsPort = getEnv("METRICS_PORT", c.MetricsPort)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
	c.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", c.LogHealthChecks)

	if exts := os.Getenv("GALLERY_EXTENSIONS"); exts != "" {
		c.Extensions = strings.Split(exts, ",")
	}
}

// Validate clamps numeric settings into range and normalises the rest.
// It only fails for values that have no sensible correction.
func (c *Config) Validate() error {
	if c.InitialPageLimit <= 0 {
		c.InitialPageLimit = 500
	}
	if c.LoadMorePageSize <= 0 {
		c.LoadMorePageSize = 200
	}
	if c.IndexCacheSize <= 0 {
		c.IndexCacheSize = 16
	}
	if c.Workers > 0 {
		c.Workers = workers.Clamp(c.Workers)
	}
	if c.InitialThumbnailCount < 0 {
		c.InitialThumbnailCount = 0
	}
	if c.ItemTimeoutSeconds <= 0 {
		c.ItemTimeoutSeconds = 5
	}
	c.ThumbnailSize = max(MinThumbnailSize, min(c.ThumbnailSize, MaxThumbnailSize))
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = 80
	}
	if c.CacheSize < 0 {
		c.CacheSize = 0
	}
	if c.RetentionCap <= 0 {
		c.RetentionCap = 2000
	}

	switch strings.ToLower(strings.TrimSpace(c.Format)) {
	case "", "jpeg", "jpg":
		c.Format = "jpeg"
	case "png":
		c.Format = "png"
	default:
		return fmt.Errorf("%w: unsupported thumbnail format %q", ErrInvalidConfig, c.Format)
	}

	c.Extensions = mediatypes.NormalizeExtensions(c.Extensions)
	if len(c.Extensions) == 0 {
		c.Extensions = mediatypes.DefaultExtensions()
	}

	if c.MediaDir != "" {
		abs, err := filepath.Abs(c.MediaDir)
		if err != nil {
			return fmt.Errorf("failed to resolve media directory path: %w", err)
		}
		c.MediaDir = abs
	}

	return nil
}

// ValidateServer checks the settings only the HTTP server uses. Without a
// media directory any absolute path can be opened, so the server must then
// listen on a loopback address.
func (c *Config) ValidateServer() error {
	if c.MediaDir == "" && !IsLoopback(c.Host) {
		return fmt.Errorf("%w: listening on %q requires a media directory", ErrInvalidConfig, c.Host)
	}
	return nil
}

// Addr joins the configured host with port.
func (c *Config) Addr(port string) string {
	return net.JoinHostPort(c.Host, port)
}

// IsLoopback reports whether host names only the local machine. An empty
// host means every interface.
func IsLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// LogConfig writes the effective configuration in the startup banner style.
func LogConfig(c *Config) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  INITIAL_PAGE_LIMIT:      %d", c.InitialPageLimit)
	logging.Info("  LOAD_MORE_PAGE_SIZE:     %d", c.LoadMorePageSize)
	if c.Workers > 0 {
		logging.Info("  WORKERS:                 %d", c.Workers)
	} else {
		logging.Info("  WORKERS:                 auto (%d)", workers.Resolve(0))
	}
	logging.Info("  INITIAL_THUMBNAIL_COUNT: %d", c.InitialThumbnailCount)
	logging.Info("  ITEM_TIMEOUT:            %v", c.ItemTimeout())
	logging.Info("  PROGRESSIVE_RENDERING:   %v", c.ProgressiveRendering)
	logging.Info("  THUMBNAIL_SIZE:          %d (%s)", c.ThumbnailSize, c.Format)
	logging.Info("  CACHE_SIZE:              %d", c.CacheSize)
	logging.Info("  RETENTION_CAP:           %d", c.RetentionCap)
	logging.Info("  EXTENSIONS:              %s", strings.Join(c.Extensions, " "))
	logging.Info("  USE_VIPS:                %v", c.UseVips)
	if c.MediaDir != "" {
		logging.Info("  MEDIA_DIR:               %s", c.MediaDir)
	}
	logging.Info("  LISTEN:                  %s", c.Addr(c.Port))
	logging.Info("  LOG_LEVEL:               %s", logging.GetLevel())
	logging.Info("")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
