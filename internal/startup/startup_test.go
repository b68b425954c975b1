package startup

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gallery/internal/mediatypes"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearGalleryEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "GALLERY_") || key == "THUMBNAIL_WORKERS" {
			t.Setenv(key, "")
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	assert.NotEmpty(t, info.Version)
	assert.Equal(t, GoVersion, info.GoVersion)
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Arch)
	assert.Contains(t, info.String(), info.Version)
}

func TestLoadConfigDefaults(t *testing.T) {
	clearGalleryEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.InitialPageLimit)
	assert.Equal(t, 200, cfg.LoadMorePageSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 50, cfg.InitialThumbnailCount)
	assert.Equal(t, 5*time.Second, cfg.ItemTimeout())
	assert.True(t, cfg.ProgressiveRendering)
	assert.Equal(t, 150, cfg.ThumbnailSize)
	assert.Equal(t, 200, cfg.CacheSize)
	assert.Equal(t, "jpeg", cfg.Format)
	assert.Equal(t, mediatypes.DefaultExtensions(), cfg.Extensions)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	clearGalleryEnv(t)
	path := writeConfig(t, `
initial_page_limit: 100
load_more_page_size: 50
workers: 2
progressive_rendering: false
format: png
extensions: [JPG, png]
`)
	t.Setenv("GALLERY_WORKERS", "6")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.InitialPageLimit)
	assert.Equal(t, 50, cfg.LoadMorePageSize)
	assert.Equal(t, 6, cfg.Workers, "environment overrides the file")
	assert.False(t, cfg.ProgressiveRendering)
	assert.Equal(t, "png", cfg.Format)
	assert.Equal(t, []string{".jpg", ".png"}, cfg.Extensions)
}

func TestLoadConfigRejectsUnknownField(t *testing.T) {
	clearGalleryEnv(t)
	path := writeConfig(t, "initial_page_limt: 100\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearGalleryEnv(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfigEmptyFile(t *testing.T) {
	clearGalleryEnv(t)
	cfg, err := LoadConfig(writeConfig(t, "\n"))
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.InitialPageLimit)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(*testing.T, *Config)
	}{
		{
			name:   "workers clamped high",
			mutate: func(c *Config) { c.Workers = 64 },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, 16, c.Workers) },
		},
		{
			name:   "zero workers means auto",
			mutate: func(c *Config) { c.Workers = 0 },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, 0, c.Workers) },
		},
		{
			name:   "page limits restored",
			mutate: func(c *Config) { c.InitialPageLimit = 0; c.LoadMorePageSize = -5 },
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 500, c.InitialPageLimit)
				assert.Equal(t, 200, c.LoadMorePageSize)
			},
		},
		{
			name:   "thumbnail size clamped",
			mutate: func(c *Config) { c.ThumbnailSize = 5000 },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, MaxThumbnailSize, c.ThumbnailSize) },
		},
		{
			name:   "timeout restored",
			mutate: func(c *Config) { c.ItemTimeoutSeconds = 0 },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, 5*time.Second, c.ItemTimeout()) },
		},
		{
			name:   "jpg alias",
			mutate: func(c *Config) { c.Format = "JPG" },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, "jpeg", c.Format) },
		},
		{
			name:   "zero cache size disables the cache",
			mutate: func(c *Config) { c.CacheSize = 0 },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, 0, c.CacheSize) },
		},
		{
			name:   "negative cache size disables the cache",
			mutate: func(c *Config) { c.CacheSize = -3 },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, 0, c.CacheSize) },
		},
		{
			name:   "empty extensions fall back",
			mutate: func(c *Config) { c.Extensions = []string{" "} },
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, mediatypes.DefaultExtensions(), c.Extensions)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.NoError(t, cfg.Validate())
			tt.check(t, cfg)
		})
	}
}

func TestValidateRejectsFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = "avif"
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestValidateServer(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		mediaDir string
		wantErr  bool
	}{
		{name: "default loopback without media dir", host: "127.0.0.1"},
		{name: "localhost", host: "localhost"},
		{name: "ipv6 loopback", host: "::1"},
		{name: "all interfaces without media dir", host: "", wantErr: true},
		{name: "wildcard without media dir", host: "0.0.0.0", wantErr: true},
		{name: "lan address without media dir", host: "192.168.1.20", wantErr: true},
		{name: "all interfaces with media dir", host: "0.0.0.0", mediaDir: "/srv/photos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Host = tt.host
			cfg.MediaDir = tt.mediaDir
			err := cfg.ValidateServer()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfigListensOnLoopback(t *testing.T) {
	clearGalleryEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "", cfg.MediaDir)
	assert.NoError(t, cfg.ValidateServer())
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr("8080"))
	assert.Equal(t, "[::1]:9090", (&Config{Host: "::1"}).Addr("9090"))
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("GALLERY_TEST_INT", "42")
	t.Setenv("GALLERY_TEST_BAD_INT", "forty")
	t.Setenv("GALLERY_TEST_BOOL", "false")
	t.Setenv("GALLERY_TEST_BAD_BOOL", "nah")
	t.Setenv("GALLERY_TEST_STR", "value")

	assert.Equal(t, 42, getEnvInt("GALLERY_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("GALLERY_TEST_BAD_INT", 1))
	assert.Equal(t, 7, getEnvInt("GALLERY_TEST_UNSET_INT", 7))
	assert.False(t, getEnvBool("GALLERY_TEST_BOOL", true))
	assert.True(t, getEnvBool("GALLERY_TEST_BAD_BOOL", true))
	assert.Equal(t, "value", getEnv("GALLERY_TEST_STR", "x"))
	assert.Equal(t, "x", getEnv("GALLERY_TEST_UNSET_STR", "x"))
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/session/open", "api/session"},
		{"/api/session", "api/session"},
		{"/health", "health"},
		{"/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, getRouteGroup(tt.path))
		})
	}
}

func TestGetRoutes(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(_ http.ResponseWriter, _ *http.Request) {}).Methods("GET").Name("health")
	r.HandleFunc("/api/session/open", func(_ http.ResponseWriter, _ *http.Request) {}).Methods("POST")

	routes, err := GetRoutes(r)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, RouteInfo{Method: "GET", Path: "/health", Name: "health"}, routes[0])
	assert.Equal(t, "POST", routes[1].Method)
}
