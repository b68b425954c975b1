package memory

import (
	"errors"
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"gallery/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The remainder covers libvips buffers and goroutine stacks.
const DefaultMemoryRatio = 0.85

// ErrStopped is returned by Monitor.Wait after Stop.
var ErrStopped = errors.New("memory monitor stopped")

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	Configured     bool
	Source         string // "GOMEMLIMIT", "MEMORY_LIMIT", or "none"
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv sets GOMEMLIMIT from a container memory limit.
// Call this early in main() before significant allocations.
//
// Environment variables:
//   - GOMEMLIMIT: if set, takes precedence and is only reported
//   - MEMORY_LIMIT: container memory limit in bytes (Kubernetes Downward API)
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the Go heap (default 0.85)
func ConfigureFromEnv() ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return ConfigResult{Source: "none"}
	}

	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Ignoring MEMORY_LIMIT %q: not a positive byte count", raw)
		return ConfigResult{Source: "none"}
	}

	ratio := memoryRatio(os.Getenv("MEMORY_RATIO"))
	goMemLimit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		formatBytes(goMemLimit), ratio*100, formatBytes(containerLimit))

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

// memoryRatio parses MEMORY_RATIO, falling back to DefaultMemoryRatio when
// the value is missing or outside (0, 1].
func memoryRatio(raw string) float64 {
	if raw == "" {
		return DefaultMemoryRatio
	}
	r, err := strconv.ParseFloat(raw, 64)
	if err != nil || r <= 0 || r > 1 {
		logging.Warn("MEMORY_RATIO %q invalid, using default %.2f", raw, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return r
}

// formatBytes formats bytes into human-readable string
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
