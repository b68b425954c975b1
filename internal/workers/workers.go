package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Bounds on the thumbnail worker pool. Decoding is CPU and memory heavy, so
// more than MaxWorkers concurrent decodes only adds contention.
const (
	MinWorkers = 1
	MaxWorkers = 16
)

// AutoLimit caps the pool size picked by Auto.
const AutoLimit = 8

// EnvOverride fixes the automatic pool size when set to a positive integer.
const EnvOverride = "THUMBNAIL_WORKERS"

// perCPU is the number of workers per usable CPU. A decode alternates
// between reading the file and resizing, so slightly more workers than
// CPUs keeps the CPUs busy.
const perCPU = 1.5

// Auto returns the pool size used when none is configured. It counts
// GOMAXPROCS rather than NumCPU so container CPU limits are respected.
func Auto() int {
	if n, err := strconv.Atoi(os.Getenv(EnvOverride)); err == nil && n > 0 {
		return min(n, AutoLimit)
	}
	n := int(float64(runtime.GOMAXPROCS(0)) * perCPU)
	return max(MinWorkers, min(n, AutoLimit))
}

// Resolve turns a configured pool size into the one the pipeline uses:
// positive values are clamped, zero or less means Auto.
func Resolve(configured int) int {
	if configured <= 0 {
		return Auto()
	}
	return Clamp(configured)
}

// Clamp bounds n to [MinWorkers, MaxWorkers].
func Clamp(n int) int {
	return max(MinWorkers, min(n, MaxWorkers))
}
