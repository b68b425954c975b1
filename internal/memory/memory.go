package memory

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"gallery/internal/logging"
	"gallery/internal/metrics"
)

// Config holds memory management configuration
type Config struct {
	// MemoryLimitBytes is the soft memory limit (0 = use GOMEMLIMIT or no limit)
	MemoryLimitBytes int64

	// HighWaterMark is the fraction of the limit below which a paused
	// monitor resumes (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the fraction at which thumbnail work pauses (0.0-1.0)
	CriticalWaterMark float64

	// CheckInterval is how often to check memory usage
	CheckInterval time.Duration

	// Sample reports the bytes currently allocated. Defaults to
	// runtime.MemStats.Alloc.
	Sample func() uint64
}

// DefaultConfig returns sensible defaults for memory management
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     2 * time.Second,
	}
}

// Monitor tracks memory usage and pauses thumbnail workers when the heap
// approaches the limit.
type Monitor struct {
	config   Config
	limit    int64
	stopChan chan struct{}
	stopOnce sync.Once

	mu        sync.RWMutex
	current   uint64
	isPaused  bool
	pauseChan chan struct{}
}

// NewMonitor creates a new memory monitor
func NewMonitor(config Config) *Monitor {
	limit := config.MemoryLimitBytes

	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < math.MaxInt64 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %s", formatBytes(limit))
		}
	}

	if limit == 0 {
		logging.Debug("Memory monitor: no memory limit configured, backpressure disabled")
	}

	if config.Sample == nil {
		config.Sample = sampleAlloc
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultConfig().CheckInterval
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		stopChan:  make(chan struct{}),
		pauseChan: make(chan struct{}),
	}
}

func sampleAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Start begins monitoring memory usage
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}

	go m.monitorLoop()
}

// Stop stops the monitor and releases any waiters.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkMemory()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) checkMemory() {
	alloc := m.config.Sample()

	m.mu.Lock()
	m.current = alloc
	wasPaused := m.isPaused

	if m.limit > 0 {
		usage := float64(alloc) / float64(m.limit)
		metrics.MemoryUsageRatio.Set(usage)

		switch {
		case usage >= m.config.CriticalWaterMark && !m.isPaused:
			logging.Warn("Memory critical (%.1f%% of limit), pausing thumbnail work", usage*100)
			m.isPaused = true
			metrics.MemoryPaused.Set(1)
			metrics.MemoryGCPauses.Inc()
			go runtime.GC()
		case usage < m.config.HighWaterMark && m.isPaused:
			logging.Info("Memory recovered (%.1f%% of limit), resuming thumbnail work", usage*100)
			m.isPaused = false
			metrics.MemoryPaused.Set(0)
			close(m.pauseChan)
			m.pauseChan = make(chan struct{})
		}
	}
	paused := m.isPaused
	m.mu.Unlock()

	if paused != wasPaused {
		logging.Debug("Memory state changed: paused=%v, alloc=%s", paused, formatBytes(int64(min(alloc, math.MaxInt64))))
	}
}

// Wait blocks while memory usage is critical. It returns ctx.Err() if the
// context ends first and ErrStopped once the monitor is stopped.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.RLock()
	if !m.isPaused {
		m.mu.RUnlock()
		return nil
	}
	pauseChan := m.pauseChan
	m.mu.RUnlock()

	select {
	case <-pauseChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopChan:
		return ErrStopped
	}
}

// IsPaused returns true if processing should be paused entirely
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// GetStats returns current memory statistics
func (m *Monitor) GetStats() (current, limit int64, usage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	currentInt64 := int64(min(m.current, math.MaxInt64))

	var usageRatio float64
	if m.limit > 0 {
		usageRatio = float64(m.current) / float64(m.limit)
	}

	return currentInt64, m.limit, usageRatio
}
