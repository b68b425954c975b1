package metrics

import (
	"context"
	"time"

	"gallery/internal/logging"
)

// DefaultCollectInterval is used when NewCollector gets a non-positive interval.
const DefaultCollectInterval = 15 * time.Second

// StatsProvider is implemented by the session manager.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the session figures that are sampled rather than counted.
type Stats struct {
	WorkingSet   int
	Loaded       int
	Failed       int
	CacheEntries int
}

// Collector samples a StatsProvider into the session gauges.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	last     Stats
}

func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	return &Collector{provider: provider, interval: interval}
}

// Run samples immediately and then on every tick until ctx is done.
func (c *Collector) Run(ctx context.Context) {
	c.Collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Collect()
		case <-ctx.Done():
			return
		}
	}
}

// Collect takes one sample and publishes it. It is not safe to call
// concurrently with Run.
func (c *Collector) Collect() Stats {
	if c.provider == nil {
		return Stats{}
	}

	s := c.provider.GetStats()
	SessionWorkingSet.Set(float64(s.WorkingSet))
	SessionLoadedItems.Set(float64(s.Loaded))
	SessionFailedItems.Set(float64(s.Failed))
	ThumbnailCacheCount.Set(float64(s.CacheEntries))

	if s != c.last {
		logging.Debug("Session stats: working_set=%d loaded=%d failed=%d cache=%d",
			s.WorkingSet, s.Loaded, s.Failed, s.CacheEntries)
		c.last = s
	}
	return s
}
