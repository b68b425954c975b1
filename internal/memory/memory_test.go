package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestMonitor(alloc *atomic.Uint64) *Monitor {
	return NewMonitor(Config{
		MemoryLimitBytes:  1000,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Hour,
		Sample:            alloc.Load,
	})
}

func TestMonitorPausesAndResumes(t *testing.T) {
	var alloc atomic.Uint64
	m := newTestMonitor(&alloc)
	defer m.Stop()

	alloc.Store(500)
	m.checkMemory()
	if m.IsPaused() {
		t.Fatal("paused at 50% usage")
	}

	alloc.Store(900)
	m.checkMemory()
	if !m.IsPaused() {
		t.Fatal("not paused at 90% usage")
	}

	released := make(chan error, 1)
	go func() { released <- m.Wait(context.Background()) }()

	// still above the high watermark: stays paused
	alloc.Store(750)
	m.checkMemory()
	select {
	case <-released:
		t.Fatal("Wait returned while still above the high watermark")
	case <-time.After(20 * time.Millisecond):
	}

	alloc.Store(600)
	m.checkMemory()
	select {
	case err := <-released:
		if err != nil {
			t.Fatalf("Wait returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after memory recovered")
	}

	current, limit, usage := m.GetStats()
	if current != 600 || limit != 1000 || usage != 0.6 {
		t.Errorf("GetStats() = %d, %d, %v", current, limit, usage)
	}
}

func TestWaitHonoursContextAndStop(t *testing.T) {
	var alloc atomic.Uint64
	m := newTestMonitor(&alloc)
	alloc.Store(950)
	m.checkMemory()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want DeadlineExceeded", err)
	}

	m.Stop()
	m.Stop()
	if err := m.Wait(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Wait() after Stop = %v, want ErrStopped", err)
	}
}

func TestWaitWithoutPressure(t *testing.T) {
	m := NewMonitor(Config{Sample: func() uint64 { return 1 }})
	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}

func TestMemoryRatio(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"", DefaultMemoryRatio},
		{"0.5", 0.5},
		{"1", 1},
		{"0", DefaultMemoryRatio},
		{"1.5", DefaultMemoryRatio},
		{"abc", DefaultMemoryRatio},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := memoryRatio(tt.raw); got != tt.want {
				t.Errorf("memoryRatio(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatBytes(tt.in); got != tt.want {
				t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfigureFromEnvWithoutLimit(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	res := ConfigureFromEnv()
	if res.Configured || res.Source != "none" {
		t.Errorf("ConfigureFromEnv() = %+v, want unconfigured", res)
	}
}

func TestConfigureFromEnvInvalidLimit(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "lots")

	res := ConfigureFromEnv()
	if res.Configured {
		t.Errorf("ConfigureFromEnv() = %+v, want unconfigured", res)
	}
}
