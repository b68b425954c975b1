// Package memory keeps thumbnail decoding inside the process's memory budget.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main, before significant allocations:
//
//	memory.ConfigureFromEnv()
//
//   - GOMEMLIMIT: standard Go variable, takes precedence when set
//   - MEMORY_LIMIT: container limit in bytes, e.g. from the Downward API
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the heap (default 0.85)
//
// # Backpressure
//
// A [Monitor] samples the heap on an interval. Once usage crosses the
// critical watermark it pauses; pipeline workers call [Monitor.Wait] before
// each decode and block until usage drops back under the high watermark.
//
//	mon := memory.NewMonitor(memory.DefaultConfig())
//	mon.Start()
//	defer mon.Stop()
//
//	if err := mon.Wait(ctx); err != nil {
//	    return err
//	}
//
// Without a limit the monitor never pauses and Wait returns immediately.
package memory
