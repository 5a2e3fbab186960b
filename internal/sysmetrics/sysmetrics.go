// Package sysmetrics tracks process-level CPU and memory usage and feeds
// it to metrics.ProcessCPUPercent/ProcessMemoryBytes on an interval. It is
// the process-health analogue of quota.Accountant: both poll a resource
// number and throttle how often the expensive part (here, syscall.Getrusage)
// actually runs.
package sysmetrics

import (
	"context"
	"runtime"
	"sync"
	"syscall"
	"time"

	"chronovault/internal/metrics"
)

var (
	mu       sync.Mutex
	lastWall time.Time
	lastUser time.Duration
	lastSys  time.Duration
	lastCPU  float64
)

func init() {
	now := time.Now()
	utime, stime := getrusageTimes()
	mu.Lock()
	lastWall = now
	lastUser = utime
	lastSys = stime
	mu.Unlock()
}

// CPUPercent returns the process CPU usage as a percentage (0-100+) since
// the last call. Multi-core processes can exceed 100%.
func CPUPercent() float64 {
	now := time.Now()
	utime, stime := getrusageTimes()

	mu.Lock()
	defer mu.Unlock()

	wall := now.Sub(lastWall)
	if wall <= 0 {
		return lastCPU
	}

	cpuDelta := (utime - lastUser) + (stime - lastSys)
	pct := float64(cpuDelta) / float64(wall) * 100.0

	lastWall = now
	lastUser = utime
	lastSys = stime
	lastCPU = pct

	return pct
}

// MemoryInuse returns the memory actively in use by the Go runtime, in
// bytes. This is HeapInuse (live heap spans) plus StackInuse (goroutine
// stacks), excluding virtual address space reserved but not committed.
func MemoryInuse() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.HeapInuse + m.StackInuse)
}

func getrusageTimes() (user, sys time.Duration) {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0, 0
	}
	user = time.Duration(rusage.Utime.Nano())
	sys = time.Duration(rusage.Stime.Nano())
	return user, sys
}

// Reporter samples CPUPercent/MemoryInuse on an interval and publishes
// them to metrics.ProcessCPUPercent/ProcessMemoryBytes, until Run's
// context is canceled.
type Reporter struct {
	Interval time.Duration
}

// Run blocks, sampling every r.Interval (default one minute if unset),
// until ctx is canceled.
func (r Reporter) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ProcessCPUPercent.Set(CPUPercent())
			metrics.ProcessMemoryBytes.Set(float64(MemoryInuse()))
		}
	}
}
