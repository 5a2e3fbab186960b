// Package metrics exposes the operational counters/gauges chronovault's
// components report through, on the default prometheus registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SegmentsWritten counts segment.Store.PutSegment calls, labeled by
	// whether the segment was a fresh write or a dedup hit (same sha
	// already stored for that symbol).
	SegmentsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chronovault",
		Subsystem: "segment",
		Name:      "writes_total",
		Help:      "Segment store writes, labeled by outcome (new, dedup).",
	}, []string{"outcome"})

	// VersionsPruned counts versions removed by PrunePreviousVersion.
	VersionsPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chronovault",
		Subsystem: "library",
		Name:      "versions_pruned_total",
		Help:      "Versions removed by PrunePreviousVersion.",
	})

	// QuotaUsageBytes is the last sampled storage usage per library.
	QuotaUsageBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chronovault",
		Subsystem: "quota",
		Name:      "usage_bytes",
		Help:      "Last sampled storage usage for a library.",
	}, []string{"library"})

	// ProcessCPUPercent is the hub process's own CPU usage, sampled by
	// sysmetrics.Reporter.
	ProcessCPUPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chronovault",
		Subsystem: "process",
		Name:      "cpu_percent",
		Help:      "Process CPU usage percentage since the last sample.",
	})

	// ProcessMemoryBytes is the hub process's in-use memory, sampled by
	// sysmetrics.Reporter.
	ProcessMemoryBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chronovault",
		Subsystem: "process",
		Name:      "memory_inuse_bytes",
		Help:      "Heap and stack memory actively in use by the process.",
	})
)

func init() {
	prometheus.MustRegister(SegmentsWritten, VersionsPruned, QuotaUsageBytes, ProcessCPUPercent, ProcessMemoryBytes)
}
