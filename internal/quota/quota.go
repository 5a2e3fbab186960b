// Package quota implements per-library storage quotas: a soft limit
// enforced by periodically sampling actual storage usage rather than
// accounting every write, so enforcement lags reality by at most one
// sampling interval.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chronovault/internal/chronoerr"
	"chronovault/internal/metrics"
)

// Quota is the configured limit for one library. A zero Quota.MaxBytes
// means unlimited.
type Quota struct {
	MaxBytes int64
}

// Unlimited reports whether q imposes no limit.
func (q Quota) Unlimited() bool { return q.MaxBytes <= 0 }

// Sampler reports the current storage usage of a library, typically backed
// by a document database's collStats/dbStats admin command.
type Sampler interface {
	SampleBytes(ctx context.Context) (int64, error)
}

// SamplerFunc adapts a plain function to Sampler.
type SamplerFunc func(ctx context.Context) (int64, error)

// SampleBytes implements Sampler.
func (f SamplerFunc) SampleBytes(ctx context.Context) (int64, error) { return f(ctx) }

// Accountant enforces a Quota against a Sampler, re-sampling at most once
// per Interval regardless of how often Check is called.
type Accountant struct {
	name     string
	sampler  Sampler
	interval time.Duration

	mu         sync.Mutex
	quota      Quota
	lastSample time.Time
	lastBytes  int64
}

// NewAccountant creates an Accountant that samples no more often than
// interval. interval <= 0 means sample on every Check call. name labels
// the metrics.QuotaUsageBytes gauge this Accountant updates; it may be
// empty.
func NewAccountant(name string, sampler Sampler, quota Quota, interval time.Duration) *Accountant {
	return &Accountant{name: name, sampler: sampler, quota: quota, interval: interval}
}

// SetQuota replaces the enforced quota, taking effect on the next Check.
func (a *Accountant) SetQuota(q Quota) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.quota = q
}

// Quota returns the currently enforced quota.
func (a *Accountant) Quota() Quota {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quota
}

// Check samples usage (subject to the interval throttle) and returns
// chronoerr.ErrQuotaExceeded if usage is over the configured limit. It runs
// before a write and does not count the write's own size: a write is
// rejected as a whole once sampled usage is already over the limit.
func (a *Accountant) Check(ctx context.Context) error {
	a.mu.Lock()
	quota := a.quota
	stale := a.interval <= 0 || time.Since(a.lastSample) >= a.interval
	cached := a.lastBytes
	a.mu.Unlock()

	if quota.Unlimited() {
		return nil
	}

	usage := cached
	if stale {
		sampled, err := a.sampler.SampleBytes(ctx)
		if err != nil {
			return fmt.Errorf("quota: sample usage: %w", err)
		}
		usage = sampled
		a.mu.Lock()
		a.lastBytes = sampled
		a.lastSample = time.Now()
		a.mu.Unlock()
		if a.name != "" {
			metrics.QuotaUsageBytes.WithLabelValues(a.name).Set(float64(sampled))
		}
	}

	if usage > quota.MaxBytes {
		return fmt.Errorf("quota: usage %d bytes > limit %d bytes: %w", usage, quota.MaxBytes, chronoerr.ErrQuotaExceeded)
	}
	return nil
}
