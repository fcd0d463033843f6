// Package exporter ships metric batches to telemetry backends. Push
// backends (Circonus, InfluxDB) retry transient failures with exponential
// backoff inside a single export call; the number of simultaneous in-flight
// attempts across all devices and collectors is capped by one process-wide
// limiter, the system's only cross-task shared mutable resource.
package exporter

import (
	"context"
	"sort"
	"strings"
	"time"

	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/errors"
	"codeberg.org/tessen/netdom/internal/logger"
	"codeberg.org/tessen/netdom/internal/metric"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxInflight = 100
	DefaultBackoffBase = 4 * time.Second
	DefaultBackoffCap  = 10 * time.Second
)

// Exporter is a metric sink. Export is invoked as a detached unit of work
// per batch; a batch that cannot be delivered is logged and dropped, never
// surfaced to the scheduler.
type Exporter interface {
	Name() string
	Export(ctx context.Context, dev *device.Device, batch []metric.Metric)
	Close() error
}

// Config bounds the retry envelope shared by the push backends.
type Config struct {
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// ExportTimeout caps one whole export call including backoff waits.
	// Zero means retry without bound.
	ExportTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BackoffBase: DefaultBackoffBase,
		BackoffCap:  DefaultBackoffCap,
	}
}

// Limiter caps in-flight export attempts process-wide. It is acquired once
// per call attempt and released unconditionally when the attempt returns,
// so a batch waiting out a backoff interval holds no slot.
type Limiter struct {
	sem *semaphore.Weighted
}

func NewLimiter(capacity int64) *Limiter {
	if capacity <= 0 {
		capacity = DefaultMaxInflight
	}

	return &Limiter{sem: semaphore.NewWeighted(capacity)}
}

func (l *Limiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *Limiter) Release() {
	l.sem.Release(1)
}

// shipWithRetry drives one export call's retry envelope: exponential backoff
// between attempts, unbounded unless the config says otherwise, stopped
// early by a permanent (client-error) failure.
func shipWithRetry(ctx context.Context, cfg Config, limiter *Limiter, attempt func(ctx context.Context) error) error {
	if cfg.ExportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ExportTimeout)
		defer cancel()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.BackoffBase
	bo.MaxInterval = cfg.BackoffCap
	bo.MaxElapsedTime = cfg.ExportTimeout // 0 keeps retrying

	op := func() error {
		if err := limiter.Acquire(ctx); err != nil {
			return backoff.Permanent(err)
		}
		defer limiter.Release()

		return attempt(ctx)
	}

	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

// mergeTags merges device-level tags with metric-level tags; metric tags
// take precedence on key collision.
func mergeTags(deviceTags, metricTags map[string]string) map[string]string {
	merged := make(map[string]string, len(deviceTags)+len(metricTags))
	for k, v := range deviceTags {
		merged[k] = v
	}
	for k, v := range metricTags {
		merged[k] = v
	}

	return merged
}

// sortedTagPairs renders merged tags deterministically for wire formats and
// series identity.
func sortedTagPairs(tags map[string]string, sep string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+sep+tags[k])
	}

	return strings.Join(pairs, ",")
}

// dropBatch logs a permanently failed batch. There is no durable queue, so
// this is data loss for that cycle only, not a process fault.
func dropBatch(name string, dev *device.Device, size int, err error) {
	logger.ErrorWithCode(errors.New().WithData(errors.ErrExportDropped, struct {
		Exporter string
		Device   string
		Metrics  int
		Error    string
	}{name, dev.Name, size, err.Error()})).Msg("metrics batch dropped")
}
