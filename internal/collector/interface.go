package collector

import (
	"context"

	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/metric"
)

// CollectFunc is one vendor-specific collection implementation. It returns
// the full list of metrics observed this cycle, or an empty list when there
// is nothing to report; an expected-empty result (a device with no optics)
// is not an error.
type CollectFunc func(ctx context.Context, dev *device.Device) ([]metric.Metric, error)

// Exporter is the executor-side view of a metric sink. Export is invoked as
// a detached unit of work per batch and is never awaited by the scheduler.
type Exporter interface {
	Name() string
	Export(ctx context.Context, dev *device.Device, batch []metric.Metric)
}
