package collector

import (
	"context"
	"time"

	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/errors"
)

// Definition is a named unit of telemetry logic: the catalog of metric names
// it can emit and a dispatch table from device variant to the collection
// implementation for that vendor. Definitions are constructed and populated
// at process start and read-only afterward; one definition is shared by
// every device that uses it.
type Definition struct {
	Name     string
	Metrics  []string
	Interval time.Duration // 0 falls back to the executor default

	handlers map[device.Variant]CollectFunc
}

func NewDefinition(name string, metrics []string) *Definition {
	return &Definition{
		Name:     name,
		Metrics:  metrics,
		handlers: make(map[device.Variant]CollectFunc),
	}
}

// Register adds or replaces the handler for a variant. Last registration
// wins; duplicate registration is not an error.
func (d *Definition) Register(variant device.Variant, fn CollectFunc) {
	d.handlers[variant] = fn
}

// Handler returns the collection implementation for a variant.
func (d *Definition) Handler(variant device.Variant) (CollectFunc, bool) {
	fn, ok := d.handlers[variant]
	return fn, ok
}

// Start resolves the device's variant to its collection implementation and
// schedules it as a periodic task on the executor. A variant with no
// registered handler is a configuration error fatal for this one
// (device, collector) pair only; the caller logs it and other pairs
// proceed unaffected.
func (d *Definition) Start(ctx context.Context, dev *device.Device, exec *Executor) error {
	fn, ok := d.handlers[dev.Variant]
	if !ok {
		return errors.New().WithData(ErrNoHandler, struct {
			Collector string
			Device    string
			Variant   string
		}{d.Name, dev.Name, string(dev.Variant)})
	}

	exec.Start(ctx, d.Name, fn, d.Interval, dev)

	return nil
}
