package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/errors"
	"codeberg.org/tessen/netdom/internal/logger"
	"codeberg.org/tessen/netdom/internal/metric"
)

// Executor owns one self-renewing collection loop per (device, collector)
// pair. Loops share no mutable state with each other; the only cross-task
// shared resource in the process is the exporters' in-flight limiter.
type Executor struct {
	defaultInterval time.Duration
	exporters       []Exporter
	wg              sync.WaitGroup
}

func NewExecutor(defaultInterval time.Duration, exporters ...Exporter) *Executor {
	return &Executor{
		defaultInterval: defaultInterval,
		exporters:       exporters,
	}
}

// Start schedules the collection function as an indefinite periodic task for
// the given device. The first invocation runs immediately; Start returns
// without waiting for any cycle to complete. The loop has no terminal state
// except cancellation of ctx at process shutdown.
func (e *Executor) Start(ctx context.Context, name string, fn CollectFunc, interval time.Duration, dev *device.Device) {
	if interval <= 0 {
		interval = e.defaultInterval
	}

	e.wg.Add(1)
	go e.run(ctx, name, fn, interval, dev)
}

// StartDevice establishes the device session and starts every given
// collector definition on it. A session that cannot be established is
// fatal for the whole device: no loop is started and the error is returned
// for the caller to log exactly once. A definition without a handler for the
// device's variant is fatal for that pair only and logged here.
func (e *Executor) StartDevice(ctx context.Context, dev *device.Device, creds device.Credentials, defs ...*Definition) error {
	if err := dev.Session.Open(ctx, creds); err != nil {
		return errors.New().WithData(ErrDeviceLogin, struct {
			Device string
			Error  string
		}{dev.Name, err.Error()})
	}

	for _, def := range defs {
		if err := def.Start(ctx, dev, e); err != nil {
			var appErr errors.Error
			if errors.As(err, &appErr) {
				logger.ErrorWithCode(appErr).Msg("collector not started")
			} else {
				logger.Error().Err(err).Str("device", dev.Name).Msg("collector not started")
			}
			continue
		}
		logger.Info().
			Str("device", dev.Name).
			Str("collector", def.Name).
			Msg("collection started")
	}

	return nil
}

// Wait blocks until every scheduling loop has exited. Only meaningful after
// the context passed to Start has been cancelled.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) run(ctx context.Context, name string, fn CollectFunc, interval time.Duration, dev *device.Device) {
	defer e.wg.Done()

	for {
		batch := e.cycle(ctx, name, fn, dev)

		// Fire-and-forget: export of this cycle may still be in flight
		// when the next poll begins.
		if len(batch) > 0 {
			for _, exp := range e.exporters {
				go exp.Export(ctx, dev, batch)
			}
		}

		// The timer starts only after the cycle completes, so a poll that
		// outlasts the interval still gets a full inter-cycle sleep.
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// cycle runs one collection invocation. Any failure, including a panic in a
// vendor handler, is logged with device identity and yields zero metrics;
// one bad poll must not stop future polls of the same device.
func (e *Executor) cycle(ctx context.Context, name string, fn CollectFunc, dev *device.Device) (batch []metric.Metric) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorWithCode(errors.New().WithData(ErrCollectPanic, struct {
				Collector string
				Device    string
				Panic     string
			}{name, dev.Name, fmt.Sprint(r)})).Msg("collection cycle panicked")
			batch = nil
		}
	}()

	batch, err := fn(ctx, dev)
	if err != nil {
		logger.ErrorWithCode(errors.New().Wrap(ErrCollectFailed, err).
			WithMessage(fmt.Sprintf("%s: collection cycle failed on %s", dev.Name, name))).Send()
		return nil
	}

	logger.Debug().
		Str("device", dev.Name).
		Str("collector", name).
		Int("metrics", len(batch)).
		Msg("collection cycle complete")

	return batch
}
