package exporter

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/errors"
	"codeberg.org/tessen/netdom/internal/logger"
	"codeberg.org/tessen/netdom/internal/metric"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus is a pull-style backend: it retains the latest sample per
// series and serves them on a scrape endpoint. There is no retry envelope
// and no limiter involvement since nothing is pushed.
type Prometheus struct {
	registry *prometheus.Registry
	server   *http.Server

	mu      sync.Mutex
	samples map[string]promSample
}

type promSample struct {
	name   string
	value  float64
	ts     time.Time
	labels map[string]string
}

// NewPrometheus builds the exporter and, if listen is non-empty, starts the
// scrape endpoint on it.
func NewPrometheus(listen string) *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		samples:  make(map[string]promSample),
	}
	p.registry.MustRegister(p)

	if listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
		p.server = &http.Server{
			Addr:              listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.ErrorWithCode(errors.New().Wrap(errors.ErrExportInit, err)).
					Msg("prometheus scrape endpoint failed")
			}
		}()
	}

	return p
}

func (*Prometheus) Name() string {
	return "prometheus"
}

func (p *Prometheus) Export(_ context.Context, dev *device.Device, batch []metric.Metric) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range batch {
		labels := mergeTags(dev.Tags, m.Tags)
		key := m.Name + "|" + sortedTagPairs(labels, "=")
		p.samples[key] = promSample{
			name:   m.Name,
			value:  m.Value,
			ts:     time.UnixMilli(m.Timestamp),
			labels: labels,
		}
	}

	logger.Debug().
		Str("device", dev.Name).
		Int("metrics", len(batch)).
		Msg("prometheus samples updated")
}

func (p *Prometheus) Close() error {
	if p.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.server.Shutdown(ctx); err != nil {
		return errors.New().Wrap(errors.ErrExportClose, err)
	}

	return nil
}

// Registry exposes the backing registry, used by tests to gather directly.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Describe sends no descriptors, making this an unchecked collector: the
// series set varies with whatever the device fleet reports.
func (*Prometheus) Describe(_ chan<- *prometheus.Desc) {}

func (p *Prometheus) Collect(ch chan<- prometheus.Metric) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range p.samples {
		keys := make([]string, 0, len(s.labels))
		for k := range s.labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		vals := make([]string, 0, len(keys))
		for _, k := range keys {
			vals = append(vals, s.labels[k])
		}

		desc := prometheus.NewDesc(s.name, "interface DOM telemetry", keys, nil)
		ch <- prometheus.NewMetricWithTimestamp(s.ts,
			prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, s.value, vals...))
	}
}
