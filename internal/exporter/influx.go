package exporter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/errors"
	"codeberg.org/tessen/netdom/internal/logger"
	"codeberg.org/tessen/netdom/internal/metric"
	"github.com/cenkalti/backoff/v4"
)

// InfluxDB ships batches in line protocol: one `name,k=v,... value=<v> <ts>`
// line per metric, timestamps scaled from milliseconds to nanoseconds.
type InfluxDB struct {
	cfg     Config
	postURL string
	client  *http.Client
	limiter *Limiter
}

func NewInfluxDB(serverURL, database string, cfg Config, limiter *Limiter) (*InfluxDB, error) {
	errFactory := errors.New()

	if serverURL == "" {
		return nil, errFactory.WithMessage(errors.ErrExportInit, "influxdb: missing server URL")
	}
	if database == "" {
		return nil, errFactory.WithMessage(errors.ErrExportInit, "influxdb: missing database")
	}

	return &InfluxDB{
		cfg:     cfg,
		postURL: fmt.Sprintf("%s/write?db=%s", strings.TrimRight(serverURL, "/"), url.QueryEscape(database)),
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
	}, nil
}

func (*InfluxDB) Name() string {
	return "influxdb"
}

func (i *InfluxDB) Export(ctx context.Context, dev *device.Device, batch []metric.Metric) {
	lines := make([]string, 0, len(batch))
	for _, m := range batch {
		lines = append(lines, lineProtocol(dev, m))
	}
	body := strings.Join(lines, "\n")

	err := shipWithRetry(ctx, i.cfg, i.limiter, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.postURL, strings.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}

		res, err := i.client.Do(req)
		if err != nil {
			return errors.New().Wrap(errors.ErrExportTransient, err)
		}
		defer res.Body.Close()

		return checkStatus(res)
	})
	if err != nil {
		dropBatch(i.Name(), dev, len(batch), err)
		return
	}

	logger.Debug().
		Str("device", dev.Name).
		Int("metrics", len(batch)).
		Msg("influxdb batch shipped")
}

func (*InfluxDB) Close() error {
	return nil
}

func lineProtocol(dev *device.Device, m metric.Metric) string {
	// millisecond timestamps scaled to the nanosecond precision the write
	// endpoint defaults to
	ns := m.Timestamp * 1_000_000

	labels := sortedTagPairs(mergeTags(dev.Tags, m.Tags), "=")
	if labels == "" {
		return fmt.Sprintf("%s value=%v %d", m.Name, m.Value, ns)
	}

	return fmt.Sprintf("%s,%s value=%v %d", m.Name, labels, m.Value, ns)
}
