package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/errors"
	"codeberg.org/tessen/netdom/internal/logger"
	"codeberg.org/tessen/netdom/internal/metric"
	"github.com/cenkalti/backoff/v4"
)

// Circonus ships batches as a JSON object of stream-tagged metric names:
// the tag set is label-encoded into the metric name as `name|ST[k:v,...]`.
type Circonus struct {
	cfg     Config
	url     string
	client  *http.Client
	limiter *Limiter
}

func NewCirconus(url string, cfg Config, limiter *Limiter) (*Circonus, error) {
	if url == "" {
		return nil, errors.New().WithMessage(errors.ErrExportInit, "circonus: missing endpoint URL")
	}

	return &Circonus{
		cfg:     cfg,
		url:     url,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
	}, nil
}

func (*Circonus) Name() string {
	return "circonus"
}

func (c *Circonus) Export(ctx context.Context, dev *device.Device, batch []metric.Metric) {
	payload := make(map[string]float64, len(batch))
	for _, m := range batch {
		payload[streamTagName(m.Name, mergeTags(dev.Tags, m.Tags))] = m.Value
	}

	body, err := json.Marshal(payload)
	if err != nil {
		dropBatch(c.Name(), dev, len(batch), err)
		return
	}

	err = shipWithRetry(ctx, c.cfg, c.limiter, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := c.client.Do(req)
		if err != nil {
			return errors.New().Wrap(errors.ErrExportTransient, err)
		}
		defer res.Body.Close()

		return checkStatus(res)
	})
	if err != nil {
		dropBatch(c.Name(), dev, len(batch), err)
		return
	}

	logger.Debug().
		Str("device", dev.Name).
		Int("metrics", len(batch)).
		Msg("circonus batch shipped")
}

func (*Circonus) Close() error {
	return nil
}

// streamTagName label-encodes the merged tag set into the metric name.
// Keys are sorted so a series keeps one identity across cycles.
func streamTagName(name string, tags map[string]string) string {
	return fmt.Sprintf("%s|ST[%s]", name, sortedTagPairs(tags, ":"))
}

// checkStatus applies the backend status policy: client errors are
// non-retryable and drop the batch after one attempt, server errors raise a
// transient failure to trigger the backoff loop.
func checkStatus(res *http.Response) error {
	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return nil
	case res.StatusCode >= 400 && res.StatusCode < 500:
		return backoff.Permanent(errors.New().WithData(errors.ErrExportRejected, res.StatusCode))
	default:
		return errors.New().WithData(errors.ErrExportTransient, res.StatusCode)
	}
}
