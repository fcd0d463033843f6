package ifdom

import (
	"context"
	"encoding/json"

	"codeberg.org/tessen/netdom/internal/collector"
	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/metric"
)

// Arista EOS handler. eAPI reports raw threshold sets per measurement, so
// status codes are derived with the canonical classifier.

type eosTransceiverDetail struct {
	Interfaces map[string]eosInterfaceDOM `json:"interfaces"`
}

type eosInterfaceDOM struct {
	MediaType   string                   `json:"mediaType"`
	TxPower     float64                  `json:"txPower"`
	RxPower     float64                  `json:"rxPower"`
	Temperature float64                  `json:"temperature"`
	Voltage     float64                  `json:"voltage"`
	Details     map[string]eosThresholds `json:"details"`
}

type eosThresholds struct {
	LowAlarm  float64 `json:"lowAlarm"`
	LowWarn   float64 `json:"lowWarn"`
	HighWarn  float64 `json:"highWarn"`
	HighAlarm float64 `json:"highAlarm"`
}

func (t eosThresholds) thresholds() metric.Thresholds {
	return metric.Thresholds{
		LowAlarm:  t.LowAlarm,
		LowWarn:   t.LowWarn,
		HighWarn:  t.HighWarn,
		HighAlarm: t.HighAlarm,
	}
}

type eosDescriptions struct {
	InterfaceDescriptions map[string]eosIfDesc `json:"interfaceDescriptions"`
}

type eosIfDesc struct {
	Description     string `json:"description"`
	InterfaceStatus string `json:"interfaceStatus"`
}

func collectEOS(cfg Config) collector.CollectFunc {
	return func(ctx context.Context, dev *device.Device) ([]metric.Metric, error) {
		res, err := dev.Session.Run(ctx,
			"show interfaces transceiver detail",
			"show interfaces description",
		)
		if err != nil {
			return nil, err
		}

		var dom eosTransceiverDetail
		if err := json.Unmarshal(res[0], &dom); err != nil {
			return nil, err
		}

		var desc eosDescriptions
		if err := json.Unmarshal(res[1], &desc); err != nil {
			return nil, err
		}

		ts := metric.Now()

		var batch []metric.Metric
		for ifName, d := range dom.Interfaces {
			// Non-optical transceivers report an empty DOM row.
			if len(d.Details) == 0 {
				continue
			}

			// An interface name absent from the description data is an
			// unused transceiver lane carrying the first lane's values.
			ifDesc, ok := desc.InterfaceDescriptions[ifName]
			if !ok {
				continue
			}

			if cfg.ExcludeAdminDown && eosAdminDown(ifDesc.InterfaceStatus) {
				continue
			}
			if cfg.ExcludeLinkDown && eosLinkDown(ifDesc.InterfaceStatus) {
				continue
			}

			tags := ifTags(ifName, ifDesc.Description, d.MediaType)

			if t, ok := d.Details["temperature"]; ok {
				batch = append(batch, valueAndStatus(MetricTemp, MetricTempStatus, d.Temperature, t.thresholds(), ts, tags)...)
			}
			if t, ok := d.Details["rxPower"]; ok {
				batch = append(batch, valueAndStatus(MetricRxPower, MetricRxPowerStatus, d.RxPower, t.thresholds(), ts, tags)...)
			}
			if t, ok := d.Details["txPower"]; ok {
				batch = append(batch, valueAndStatus(MetricTxPower, MetricTxPowerStatus, d.TxPower, t.thresholds(), ts, tags)...)
			}
			if t, ok := d.Details["voltage"]; ok {
				batch = append(batch, valueAndStatus(MetricVoltage, MetricVoltageStatus, d.Voltage, t.thresholds(), ts, tags)...)
			}
		}

		return batch, nil
	}
}

func eosAdminDown(status string) bool {
	return status == "adminDown" || status == "disabled"
}

func eosLinkDown(status string) bool {
	return status == "down" || status == "notconnect"
}
