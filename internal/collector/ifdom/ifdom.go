// Package ifdom implements the interface DOM (digital optical monitoring)
// collector: per-interface optical temperature, voltage and transmit/receive
// power, plus the 3-level status code derived from the transceiver's own
// threshold set.
package ifdom

import (
	"time"

	"codeberg.org/tessen/netdom/internal/collector"
	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/metric"
)

const CollectorName = "ifdom"

// Metric catalog.
const (
	MetricTemp          = "ifdom_temp"
	MetricTempStatus    = "ifdom_temp_status"
	MetricRxPower       = "ifdom_rxpower"
	MetricRxPowerStatus = "ifdom_rxpower_status"
	MetricTxPower       = "ifdom_txpower"
	MetricTxPowerStatus = "ifdom_txpower_status"
	MetricVoltage       = "ifdom_voltage"
	MetricVoltageStatus = "ifdom_voltage_status"
)

// Config is the declared configuration schema of the collector. Interface
// exclusion rules are configuration-declared rather than hardwired since
// vendors disagree on them; the unused-lane rule (DOM data with no matching
// description entry) is not configurable because reporting those rows only
// duplicates the first lane's series.
type Config struct {
	Interval         time.Duration
	ExcludeAdminDown bool
	ExcludeLinkDown  bool
}

func DefaultConfig() Config {
	return Config{
		ExcludeAdminDown: true,
		ExcludeLinkDown:  false,
	}
}

// New builds the ifdom collector definition with every vendor handler
// registered. The cisco.ios variant has no DOM handler; starting this
// collector on such a device is the defined no-handler failure.
func New(cfg Config) *collector.Definition {
	def := collector.NewDefinition(CollectorName, []string{
		MetricTemp, MetricTempStatus,
		MetricRxPower, MetricRxPowerStatus,
		MetricTxPower, MetricTxPowerStatus,
		MetricVoltage, MetricVoltageStatus,
	})
	def.Interval = cfg.Interval

	def.Register(device.VariantEOS, collectEOS(cfg))
	def.Register(device.VariantNXAPI, collectNXAPI(cfg))

	return def
}

// ifTags builds the tag set shared by all metrics of one interface.
// Free-form device text goes through EncodeTag so the values stay safe in
// wire text.
func ifTags(ifName, ifDesc, media string) map[string]string {
	return map[string]string{
		"if_name": ifName,
		"if_desc": metric.EncodeTag(ifDesc),
		"media":   metric.EncodeTag(media),
	}
}

// valueAndStatus emits the raw measurement and its classified status metric.
func valueAndStatus(name, statusName string, value float64, t metric.Thresholds, ts int64, tags map[string]string) []metric.Metric {
	return []metric.Metric{
		{Name: name, Value: value, Timestamp: ts, Tags: tags},
		{Name: statusName, Value: float64(metric.Classify(value, t)), Timestamp: ts, Tags: tags},
	}
}
