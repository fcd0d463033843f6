package ifdom_test

import (
	"context"
	"encoding/json"
	"testing"

	"codeberg.org/tessen/netdom/internal/collector/ifdom"
	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSession struct {
	payloads []json.RawMessage
	err      error
}

func (*stubSession) Open(_ context.Context, _ device.Credentials) error { return nil }

func (s *stubSession) Run(_ context.Context, _ ...string) ([]json.RawMessage, error) {
	return s.payloads, s.err
}

func (*stubSession) Close() error { return nil }

func collect(t *testing.T, cfg ifdom.Config, variant device.Variant, payloads ...string) []metric.Metric {
	t.Helper()

	raw := make([]json.RawMessage, 0, len(payloads))
	for _, p := range payloads {
		raw = append(raw, json.RawMessage(p))
	}

	fn, ok := ifdom.New(cfg).Handler(variant)
	require.True(t, ok)

	dev := &device.Device{Name: "sw1.lab", Variant: variant, Session: &stubSession{payloads: raw}}
	batch, err := fn(context.Background(), dev)
	require.NoError(t, err)

	return batch
}

// find returns the single metric with the given name for the given interface.
func find(t *testing.T, batch []metric.Metric, name, ifName string) metric.Metric {
	t.Helper()

	var found []metric.Metric
	for _, m := range batch {
		if m.Name == name && m.Tags["if_name"] == ifName {
			found = append(found, m)
		}
	}
	require.Len(t, found, 1, "metric %s for %s", name, ifName)

	return found[0]
}

func ifNames(batch []metric.Metric) map[string]bool {
	names := make(map[string]bool)
	for _, m := range batch {
		names[m.Tags["if_name"]] = true
	}
	return names
}

const eosDOM = `{
	"interfaces": {
		"Ethernet1": {
			"mediaType": "10GBASE-SR",
			"rxPower": -40,
			"details": {"rxPower": {"lowAlarm": -50, "lowWarn": -45, "highWarn": -3, "highAlarm": 0}}
		},
		"Ethernet2": {
			"mediaType": "10GBASE-LR",
			"rxPower": -50,
			"details": {"rxPower": {"lowAlarm": -50, "lowWarn": -45, "highWarn": -3, "highAlarm": 0}}
		},
		"Ethernet3": {
			"mediaType": "10GBASE-SR",
			"rxPower": -10,
			"details": {"rxPower": {"lowAlarm": -50, "lowWarn": -45, "highWarn": -3, "highAlarm": 0}}
		},
		"Ethernet4/2": {
			"mediaType": "40GBASE-SR4",
			"rxPower": -5,
			"details": {"rxPower": {"lowAlarm": -50, "lowWarn": -45, "highWarn": -3, "highAlarm": 0}}
		},
		"Ethernet5": {
			"mediaType": "10GBASE-SR",
			"rxPower": -45,
			"details": {"rxPower": {"lowAlarm": -50, "lowWarn": -45, "highWarn": -3, "highAlarm": 0}}
		},
		"Management1": {"mediaType": "", "details": {}}
	}
}`

const eosDesc = `{
	"interfaceDescriptions": {
		"Ethernet1": {"description": "uplink", "interfaceStatus": "up"},
		"Ethernet2": {"description": "", "interfaceStatus": "up"},
		"Ethernet3": {"description": "", "interfaceStatus": "adminDown"},
		"Ethernet5": {"description": "", "interfaceStatus": "down"},
		"Management1": {"description": "", "interfaceStatus": "up"}
	}
}`

func TestEOSStatusFromThresholds(t *testing.T) {
	batch := collect(t, ifdom.DefaultConfig(), device.VariantEOS, eosDOM, eosDesc)

	// In-range value classifies as ok.
	rx := find(t, batch, ifdom.MetricRxPower, "Ethernet1")
	assert.Equal(t, -40.0, rx.Value)
	assert.Equal(t, float64(metric.StatusOK), find(t, batch, ifdom.MetricRxPowerStatus, "Ethernet1").Value)

	// A value on the alarm boundary classifies as alarm.
	assert.Equal(t, float64(metric.StatusAlarm), find(t, batch, ifdom.MetricRxPowerStatus, "Ethernet2").Value)

	// A value on the warn boundary classifies as warning.
	assert.Equal(t, float64(metric.StatusWarn), find(t, batch, ifdom.MetricRxPowerStatus, "Ethernet5").Value)
}

func TestEOSValueAndStatusShareTimestampAndTags(t *testing.T) {
	batch := collect(t, ifdom.DefaultConfig(), device.VariantEOS, eosDOM, eosDesc)

	rx := find(t, batch, ifdom.MetricRxPower, "Ethernet1")
	st := find(t, batch, ifdom.MetricRxPowerStatus, "Ethernet1")
	assert.Equal(t, rx.Timestamp, st.Timestamp)
	assert.Equal(t, rx.Tags, st.Tags)
	assert.Equal(t, "uplink", rx.Tags["if_desc"])
	assert.Equal(t, "10GBASE-SR", rx.Tags["media"])
}

func TestEOSInterfaceFiltering(t *testing.T) {
	names := ifNames(collect(t, ifdom.DefaultConfig(), device.VariantEOS, eosDOM, eosDesc))

	assert.False(t, names["Ethernet3"], "admin-down interfaces are excluded by default")
	assert.False(t, names["Ethernet4/2"], "lanes absent from description data are excluded")
	assert.False(t, names["Management1"], "non-optical interfaces report no DOM details")
	assert.True(t, names["Ethernet5"], "link-down interfaces are reported by default")
}

func TestEOSAdminDownIncludedWhenConfigured(t *testing.T) {
	cfg := ifdom.DefaultConfig()
	cfg.ExcludeAdminDown = false

	names := ifNames(collect(t, cfg, device.VariantEOS, eosDOM, eosDesc))
	assert.True(t, names["Ethernet3"])
}

func TestEOSLinkDownExcludedWhenConfigured(t *testing.T) {
	cfg := ifdom.DefaultConfig()
	cfg.ExcludeLinkDown = true

	names := ifNames(collect(t, cfg, device.VariantEOS, eosDOM, eosDesc))
	assert.False(t, names["Ethernet5"])
	assert.True(t, names["Ethernet1"])
}

const nxDOM = `{
	"TABLE_interface": {
		"ROW_interface": [
			{
				"interface": "Ethernet1/1",
				"sfp": "present",
				"type": "10Gbase-SR",
				"partnum": "FTLX8571D3BCL",
				"temperature": "24.53",
				"voltage": 3.28,
				"tx_pwr": "-2.11",
				"rx_pwr": "-4.00",
				"temp_flag": "",
				"volt_flag": "",
				"tx_pwr_flag": "+",
				"rx_pwr_flag": "++"
			},
			{"interface": "Ethernet1/2", "sfp": "not present"},
			{"interface": "Ethernet1/3", "sfp": "present", "temperature": "N/A"},
			{
				"interface": "Ethernet1/4",
				"sfp": "present",
				"type": "10Gbase-LR",
				"temperature": 21.0,
				"rx_pwr": "-6.5",
				"rx_pwr_flag": "--",
				"temp_flag": ""
			}
		]
	}
}`

const nxStatus = `{
	"TABLE_interface": {
		"ROW_interface": [
			{"interface": "Ethernet1/1", "state": "connected", "name": "spine uplink"},
			{"interface": "Ethernet1/4", "state": "disabled", "name": ""}
		]
	}
}`

func TestNXAPIStatusFromFlags(t *testing.T) {
	batch := collect(t, ifdom.DefaultConfig(), device.VariantNXAPI, nxDOM, nxStatus)

	assert.Equal(t, float64(metric.StatusOK), find(t, batch, ifdom.MetricTempStatus, "Ethernet1/1").Value)
	assert.Equal(t, float64(metric.StatusWarn), find(t, batch, ifdom.MetricTxPowerStatus, "Ethernet1/1").Value)
	assert.Equal(t, float64(metric.StatusAlarm), find(t, batch, ifdom.MetricRxPowerStatus, "Ethernet1/1").Value)
}

func TestNXAPINumericFieldsParseBothEncodings(t *testing.T) {
	batch := collect(t, ifdom.DefaultConfig(), device.VariantNXAPI, nxDOM, nxStatus)

	// Quoted and bare numbers both parse.
	assert.Equal(t, 24.53, find(t, batch, ifdom.MetricTemp, "Ethernet1/1").Value)
	assert.Equal(t, 3.28, find(t, batch, ifdom.MetricVoltage, "Ethernet1/1").Value)
	assert.Equal(t, -4.0, find(t, batch, ifdom.MetricRxPower, "Ethernet1/1").Value)
}

func TestNXAPIInterfaceFiltering(t *testing.T) {
	names := ifNames(collect(t, ifdom.DefaultConfig(), device.VariantNXAPI, nxDOM, nxStatus))

	assert.True(t, names["Ethernet1/1"])
	assert.False(t, names["Ethernet1/2"], "empty cages are excluded")
	assert.False(t, names["Ethernet1/3"], "transceivers without DOM data are excluded")
	assert.False(t, names["Ethernet1/4"], "admin-disabled interfaces are excluded by default")
}

func TestNXAPIAdminDownIncludedWhenConfigured(t *testing.T) {
	cfg := ifdom.DefaultConfig()
	cfg.ExcludeAdminDown = false

	batch := collect(t, cfg, device.VariantNXAPI, nxDOM, nxStatus)
	names := ifNames(batch)
	assert.True(t, names["Ethernet1/4"])

	// Absent measurements on the included row are simply not reported.
	assert.Equal(t, float64(metric.StatusAlarm), find(t, batch, ifdom.MetricRxPowerStatus, "Ethernet1/4").Value)
	for _, m := range batch {
		if m.Tags["if_name"] == "Ethernet1/4" {
			assert.NotEqual(t, ifdom.MetricTxPower, m.Name)
			assert.NotEqual(t, ifdom.MetricVoltage, m.Name)
		}
	}
}

// NX-API returns a bare object instead of an array when a table has one row.
func TestNXAPISingleRowObject(t *testing.T) {
	dom := `{"TABLE_interface": {"ROW_interface": {
		"interface": "Ethernet1/1", "sfp": "present", "type": "10Gbase-SR",
		"temperature": "30.0", "temp_flag": ""
	}}}`
	status := `{"TABLE_interface": {"ROW_interface": {
		"interface": "Ethernet1/1", "state": "connected", "name": ""
	}}}`

	batch := collect(t, ifdom.DefaultConfig(), device.VariantNXAPI, dom, status)
	require.Len(t, batch, 2)
	assert.Equal(t, 30.0, find(t, batch, ifdom.MetricTemp, "Ethernet1/1").Value)
}

func TestMetricCatalogDeclared(t *testing.T) {
	def := ifdom.New(ifdom.DefaultConfig())

	assert.Equal(t, ifdom.CollectorName, def.Name)
	assert.Contains(t, def.Metrics, ifdom.MetricRxPower)
	assert.Contains(t, def.Metrics, ifdom.MetricRxPowerStatus)
	assert.Len(t, def.Metrics, 8)

	_, ok := def.Handler(device.VariantIOS)
	assert.False(t, ok, "no DOM handler exists for IOS devices")
}
