package ifdom

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"codeberg.org/tessen/netdom/internal/collector"
	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/metric"
)

// Cisco NX-OS handler. The NX-API JSON output reports device-computed
// status flags (++ high-alarm, + high-warning, -- low-alarm, - low-warning)
// without the raw threshold set, so statuses are mapped from the flags
// instead of re-derived. The flag semantics match the canonical classifier's
// severity levels.

type nxTransceiverBody struct {
	Table struct {
		Rows oneOrMany[nxDOMRow] `json:"ROW_interface"`
	} `json:"TABLE_interface"`
}

type nxDOMRow struct {
	Interface   string  `json:"interface"`
	SFP         string  `json:"sfp"`
	Type        string  `json:"type"`
	PartNum     string  `json:"partnum"`
	Temperature nxFloat `json:"temperature"`
	Voltage     nxFloat `json:"voltage"`
	TxPower     nxFloat `json:"tx_pwr"`
	RxPower     nxFloat `json:"rx_pwr"`
	TempFlag    string  `json:"temp_flag"`
	VoltFlag    string  `json:"volt_flag"`
	TxPowerFlag string  `json:"tx_pwr_flag"`
	RxPowerFlag string  `json:"rx_pwr_flag"`
}

type nxStatusBody struct {
	Table struct {
		Rows oneOrMany[nxStatusRow] `json:"ROW_interface"`
	} `json:"TABLE_interface"`
}

type nxStatusRow struct {
	Interface string `json:"interface"`
	State     string `json:"state"`
	Name      string `json:"name"`
}

func collectNXAPI(cfg Config) collector.CollectFunc {
	return func(ctx context.Context, dev *device.Device) ([]metric.Metric, error) {
		res, err := dev.Session.Run(ctx,
			"show interface transceiver details",
			"show interface status",
		)
		if err != nil {
			return nil, err
		}

		var dom nxTransceiverBody
		if err := json.Unmarshal(res[0], &dom); err != nil {
			return nil, err
		}

		var status nxStatusBody
		if err := json.Unmarshal(res[1], &status); err != nil {
			return nil, err
		}

		states := make(map[string]nxStatusRow, len(status.Table.Rows))
		for _, row := range status.Table.Rows {
			states[row.Interface] = row
		}

		ts := metric.Now()

		var batch []metric.Metric
		for _, row := range dom.Table.Rows {
			// Guard against empty cages and non-optical transceivers.
			if row.SFP != "present" || !row.Temperature.Valid {
				continue
			}

			st, ok := states[row.Interface]
			if !ok {
				continue
			}

			if cfg.ExcludeAdminDown && st.State == "disabled" {
				continue
			}
			if cfg.ExcludeLinkDown && (st.State == "notconnect" || st.State == "down") {
				continue
			}

			media := strings.TrimSpace(row.Type)
			if media == "" {
				media = strings.TrimSpace(row.PartNum)
			}
			tags := ifTags(row.Interface, strings.TrimSpace(st.Name), media)

			emit := func(name, statusName string, v nxFloat, flag string) {
				if !v.Valid {
					return
				}
				batch = append(batch,
					metric.Metric{Name: name, Value: v.Value, Timestamp: ts, Tags: tags},
					metric.Metric{Name: statusName, Value: float64(flagStatus(flag)), Timestamp: ts, Tags: tags},
				)
			}

			emit(MetricTemp, MetricTempStatus, row.Temperature, row.TempFlag)
			emit(MetricVoltage, MetricVoltageStatus, row.Voltage, row.VoltFlag)
			emit(MetricTxPower, MetricTxPowerStatus, row.TxPower, row.TxPowerFlag)
			emit(MetricRxPower, MetricRxPowerStatus, row.RxPower, row.RxPowerFlag)
		}

		return batch, nil
	}
}

// flagStatus maps the device-computed DOM flag to a status code.
func flagStatus(flag string) metric.Status {
	switch strings.TrimSpace(flag) {
	case "++", "--":
		return metric.StatusAlarm
	case "+", "-":
		return metric.StatusWarn
	default:
		return metric.StatusOK
	}
}

// nxFloat parses NX-API numeric fields, which arrive as JSON numbers or as
// quoted strings depending on platform and release. Absent fields stay
// invalid and are not reported.
type nxFloat struct {
	Value float64
	Valid bool
}

func (f *nxFloat) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}

	s := strings.TrimSpace(strings.Trim(string(trimmed), `"`))
	if s == "" || s == "N/A" {
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil // unparsable sentinel values are treated as absent
	}

	f.Value = v
	f.Valid = true

	return nil
}

// oneOrMany tolerates the NX-API habit of returning a bare object for a
// single row and an array for several.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var many []T
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}

	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return err
	}
	*o = oneOrMany[T]{one}

	return nil
}
