package metric

import (
	"encoding/base64"
	"time"
	"unicode"
)

// Status is the 3-level severity classification derived from a raw
// measurement and its threshold set.
type Status int

const (
	StatusOK    Status = 0
	StatusWarn  Status = 1
	StatusAlarm Status = 2
)

// Thresholds is the per-measurement 4-point threshold set reported by the
// transceiver. Expected ordering: LowAlarm <= LowWarn <= HighWarn <= HighAlarm;
// out-of-order sets are a configuration defect and classify arbitrarily.
type Thresholds struct {
	LowAlarm  float64
	LowWarn   float64
	HighWarn  float64
	HighAlarm float64
}

// Classify maps a raw measurement to a status code. Boundaries are inclusive
// and alarm is checked before warn. Every vendor adapter that has raw
// thresholds available must classify through this one function so that status
// codes stay comparable across telemetry sources.
func Classify(value float64, t Thresholds) Status {
	if value <= t.LowAlarm || value >= t.HighAlarm {
		return StatusAlarm
	}

	if value <= t.LowWarn || value >= t.HighWarn {
		return StatusWarn
	}

	return StatusOK
}

// Metric is an immutable observation produced by one collection cycle.
// All metrics of one cycle for one device share a single timestamp taken at
// the start of the cycle.
type Metric struct {
	Name      string
	Value     float64
	Timestamp int64 // milliseconds since epoch
	Tags      map[string]string
}

// Now returns the current metric timestamp in milliseconds since epoch.
func Now() int64 {
	return time.Now().UnixMilli()
}

// EncodeTag base64-encodes tag values that carry free-form device text
// (descriptions, media names) so every tag value is safe to embed in wire
// text. Values that are already plain printable ASCII without separator
// characters pass through unchanged. Encoding is unpadded: the `=` padding
// character is itself a separator in line protocol.
func EncodeTag(value string) string {
	if safeTagValue(value) {
		return value
	}

	return base64.RawStdEncoding.EncodeToString([]byte(value))
}

func safeTagValue(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return false
		}
		switch r {
		case ' ', ',', '=', ':', '|', '"':
			return false
		}
	}

	return true
}
