package coldstart

import (
	"strings"
	"time"
)

// Timestamp is an instant on the epoch-millisecond scale. Fallback marks a
// value that is the wall clock at parse time rather than the source's time.
type Timestamp struct {
	Ms       float64 `json:"ms"`
	Fallback bool    `json:"fallback,omitempty"`
}

const naiveLayout = "2006-01-02T15:04:05.999999999"

// NormalizeTimestamp never fails: unparseable input yields now, tagged as a fallback.
func NormalizeTimestamp(raw string, now time.Time) Timestamp {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "T") {
		iso := raw
		if strings.HasSuffix(iso, "Z") {
			iso = strings.TrimSuffix(iso, "Z") + "+00:00"
		}
		if t, err := time.Parse(time.RFC3339Nano, iso); err == nil {
			return Timestamp{Ms: millis(t)}
		}
		if t, err := time.ParseInLocation(naiveLayout, iso, time.UTC); err == nil {
			return Timestamp{Ms: millis(t)}
		}
	}
	return Timestamp{Ms: millis(now), Fallback: true}
}

func TimestampFromTime(t time.Time, now time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{Ms: millis(now), Fallback: true}
	}
	return Timestamp{Ms: millis(t)}
}

func (t Timestamp) IsZero() bool {
	return t.Ms == 0 && !t.Fallback
}

func (t Timestamp) Time() time.Time {
	return time.UnixMicro(int64(t.Ms * 1000)).UTC()
}

// Sub returns t - other in milliseconds.
func (t Timestamp) Sub(other Timestamp) float64 {
	return t.Ms - other.Ms
}

func millis(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Millisecond)
}
