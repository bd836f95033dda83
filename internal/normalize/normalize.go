// Package normalize converts physical meter values into the fixed-point
// integers that are persisted, and derives timestamps for heat readings.
//
// Every stored quantity is scaled by 1000 and truncated toward zero, so three
// decimal digits survive exactly. Readers reverse the scaling with FromMilli.
package normalize

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// HourEpoch anchors hourcounter zero of the Kamstrup meter. Untimestamped
// records are placed at HourEpoch + hours*3600.
const HourEpoch int64 = 1454461908

const milliScale = 3

// ErrOutOfRange is returned for values whose stored integer would not fit in
// an int64.
var ErrOutOfRange = errors.New("value out of range")

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// Hour counts whose derived timestamp still fits in an int64.
const (
	maxDerivedHours = (math.MaxInt64 - HourEpoch) / 3600
	minDerivedHours = math.MinInt64 / 3600
)

// MilliFromFloat scales v by 1000 and truncates toward zero. The scaling is
// done on the shortest decimal form of v, so 0.29 yields 290 rather than the
// 289 a plain float multiply would give.
func MilliFromFloat(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("non-finite value %v", v)
	}
	return milli(decimal.NewFromFloat(v))
}

func milli(d decimal.Decimal) (int64, error) {
	m := d.Shift(milliScale).Truncate(0)
	if m.GreaterThan(maxInt64) || m.LessThan(minInt64) {
		return 0, errors.Wrapf(ErrOutOfRange, "%s", d.String())
	}
	return m.IntPart(), nil
}

// MilliFromDecimalText applies the MilliFromFloat rule to decimal text
// without passing through a float.
func MilliFromDecimalText(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "decimal %q", s)
	}
	return milli(d)
}

// FromMilli converts a stored milli-unit integer back to physical units.
func FromMilli(v int64) float64 {
	return float64(v) / 1000.0
}

// Hourcounter truncates the meter's fractional hour count.
func Hourcounter(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("non-finite value %v", v)
	}
	// float64(math.MaxInt64) rounds up to 2^63, so the upper bound is exclusive.
	if v >= math.MaxInt64 || v < math.MinInt64 {
		return 0, errors.Wrapf(ErrOutOfRange, "hourcounter %v", v)
	}
	return int64(math.Trunc(v)), nil
}

// HeatTimestamp returns the explicit timestamp when present, otherwise the
// instant derived from the hour count.
func HeatTimestamp(explicit *time.Time, hourcounter float64) (int64, error) {
	if explicit != nil {
		return explicit.Unix(), nil
	}
	h, err := Hourcounter(hourcounter)
	if err != nil {
		return 0, err
	}
	if h > maxDerivedHours || h < minDerivedHours {
		return 0, errors.Wrapf(ErrOutOfRange, "timestamp from hourcounter %d", h)
	}
	return h*3600 + HourEpoch, nil
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp reads an ISO 8601 date-time. Strings with a UTC offset are
// taken as-is; strings without one are interpreted in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05Z07:00", s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized timestamp %q", s)
}
