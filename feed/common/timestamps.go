package common

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// millisThreshold is the smallest raw integer timestamp treated as
// milliseconds rather than seconds. 10^12 seconds is the year 33658, so any
// value at or above it must be a millisecond timestamp.
const millisThreshold = 1_000_000_000_000

// ErrInvalidTimestamp means: raw timestamp cannot be normalized to UNIX seconds
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// ParseTimestamp normalizes a raw timestamp into UNIX seconds (UTC).
//
// The raw value may be integer seconds, integer milliseconds, float seconds,
// a numeric string of either unit, or an ISO8601/RFC3339 UTC string. Integer
// values >= 10^12 are treated as milliseconds and divided by 1000; floats are
// floored to integer seconds.
func ParseTimestamp(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int:
		return normalizeIntTimestamp(int64(v))
	case int64:
		return normalizeIntTimestamp(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidTimestamp, v)
		}
		return normalizeIntTimestamp(int64(math.Floor(v)))
	case string:
		// Numeric strings are what most exchange wire formats carry,
		// e.g. "1642330020000" or "1642329900".
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return normalizeIntTimestamp(n)
		}
		tm, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
		}
		return int(tm.UTC().Unix()), nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidTimestamp, raw)
	}
}

func normalizeIntTimestamp(ts int64) (int, error) {
	if ts < 0 {
		return 0, fmt.Errorf("%w: negative value %v", ErrInvalidTimestamp, ts)
	}
	if ts >= millisThreshold {
		ts /= 1000
	}
	return int(ts), nil
}

// ISO8601 adds convenience methods for converting ISO8601-formatted date strings.
type ISO8601 string

// Time converts an ISO8601-formatted date string into a time.Time.
func (t ISO8601) Time() (time.Time, error) {
	return time.Parse(time.RFC3339, string(t))
}

// Seconds converts an ISO8601-formatted date string into a Unix timestamp.
func (t ISO8601) Seconds() (int, error) {
	tm, err := t.Time()
	if err != nil {
		return 0, fmt.Errorf("failed to convert %v to seconds because %v", string(t), err.Error())
	}
	return int(tm.Unix()), nil
}

// NormalizeTimestamp takes a time and a candlestick interval, and normalizes
// the timestamp by returning the immediately next multiple of that interval as
// defined by .Truncate(interval), unless the time already satisfies it.
//
// It also optionally starts from the next bucket (i.e. it appends one interval
// width to the result).
func NormalizeTimestamp(rawTm time.Time, interval time.Duration, startFromNext bool) int {
	rawTm = rawTm.UTC()
	tm := rawTm.Truncate(interval).UTC()
	if tm != rawTm {
		tm = tm.Add(interval)
	}
	return int(tm.Add(interval * time.Duration(b2i(startFromNext))).Unix())
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
