package common

import (
	"fmt"
	"strconv"
	"time"
)

// Interval is a canonical candlestick interval token, e.g. "1m", "4h", "1d".
//
// The suffix table is s=1, m=60, h=3600, d=86400, w=604800, M=2592000.
// Not every adapter supports every token; adapters declare their subset.
type Interval string

// The canonical interval token set. Adapters translate these to
// exchange-native forms.
const (
	Interval1s  Interval = "1s"
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval3d  Interval = "3d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

// Intervals enumerates the full canonical token set in ascending width order.
func Intervals() []Interval {
	return []Interval{
		Interval1s, Interval1m, Interval3m, Interval5m, Interval15m, Interval30m,
		Interval1h, Interval2h, Interval4h, Interval6h, Interval8h, Interval12h,
		Interval1d, Interval3d, Interval1w, Interval1M,
	}
}

var intervalSuffixSeconds = map[byte]int{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
	'w': 604800,
	'M': 2592000,
}

// Seconds parses the interval token into its width in seconds.
//
// * Fails with ErrUnsupportedInterval on an empty token, an unknown suffix or
//   a non-positive multiplier.
func (i Interval) Seconds() (int, error) {
	s := string(i)
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedInterval, s)
	}
	mult, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || mult <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedInterval, s)
	}
	unit, ok := intervalSuffixSeconds[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedInterval, s)
	}
	return mult * unit, nil
}

// Duration is like Seconds but returns a time.Duration.
func (i Interval) Duration() (time.Duration, error) {
	secs, err := i.Seconds()
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

func (i Interval) String() string { return string(i) }
