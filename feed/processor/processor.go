// Package processor contains the pure candlestick pipeline through which every
// candle enters a feed store: sanitization, merging and gap detection.
package processor

import (
	"sort"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/rs/zerolog/log"
)

// Sanitize discards candlesticks whose invariants fail and returns the rest.
// Offending candles are logged at debug level and never reach a feed store.
func Sanitize(css []common.Candlestick) []common.Candlestick {
	sanitized := make([]common.Candlestick, 0, len(css))
	for _, cs := range css {
		if err := cs.Validate(); err != nil {
			log.Debug().Int("timestamp", cs.Timestamp).Err(err).Msg("Dropping invalid candlestick")
			continue
		}
		sanitized = append(sanitized, cs)
	}
	return sanitized
}

// Merge returns the union of existing and incoming keyed by timestamp, sorted
// ascending. On a timestamp collision the incoming candlestick wins; within
// incoming itself, the last writer wins.
func Merge(existing, incoming []common.Candlestick) []common.Candlestick {
	byTimestamp := make(map[int]common.Candlestick, len(existing)+len(incoming))
	for _, cs := range existing {
		byTimestamp[cs.Timestamp] = cs
	}
	for _, cs := range incoming {
		byTimestamp[cs.Timestamp] = cs
	}

	merged := make([]common.Candlestick, 0, len(byTimestamp))
	for _, cs := range byTimestamp {
		merged = append(merged, cs)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })
	return merged
}

// Gap is a pair of adjacent timestamps whose delta exceeds one interval width.
type Gap struct {
	PrevTimestamp int
	NextTimestamp int
}

// DetectGaps returns the (prev, next) timestamp pairs in the (assumed
// ascending) sequence whose delta exceeds intervalSecs. Callers use the result
// to schedule backfill requests.
func DetectGaps(css []common.Candlestick, intervalSecs int) []Gap {
	var gaps []Gap
	for i := 1; i < len(css); i++ {
		if css[i].Timestamp-css[i-1].Timestamp > intervalSecs {
			gaps = append(gaps, Gap{PrevTimestamp: css[i-1].Timestamp, NextTimestamp: css[i].Timestamp})
		}
	}
	return gaps
}
