package processor

import (
	"testing"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/stretchr/testify/require"
)

func cs(ts int, close float64) common.Candlestick {
	return common.Candlestick{
		Timestamp:    ts,
		OpenPrice:    common.JSONFloat64(close),
		HighestPrice: common.JSONFloat64(close),
		LowestPrice:  common.JSONFloat64(close),
		ClosePrice:   common.JSONFloat64(close),
	}
}

func timestamps(css []common.Candlestick) []int {
	tss := make([]int, len(css))
	for i, c := range css {
		tss[i] = c.Timestamp
	}
	return tss
}

func TestSanitizeDropsInvalidCandlesticks(t *testing.T) {
	invalid := common.Candlestick{Timestamp: 120, OpenPrice: 100, HighestPrice: 90, LowestPrice: 95, ClosePrice: 100}
	out := Sanitize([]common.Candlestick{cs(60, 100), invalid, cs(180, 101)})
	require.Equal(t, []int{60, 180}, timestamps(out))
}

func TestSanitizeEmpty(t *testing.T) {
	require.Empty(t, Sanitize(nil))
}

func TestMergeSortsAndDeduplicates(t *testing.T) {
	// Out-of-order batch with a duplicate timestamp: sorted, de-duplicated,
	// latest 60 wins.
	incoming := []common.Candlestick{cs(120, 2), cs(60, 1), cs(180, 3), cs(60, 9)}
	out := Merge(nil, incoming)
	require.Equal(t, []int{60, 120, 180}, timestamps(out))
	require.Equal(t, common.JSONFloat64(9), out[0].ClosePrice)
}

func TestMergeIncomingWinsOnCollision(t *testing.T) {
	existing := []common.Candlestick{cs(60, 1), cs(120, 2)}
	incoming := []common.Candlestick{cs(120, 99), cs(180, 3)}
	out := Merge(existing, incoming)
	require.Equal(t, []int{60, 120, 180}, timestamps(out))
	require.Equal(t, common.JSONFloat64(99), out[1].ClosePrice)
}

func TestMergeIsIdempotent(t *testing.T) {
	existing := []common.Candlestick{cs(60, 1), cs(180, 3)}
	incoming := []common.Candlestick{cs(120, 2), cs(240, 4)}
	once := Merge(existing, incoming)
	twice := Merge(once, incoming)
	require.Equal(t, once, twice)
}

func TestDetectGaps(t *testing.T) {
	tests := []struct {
		name     string
		css      []common.Candlestick
		expected []Gap
	}{
		{
			name: "no gaps",
			css:  []common.Candlestick{cs(60, 1), cs(120, 2), cs(180, 3)},
		},
		{
			name:     "single gap",
			css:      []common.Candlestick{cs(60, 1), cs(240, 2)},
			expected: []Gap{{PrevTimestamp: 60, NextTimestamp: 240}},
		},
		{
			name:     "multiple gaps",
			css:      []common.Candlestick{cs(60, 1), cs(300, 2), cs(360, 3), cs(600, 4)},
			expected: []Gap{{PrevTimestamp: 60, NextTimestamp: 300}, {PrevTimestamp: 360, NextTimestamp: 600}},
		},
		{
			name: "single candlestick",
			css:  []common.Candlestick{cs(60, 1)},
		},
		{
			name: "empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, DetectGaps(tt.css, 60))
		})
	}
}

func TestDetectGapsExactIntervalIsNotAGap(t *testing.T) {
	// Delta must strictly exceed the interval width.
	require.Empty(t, DetectGaps([]common.Candlestick{cs(0, 1), cs(60, 2)}, 60))
	require.Len(t, DetectGaps([]common.Candlestick{cs(0, 1), cs(61, 2)}, 60), 1)
}
