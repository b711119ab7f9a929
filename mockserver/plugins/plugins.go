// Package plugins contains the built-in exchange personalities of the mock
// server, one file per exchange. Importing the package registers them all.
package plugins

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/mockserver/plugin"
)

func init() {
	plugin.Register("binance", func() plugin.Plugin { return Binance{} })
	plugin.Register("bybit", func() plugin.Plugin { return Bybit{} })
	plugin.Register("coinbase", func() plugin.Plugin { return Coinbase{} })
	plugin.Register("gate", func() plugin.Plugin { return Gate{} })
	plugin.Register("kraken", func() plugin.Plugin { return Kraken{} })
	plugin.Register("kucoin", func() plugin.Plugin { return Kucoin{} })
	plugin.Register("mexc", func() plugin.Plugin { return Mexc{} })
	plugin.Register("mockexchange", func() plugin.Plugin { return MockExchange{} })
	plugin.Register("okx", func() plugin.Plugin { return Okx{} })
}

// dec renders a price or volume as the decimal string exchanges use on the
// wire, with 8 fractional digits.
func dec(f common.JSONFloat64) string {
	return strconv.FormatFloat(float64(f), 'f', 8, 64)
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %v: %q", key, raw)
	}
	return v, nil
}

// queryMillis parses an optional millisecond query parameter into seconds.
func queryMillis(r *http.Request, key string) (int, error) {
	v, err := queryInt(r, key)
	if err != nil || v == 0 {
		return 0, err
	}
	return v / 1000, nil
}

// reverse maps a native interval token table back to canonical tokens.
func reverse(native map[common.Interval]string) map[string]common.Interval {
	out := make(map[string]common.Interval, len(native))
	for canonical, n := range native {
		out[n] = canonical
	}
	return out
}
