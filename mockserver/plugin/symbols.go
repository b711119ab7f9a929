package plugin

import (
	"fmt"
	"strings"

	"github.com/marianogappa/crypto-feeds/feed/common"
)

// knownQuotes are the quote assets tried, longest first, when splitting a
// concatenated symbol like "BTCUSDT".
var knownQuotes = []string{"USDT", "USDC", "TUSD", "BUSD", "BTC", "ETH", "EUR", "GBP", "TRY", "USD"}

// SplitConcatenatedSymbol parses symbols without a separator, e.g.
// "BTCUSDT" -> BTC-USDT, by matching a known quote asset suffix.
func SplitConcatenatedSymbol(symbol string) (common.TradingPair, error) {
	s := strings.ToUpper(symbol)
	for _, quote := range knownQuotes {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return common.TradingPair{Base: s[:len(s)-len(quote)], Quote: quote}, nil
		}
	}
	return common.TradingPair{}, fmt.Errorf("%w: %q", common.ErrInvalidTradingPair, symbol)
}

// SplitSeparatedSymbol parses symbols with a separator, e.g. "BTC-USDT" or
// "BTC_USDT".
func SplitSeparatedSymbol(symbol, sep string) (common.TradingPair, error) {
	parts := strings.Split(strings.ToUpper(symbol), sep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return common.TradingPair{}, fmt.Errorf("%w: %q", common.ErrInvalidTradingPair, symbol)
	}
	return common.TradingPair{Base: parts[0], Quote: parts[1]}, nil
}
