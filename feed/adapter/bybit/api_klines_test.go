package bybit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/stretchr/testify/require"
)

var btcUSDT = common.TradingPair{Base: "BTC", Quote: "USDT"}

func f(v float64) common.JSONFloat64 { return common.JSONFloat64(v) }

// Bybit returns rows newest first; the adapter must flip them ascending.
const testResponse = `{
	"retCode": 0,
	"retMsg": "OK",
	"result": {
		"category": "spot",
		"symbol": "BTCUSDT",
		"list": [
			["1670608860000", "17055.5", "17061", "17043", "17050", "120.5", "2055000.1"],
			["1670608800000", "17071", "17073", "17027", "17055.5", "268611", "4583251.9"]
		]
	}
}`

func TestHappyToCandlesticks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v5/market/kline", r.URL.Path)
		require.Equal(t, "spot", r.URL.Query().Get("category"))
		require.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		require.Equal(t, "60", r.URL.Query().Get("interval"))
		fmt.Fprintln(w, testResponse)
	}))
	defer ts.Close()

	e, err := New(adapter.Options{})
	require.NoError(t, err)
	defer e.PatchURLs(ts.URL, "")()

	actual, err := e.FetchCandles(context.Background(), btcUSDT, common.Interval1h, adapter.FetchOptions{})
	require.NoError(t, err)
	require.Equal(t, []common.Candlestick{
		{Timestamp: 1670608800, OpenPrice: f(17071), HighestPrice: f(17073), LowestPrice: f(17027), ClosePrice: f(17055.5), Volume: f(268611), QuoteAssetVolume: f(4583251.9)},
		{Timestamp: 1670608860, OpenPrice: f(17055.5), HighestPrice: f(17061), LowestPrice: f(17043), ClosePrice: f(17050), Volume: f(120.5), QuoteAssetVolume: f(2055000.1)},
	}, actual)
}

func TestErrorRetCode(t *testing.T) {
	e, err := New(adapter.Options{})
	require.NoError(t, err)
	_, err = e.ParseRESTResponse([]byte(`{"retCode": 10001, "retMsg": "Invalid symbol", "result": {}}`))
	require.ErrorIs(t, err, common.ErrInvalidJSONResponse)
}

func TestSyncNotSupported(t *testing.T) {
	e, err := New(adapter.Options{})
	require.NoError(t, err)
	require.Equal(t, adapter.IOAsync, e.Capability())
	_, err = e.FetchCandlesSync(btcUSDT, common.Interval1m, adapter.FetchOptions{})
	require.ErrorIs(t, err, common.ErrSyncNotSupported)
}

func TestWSSubscriptionPayload(t *testing.T) {
	e, err := New(adapter.Options{})
	require.NoError(t, err)
	payload, err := e.WSSubscriptionPayload(btcUSDT, common.Interval5m)
	require.NoError(t, err)
	require.Equal(t, wsSubscription{Op: "subscribe", Args: []string{"kline.5.BTCUSDT"}}, payload)

	_, err = e.WSSubscriptionPayload(btcUSDT, common.Interval1s)
	require.ErrorIs(t, err, common.ErrUnsupportedInterval)
}

func TestParseWSMessage(t *testing.T) {
	e, err := New(adapter.Options{})
	require.NoError(t, err)

	css, err := e.ParseWSMessage([]byte(`{
		"topic": "kline.5.BTCUSDT",
		"type": "snapshot",
		"ts": 1672324988882,
		"data": [{
			"start": 1672324800000, "end": 1672325099999, "interval": "5",
			"open": "16649.5", "close": "16677", "high": "16677", "low": "16608",
			"volume": "2.081", "turnover": "34666.4005", "confirm": false,
			"timestamp": 1672324988882
		}]
	}`))
	require.NoError(t, err)
	require.Len(t, css, 1)
	require.Equal(t, 1672324800, css[0].Timestamp)
	require.Equal(t, f(16677), css[0].ClosePrice)

	// Subscribe ack yields no candlesticks and no error.
	css, err = e.ParseWSMessage([]byte(`{"success": true, "ret_msg": "subscribe", "op": "subscribe"}`))
	require.NoError(t, err)
	require.Empty(t, css)
}

func TestTestnetRouting(t *testing.T) {
	e, err := New(adapter.Options{NetworkConfig: common.NewNetworkConfig(common.EnvTestnet)})
	require.NoError(t, err)
	require.Equal(t, "https://api-testnet.bybit.com/v5/market/kline", e.RESTURL(common.EndpointCandles))
	require.Equal(t, "wss://stream-testnet.bybit.com/v5/public/spot", e.WSURL())
}
