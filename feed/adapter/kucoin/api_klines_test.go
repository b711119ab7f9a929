package kucoin

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

// KuCoin rows are newest first, timestamps in seconds, open-close-high-low order.
const testResponse = `{
	"code": "200000",
	"data": [
		["1589739060", "9659.3", "9660.1", "9660.5", "9659.0", "0.25", "2414.9"],
		["1589739000", "9658.6", "9659.3", "9659.3", "9658.6", "0.1291", "1247.18"]
	]
}`

func TestHappyToCandlesticks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/market/candles", r.URL.Path)
		require.Equal(t, "BTC-USDT", r.URL.Query().Get("symbol"))
		require.Equal(t, "1min", r.URL.Query().Get("type"))
		require.Equal(t, "1589739000", r.URL.Query().Get("startAt"))
		fmt.Fprintln(w, testResponse)
	}))
	defer ts.Close()

	e, err := New(adapter.Options{})
	require.NoError(t, err)
	defer e.PatchURLs(ts.URL, "")()

	actual, err := e.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{StartTime: 1589739000})
	require.NoError(t, err)
	require.Equal(t, []common.Candlestick{
		{Timestamp: 1589739000, OpenPrice: f(9658.6), ClosePrice: f(9659.3), HighestPrice: f(9659.3), LowestPrice: f(9658.6), Volume: f(0.1291), QuoteAssetVolume: f(1247.18)},
		{Timestamp: 1589739060, OpenPrice: f(9659.3), ClosePrice: f(9660.1), HighestPrice: f(9660.5), LowestPrice: f(9659), Volume: f(0.25), QuoteAssetVolume: f(2414.9)},
	}, actual)
}

func TestSyncAsyncParity(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, testResponse)
	}))
	defer ts.Close()

	e, err := New(adapter.Options{})
	require.NoError(t, err)
	require.Equal(t, adapter.IOHybrid, e.Capability())
	defer e.PatchURLs(ts.URL, "")()

	viaCtx, err := e.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{})
	require.NoError(t, err)
	viaSync, err := e.FetchCandlesSync(btcUSDT, common.Interval1m, adapter.FetchOptions{})
	require.NoError(t, err)
	require.Equal(t, viaCtx, viaSync)
}

func TestErrorCode(t *testing.T) {
	e, err := New(adapter.Options{})
	require.NoError(t, err)
	_, err = e.ParseRESTResponse([]byte(`{"code": "400100", "msg": "symbol not exists"}`))
	require.ErrorIs(t, err, common.ErrInvalidJSONResponse)
}

func TestUnsupportedInterval(t *testing.T) {
	e, err := New(adapter.Options{})
	require.NoError(t, err)
	_, err = e.FetchCandles(context.Background(), btcUSDT, common.Interval1s, adapter.FetchOptions{})
	require.ErrorIs(t, err, common.ErrUnsupportedInterval)
}

func TestWSSubscriptionPayload(t *testing.T) {
	e, err := New(adapter.Options{})
	require.NoError(t, err)
	payload, err := e.WSSubscriptionPayload(btcUSDT, common.Interval1h)
	require.NoError(t, err)
	require.Equal(t, wsSubscription{ID: 1, Type: "subscribe", Topic: "/market/candles:BTC-USDT_1hour", Response: true}, payload)
}

func TestParseWSMessage(t *testing.T) {
	e, err := New(adapter.Options{})
	require.NoError(t, err)

	css, err := e.ParseWSMessage([]byte(`{
		"type": "message",
		"topic": "/market/candles:BTC-USDT_1hour",
		"subject": "trade.candles.update",
		"data": {
			"symbol": "BTC-USDT",
			"candles": ["1589968800", "9786.9", "9740.8", "9806.1", "9732", "27.4", "268280.1"],
			"time": 1589970010253893337
		}
	}`))
	require.NoError(t, err)
	require.Len(t, css, 1)
	require.Equal(t, 1589968800, css[0].Timestamp)
	require.Equal(t, f(9740.8), css[0].ClosePrice)
	require.Equal(t, f(9806.1), css[0].HighestPrice)

	// Welcome frame yields no candlesticks and no error.
	css, err = e.ParseWSMessage([]byte(`{"id": "hQvf8jkno", "type": "welcome"}`))
	require.NoError(t, err)
	require.Empty(t, css)
}
