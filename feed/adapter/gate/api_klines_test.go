package gate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/stretchr/testify/require"
)

var btcUSDT = common.TradingPair{Base: "BTC", Quote: "USDT"}

func f(v float64) common.JSONFloat64 { return common.JSONFloat64(v) }

const testResponse = `[
	["1642329900", "91591841.92", "43061.48", "43099.24", "42969.39", "43063.17", "2128.75", "true"],
	["1642329960", "88486829.11", "42976.47", "43152.3", "42973.05", "43061.49", "2055.2", "true"]
]`

func TestHappyToCandlesticks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v4/spot/candlesticks", r.URL.Path)
		require.Equal(t, "BTC_USDT", r.URL.Query().Get("currency_pair"))
		require.Equal(t, "1m", r.URL.Query().Get("interval"))
		require.Equal(t, "1642329900", r.URL.Query().Get("from"))
		require.Empty(t, r.URL.Query().Get("limit"))
		fmt.Fprintln(w, testResponse)
	}))
	defer ts.Close()

	e, err := New(adapter.Options{})
	require.NoError(t, err)
	defer e.PatchURLs(ts.URL, "")()

	actual, err := e.FetchCandlesSync(btcUSDT, common.Interval1m, adapter.FetchOptions{StartTime: 1642329900})
	require.NoError(t, err)
	require.Equal(t, []common.Candlestick{
		{Timestamp: 1642329900, OpenPrice: f(43063.17), ClosePrice: f(43061.48), HighestPrice: f(43099.24), LowestPrice: f(42969.39), Volume: f(2128.75), QuoteAssetVolume: f(91591841.92)},
		{Timestamp: 1642329960, OpenPrice: f(43061.49), ClosePrice: f(42976.47), HighestPrice: f(43152.3), LowestPrice: f(42973.05), Volume: f(2055.2), QuoteAssetVolume: f(88486829.11)},
	}, actual)
}

func TestAsyncDispatchesSync(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, testResponse)
	}))
	defer ts.Close()

	e, err := New(adapter.Options{})
	require.NoError(t, err)
	require.Equal(t, adapter.IOSync, e.Capability())
	require.False(t, e.Capability().AsyncCapable())
	defer e.PatchURLs(ts.URL, "")()

	viaCtx, err := e.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, viaCtx, 2)
}

func TestAsyncDispatchHonorsCancellation(t *testing.T) {
	blocked := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer ts.Close()
	defer close(blocked)

	e, err := New(adapter.Options{})
	require.NoError(t, err)
	defer e.PatchURLs(ts.URL, "")()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = e.FetchCandles(ctx, btcUSDT, common.Interval1m, adapter.FetchOptions{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnboundedRequestSendsLimit(t *testing.T) {
	e, err := New(adapter.Options{})
	require.NoError(t, err)

	q, err := e.RESTParams(btcUSDT, common.Interval1m, adapter.FetchOptions{Limit: 100})
	require.NoError(t, err)
	require.Equal(t, "100", q.Get("limit"))

	q, err = e.RESTParams(btcUSDT, common.Interval1m, adapter.FetchOptions{StartTime: 1642329900, Limit: 100})
	require.NoError(t, err)
	require.Empty(t, q.Get("limit"))
}

func TestUnsupportedInterval(t *testing.T) {
	e, err := New(adapter.Options{})
	require.NoError(t, err)
	_, err = e.FetchCandlesSync(btcUSDT, common.Interval3m, adapter.FetchOptions{})
	require.ErrorIs(t, err, common.ErrUnsupportedInterval)
}

func TestNoWebsocket(t *testing.T) {
	e, err := New(adapter.Options{})
	require.NoError(t, err)
	require.Empty(t, e.WSIntervals())
	_, err = e.WSSubscriptionPayload(btcUSDT, common.Interval1m)
	require.ErrorIs(t, err, ErrNoWebsocket)
}
