package mockserver

import (
	"errors"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/feed/store"
	"github.com/marianogappa/crypto-feeds/mockserver/plugin"

	// The built-in exchange personalities register themselves on import.
	_ "github.com/marianogappa/crypto-feeds/mockserver/plugins"
)

// DefaultPairs are the markets CreateMockServer seeds out of the box.
var DefaultPairs = []common.TradingPair{
	{Base: "BTC", Quote: "USDT"},
	{Base: "ETH", Quote: "USDT"},
}

// CreateMockServer builds, seeds and starts a mock exchange of the given
// type. Pass port 0 for an ephemeral port; read the bound address back with
// URL and WSURL. The caller owns Stop.
func CreateMockServer(exchangeType, host string, port int) (*Server, error) {
	p, err := plugin.New(exchangeType)
	if err != nil {
		return nil, err
	}
	s, err := New(Config{Host: host, Port: port, Plugin: p})
	if err != nil {
		return nil, err
	}
	for _, pair := range DefaultPairs {
		s.SeedWindow(pair, common.Interval1m, store.DefaultMaxRecords)
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

// urlPatcher is the test-rebind surface every built-in adapter exposes by
// embedding adapter.Base.
type urlPatcher interface {
	PatchURLs(restHost, wsHost string) func()
}

// ErrAdapterNotPatchable is returned by BindAdapter for adapters that do not
// expose URL rebinding.
var ErrAdapterNotPatchable = errors.New("adapter does not support URL rebinding")

// BindAdapter points the adapter's REST and WebSocket URLs at the running
// mock server and returns a restore func undoing the rebind.
func BindAdapter(a adapter.Adapter, s *Server) (restore func(), err error) {
	patcher, ok := a.(urlPatcher)
	if !ok {
		return nil, ErrAdapterNotPatchable
	}
	restURL, err := s.URL()
	if err != nil {
		return nil, err
	}
	wsURL, err := s.WSURL()
	if err != nil {
		return nil, err
	}
	return patcher.PatchURLs(restURL, wsURL), nil
}
