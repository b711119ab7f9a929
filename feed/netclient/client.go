// Package netclient is the thin I/O facade for the feed engine. All REST and
// WebSocket traffic of adapters and strategies goes through a Client, so tests
// can substitute transports and all suspension points live in one place.
package netclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/sony/gobreaker"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultTotalTimeout   = 30 * time.Second

	// maxRedirects bounds how many 3xx responses are followed per request.
	maxRedirects = 3
)

// sharedTransport is the one connection pool per process. Every Client reuses
// it unless a custom http.Client is supplied.
var sharedTransport = &http.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
}

// TransportError is a non-2xx response or a request execution failure. It is
// recovered locally by collection strategies (backoff + retry) and surfaced
// only via CheckNetwork() and logs.
type TransportError struct {
	StatusCode int
	Body       []byte
	Err        error

	// RetryAfter is the server-requested backoff, if a Retry-After header was present.
	RetryAfter time.Duration
}

func (e TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error: status %v: %v", e.StatusCode, string(e.Body))
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e TransportError) Unwrap() error { return e.Err }

// Config tunes a Client. The zero value uses the documented defaults
// (connect 10s, total 30s, no circuit breaker).
type Config struct {
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration

	// BreakerEnabled wires a circuit breaker around REST requests: five
	// consecutive transport failures open the circuit for 30 seconds.
	BreakerEnabled bool
}

// Client issues HTTP requests and establishes WebSocket connections. It is
// passed into adapters and strategies explicitly; it is never a global.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// New constructs a Client on the process-wide connection pool.
func New(cfg Config) *Client {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.TotalTimeout == 0 {
		cfg.TotalTimeout = defaultTotalTimeout
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   cfg.TotalTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.New("stopped after too many redirects")
				}
				return nil
			},
		},
	}
	if cfg.BreakerEnabled {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "netclient",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}
	return c
}

// GetRESTData issues an HTTP request and returns the raw body on 2xx after
// verifying it decodes as JSON.
//
// * Fails with TransportError carrying status and body on non-2xx.
//
// * Fails with TransportError wrapping common.ErrExecutingRequest if the
//   request could not be executed at all.
//
// * Fails with TransportError wrapping common.ErrInvalidJSONResponse if the
//   2xx body is not JSON.
func (c *Client) GetRESTData(ctx context.Context, rawURL string, params url.Values, headers map[string]string, method string, body interface{}) (json.RawMessage, error) {
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return nil, TransportError{Err: err}
		}
		bodyReader = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, TransportError{Err: err}
	}
	if params != nil {
		q := req.URL.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.breaker != nil {
		raw, err := c.breaker.Execute(func() (interface{}, error) {
			return c.do(req)
		})
		if err != nil {
			var te TransportError
			if errors.As(err, &te) {
				return nil, te
			}
			return nil, TransportError{Err: err}
		}
		return raw.(json.RawMessage), nil
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, TransportError{Err: fmt.Errorf("%w: %v", common.ErrExecutingRequest, err)}
	}
	defer resp.Body.Close()

	byts, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", common.ErrBrokenBodyResponse, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := TransportError{StatusCode: resp.StatusCode, Body: byts, Err: fmt.Errorf("non-2xx status %v", resp.StatusCode)}
		if resp.StatusCode == http.StatusTooManyRequests {
			te.Err = common.ErrRateLimit
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if d, err := time.ParseDuration(ra + "s"); err == nil {
					te.RetryAfter = d
				}
			}
		}
		return nil, te
	}

	if !json.Valid(byts) {
		return nil, TransportError{StatusCode: resp.StatusCode, Body: byts, Err: common.ErrInvalidJSONResponse}
	}
	return json.RawMessage(byts), nil
}
