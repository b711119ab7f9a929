package strategy

import (
	"context"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/cache"
	"github.com/marianogappa/crypto-feeds/feed/telemetry"
	"github.com/rs/zerolog/log"
)

// RESTPolling keeps a feed store current by polling the exchange's candles
// endpoint on a fixed cadence. Transient poll failures back off exponentially
// and never terminate the loop.
type RESTPolling struct {
	cfg          Config
	intervalSecs int
}

// NewRESTPolling constructs the REST polling strategy.
func NewRESTPolling(cfg Config) (*RESTPolling, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	intervalSecs, err := cfg.Interval.Seconds()
	if err != nil {
		return nil, err
	}
	return &RESTPolling{cfg: cfg, intervalSecs: intervalSecs}, nil
}

// Name identifies the strategy kind.
func (s *RESTPolling) Name() string { return "rest_polling" }

// Run polls until ctx is done. The first poll happens immediately; failures
// delay the next poll by an exponential backoff capped at one minute, reset
// on the next success.
func (s *RESTPolling) Run(ctx context.Context) error {
	cadence := s.cfg.cadence()
	backoff := MinBackoff
	for {
		wait := cadence
		if err := s.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Str("exchange", s.cfg.Adapter.Name()).Str("market", s.cfg.Pair.String()).Err(err).Msg("Poll failed, backing off")
			wait, backoff = NextBackoff(backoff)
		} else {
			backoff = MinBackoff
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// PollOnce performs one catch-up read: it fetches candlesticks from the last
// stored timestamp (or far enough back to fill the store when empty), merges
// them, then backfills any gaps the merge left behind.
func (s *RESTPolling) PollOnce(ctx context.Context) error {
	opts := adapter.FetchOptions{Limit: s.cfg.Store.MaxRecords()}
	if last, ok := s.cfg.Store.LastTimestamp(); ok {
		opts.StartTime = last
	} else {
		lookback := s.cfg.Store.MaxRecords() * s.intervalSecs
		opts.StartTime = int(s.cfg.now().Unix()) - lookback
	}

	css, err := s.cfg.Adapter.FetchCandles(ctx, s.cfg.Pair, s.cfg.Interval, opts)
	if err != nil {
		return err
	}
	telemetry.RESTPolls.WithLabelValues(s.cfg.Adapter.Name()).Inc()
	telemetry.CandlesIngested.WithLabelValues(s.cfg.Adapter.Name()).Add(float64(len(css)))
	s.cfg.Store.Merge(css)

	s.backfillGaps(ctx)
	return nil
}

// backfillGaps issues one catch-up read per store gap, consulting the cache
// first. Backfill failures are logged and left for the next poll; they never
// fail the poll that detected them.
func (s *RESTPolling) backfillGaps(ctx context.Context) {
	gaps := s.cfg.Store.Gaps(s.intervalSecs)
	if len(gaps) == 0 {
		return
	}
	exchange := s.cfg.Adapter.Name()
	telemetry.GapsDetected.WithLabelValues(exchange).Add(float64(len(gaps)))
	metric := cache.Metric{Exchange: exchange, Pair: s.cfg.Pair, Interval: s.cfg.Interval}

	for _, gap := range gaps {
		start, end := gap.PrevTimestamp+s.intervalSecs, gap.NextTimestamp-s.intervalSecs

		if s.cfg.Cache != nil {
			if css, err := s.cfg.Cache.Get(metric, start); err == nil {
				s.cfg.Store.Merge(css)
				telemetry.GapsBackfilled.WithLabelValues(exchange).Inc()
				continue
			}
		}

		css, err := s.cfg.Adapter.FetchCandles(ctx, s.cfg.Pair, s.cfg.Interval, adapter.FetchOptions{StartTime: start, EndTime: end})
		if err != nil {
			log.Warn().Str("exchange", exchange).Int("gap_start", start).Int("gap_end", end).Err(err).Msg("Gap backfill failed")
			continue
		}
		s.cfg.Store.Merge(css)
		telemetry.GapsBackfilled.WithLabelValues(exchange).Inc()
		if s.cfg.Cache != nil {
			if err := s.cfg.Cache.Put(metric, css); err != nil {
				log.Debug().Str("exchange", exchange).Err(err).Msg("Not caching backfilled window")
			}
		}
	}
}

var _ Strategy = (*RESTPolling)(nil)
