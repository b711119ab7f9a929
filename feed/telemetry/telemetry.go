// Package telemetry exposes Prometheus counters for the feed engine. Register
// the default registry's /metrics handler in the host process to scrape them.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CandlesIngested counts candlesticks merged into feed stores, per exchange.
	CandlesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptofeeds",
		Name:      "candles_ingested_total",
		Help:      "Candlesticks merged into feed stores.",
	}, []string{"exchange"})

	// GapsDetected counts gaps found in feed stores, per exchange.
	GapsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptofeeds",
		Name:      "gaps_detected_total",
		Help:      "Gaps detected in feed stores.",
	}, []string{"exchange"})

	// GapsBackfilled counts gaps successfully backfilled via REST, per exchange.
	GapsBackfilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptofeeds",
		Name:      "gaps_backfilled_total",
		Help:      "Gaps backfilled via REST catch-up reads.",
	}, []string{"exchange"})

	// RESTPolls counts REST polling iterations, per exchange.
	RESTPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptofeeds",
		Name:      "rest_polls_total",
		Help:      "REST polling iterations.",
	}, []string{"exchange"})

	// WSReconnects counts WebSocket reconnection attempts, per exchange.
	WSReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptofeeds",
		Name:      "ws_reconnects_total",
		Help:      "WebSocket reconnection attempts.",
	}, []string{"exchange"})

	// MessagesDropped counts unparseable or invalid messages dropped, per exchange.
	MessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptofeeds",
		Name:      "messages_dropped_total",
		Help:      "Protocol or invariant failures dropped before reaching a store.",
	}, []string{"exchange"})

	// StrategyRestarts counts supervised strategy restarts after crashes, per exchange.
	StrategyRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptofeeds",
		Name:      "strategy_restarts_total",
		Help:      "Collection strategy restarts after a crash.",
	}, []string{"exchange"})
)
