package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marianogappa/crypto-feeds/feed"
	"github.com/marianogappa/crypto-feeds/feed/cache"
	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/mockserver"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// feedsConfig is the YAML file the run command consumes, e.g.
//
//	listen_addr: ":9100"
//	environment: production
//	feeds:
//	  - exchange: binance_spot
//	    pair: BTC-USDT
//	    interval: 1m
//	    mode: auto
//	    max_records: 150
//	    poll_interval: 30s
type feedsConfig struct {
	ListenAddr  string       `yaml:"listen_addr"`
	Environment string       `yaml:"environment"`
	Feeds       []feedConfig `yaml:"feeds"`
}

type feedConfig struct {
	Exchange     string        `yaml:"exchange"`
	Pair         string        `yaml:"pair"`
	Interval     string        `yaml:"interval"`
	Mode         string        `yaml:"mode"`
	MaxRecords   int           `yaml:"max_records"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	root := &cobra.Command{
		Use:          "cryptofeeds",
		Short:        "Run crypto candlestick feeds and mock exchanges",
		SilenceUsage: true,
	}
	root.AddCommand(runCmd(), streamCmd(), mockserverCmd(), exchangesCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the feeds described in a YAML config until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			bs, err := os.ReadFile(configPath)
			if err != nil {
				return err
			}
			var cfg feedsConfig
			if err := yaml.Unmarshal(bs, &cfg); err != nil {
				return fmt.Errorf("parsing %v: %w", configPath, err)
			}
			if len(cfg.Feeds) == 0 {
				return fmt.Errorf("%v declares no feeds", configPath)
			}

			networkConfig := common.NewNetworkConfig(common.EnvProduction)
			if cfg.Environment == string(common.EnvTestnet) {
				networkConfig = common.NewNetworkConfig(common.EnvTestnet)
			}

			// One shared cache so overlapping backfills dedupe across feeds.
			sizes := map[common.Interval]int{}
			for _, interval := range common.Intervals() {
				sizes[interval] = 100
			}
			sharedCache := cache.NewMemoryCache(sizes)

			feeds := make([]*feed.Feed, 0, len(cfg.Feeds))
			for _, fc := range cfg.Feeds {
				pair, err := common.ParseTradingPair(fc.Pair)
				if err != nil {
					return err
				}
				f, err := feed.New(feed.Config{
					Exchange:      fc.Exchange,
					Pair:          pair,
					Interval:      common.Interval(fc.Interval),
					MaxRecords:    fc.MaxRecords,
					Mode:          feed.Mode(fc.Mode),
					PollInterval:  fc.PollInterval,
					NetworkConfig: networkConfig,
					Cache:         sharedCache,
					Debug:         debug,
				})
				if err != nil {
					return fmt.Errorf("feed %v %v: %w", fc.Exchange, fc.Pair, err)
				}
				if err := f.Start(); err != nil {
					return fmt.Errorf("feed %v %v: %w", fc.Exchange, fc.Pair, err)
				}
				feeds = append(feeds, f)
			}

			if cfg.ListenAddr != "" {
				go func() {
					http.Handle("/metrics", promhttp.Handler())
					if err := http.ListenAndServe(cfg.ListenAddr, nil); err != nil {
						log.Error().Err(err).Msg("Metrics listener terminated")
					}
				}()
				log.Info().Str("addr", cfg.ListenAddr).Msg("Serving /metrics")
			}

			waitForSignal()
			for _, f := range feeds {
				if err := f.Stop(); err != nil {
					log.Error().Err(err).Msg("Feed did not stop cleanly")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "feeds.yaml", "path to the feeds YAML config")
	cmd.Flags().BoolVar(&debug, "debug", false, "log adapter request/response traffic")
	return cmd
}

func streamCmd() *cobra.Command {
	var exchange, pairStr, intervalStr, mode string
	var maxRecords int

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream one feed's candlesticks to stdout as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, err := common.ParseTradingPair(pairStr)
			if err != nil {
				return err
			}
			f, err := feed.New(feed.Config{
				Exchange:   exchange,
				Pair:       pair,
				Interval:   common.Interval(intervalStr),
				MaxRecords: maxRecords,
				Mode:       feed.Mode(mode),
			})
			if err != nil {
				return err
			}
			if err := f.Start(); err != nil {
				return err
			}
			defer f.Stop()

			enc := json.NewEncoder(os.Stdout)
			lastPrinted := 0
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			for {
				select {
				case <-sig:
					return nil
				case <-ticker.C:
					for _, cs := range f.Candles() {
						if cs.Timestamp <= lastPrinted {
							continue
						}
						if err := enc.Encode(cs); err != nil {
							return err
						}
						lastPrinted = cs.Timestamp
					}
				}
			}
		},
	}
	cmd.Flags().StringVarP(&exchange, "exchange", "e", "binance_spot", "exchange to collect from")
	cmd.Flags().StringVar(&pairStr, "pair", "BTC-USDT", "trading pair, BASE-QUOTE")
	cmd.Flags().StringVarP(&intervalStr, "interval", "i", "1m", "candlestick interval")
	cmd.Flags().StringVarP(&mode, "mode", "m", "auto", "collection mode: auto, rest or websocket")
	cmd.Flags().IntVar(&maxRecords, "max-records", 0, "store capacity; 0 for the default")
	return cmd
}

func mockserverCmd() *cobra.Command {
	var exchangeType, host string
	var port int

	cmd := &cobra.Command{
		Use:   "mockserver",
		Short: "Run a mock exchange until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := mockserver.CreateMockServer(exchangeType, host, port)
			if err != nil {
				return err
			}
			url, _ := s.URL()
			log.Info().Str("exchange_type", exchangeType).Str("url", url).Msg("Mock exchange ready")

			waitForSignal()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return s.Stop(ctx)
		},
	}
	cmd.Flags().StringVarP(&exchangeType, "exchange-type", "e", "mockexchange", "exchange personality to imitate")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "host to bind")
	cmd.Flags().IntVarP(&port, "port", "p", 7870, "port to bind; 0 for ephemeral")
	return cmd
}

func exchangesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exchanges",
		Short: "List the supported exchanges",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range feed.Exchanges() {
				fmt.Println(name)
			}
		},
	}
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
}
