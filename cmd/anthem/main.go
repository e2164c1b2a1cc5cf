// Package main: multi-chain staking aggregation service.
//
// The service is read-only towards the chains except for transaction
// broadcast, which relays pre-signed payloads. Historical account snapshots
// for the Cosmos-SDK networks are read from the ledger database written by
// the snapshot extraction process.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ChorusOne/anthem-sub000/aggregator"
	"github.com/ChorusOne/anthem-sub000/lib/cache"
	"github.com/ChorusOne/anthem-sub000/lib/chain"
	"github.com/ChorusOne/anthem-sub000/lib/config"
	"github.com/ChorusOne/anthem-sub000/lib/fetch"
	"github.com/ChorusOne/anthem-sub000/lib/hosts"
	"github.com/ChorusOne/anthem-sub000/lib/network"
	"github.com/ChorusOne/anthem-sub000/lib/prices"
	"github.com/ChorusOne/anthem-sub000/lib/report"
	"github.com/ChorusOne/anthem-sub000/lib/store"
	"github.com/ChorusOne/anthem-sub000/lib/store/mongo"
	"github.com/ChorusOne/anthem-sub000/server"
)

const shutdownGrace = 10 * time.Second

func main() {
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to serve Prometheus metrics at http://localhost:9100")
	flag.Parse()

	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	log := newLogger(conf.LogLevel)
	defer func() { _ = log.Sync() }()

	log.Info("configuration loaded", zap.String("endpoint", conf.RestfulEndpoint), zap.String("port", conf.Port))

	// registry and host table: both must cover the closed network set or we
	// refuse to start
	reg := network.NewRegistry()

	hr := hosts.New(conf.Hosts)
	if err := hr.Validate(reg); err != nil {
		log.Fatal("host table incomplete", zap.Error(err))
	}

	fc := fetch.New(log,
		fetch.WithBudget(conf.RetryBudget),
		fetch.WithFixtures(conf.MockMode, conf.FixtureDir),
	)

	var cacheStore cache.Store
	if conf.RedisAddr != "" {
		cacheStore = cache.NewRedis(redis.NewClient(&redis.Options{Addr: conf.RedisAddr}))
		log.Info("cache backed by redis", zap.String("addr", conf.RedisAddr))
	} else {
		cacheStore = cache.NewMemory(cache.DefaultMemoryLimit)
	}

	cacheSvc := cache.New(cacheStore, log)

	// ledger store is optional; without it account history queries for the
	// Cosmos-SDK networks fail with a clear error instead of at startup
	var ledger store.LedgerReader

	if conf.LedgerConn != "" {
		m, err := mongo.New(conf.LedgerConn, conf.LedgerDB)
		if err != nil {
			log.Fatal("connecting to ledger store", zap.Error(err))
		}

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			_ = m.Close(ctx)
		}()

		ledger = m

		log.Info("ledger store connected", zap.String("db", conf.LedgerDB))
	}

	chains, err := chain.Init(chain.Deps{
		Fetch:    fc,
		Cache:    cacheSvc,
		Hosts:    hr,
		Registry: reg,
		Ledger:   ledger,
		Log:      log,
	})
	if err != nil {
		log.Fatal("building chain adapters", zap.Error(err))
	}

	log.Info("chain adapters loaded", zap.Int("count", len(chains)))

	if *monitor {
		go func() {
			log.Info("serving metrics API")

			h := http.NewServeMux()
			h.Handle("/metrics", promhttp.Handler())

			if err := http.ListenAndServe(":9100", h); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	pc := prices.New(conf.PriceAPI, conf.PriceAPIKey, fc, cacheSvc, reg, log)

	agg := aggregator.New(reg, chains, pc, report.NewLogReporter(log), log)

	srv := server.New(agg, log)

	// capture CTRL+C or docker's SIGTERM for gracious exit
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan

		log.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	if err := srv.Start(conf.RestfulEndpoint, conf.Port); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

// newLogger builds the service logger at the configured verbosity.
func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(lvl)

	log, err := c.Build()
	if err != nil {
		panic(err)
	}

	return log
}
