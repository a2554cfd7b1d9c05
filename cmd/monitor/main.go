package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pulkyeet/pool-spread-monitor/internal/arbitrage"
	"github.com/pulkyeet/pool-spread-monitor/internal/config"
	"github.com/pulkyeet/pool-spread-monitor/internal/eth"
	"github.com/pulkyeet/pool-spread-monitor/internal/logger"
	"github.com/pulkyeet/pool-spread-monitor/internal/metrics"
	"github.com/pulkyeet/pool-spread-monitor/internal/monitor"
	"github.com/pulkyeet/pool-spread-monitor/internal/storage"
)

func main() {
	cfgPath := flag.String("config", "", "optional yaml config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		// no logger yet: the level itself may be what failed
		l, _ := logger.New("info", "json")
		l.Fatal("invalid configuration", zap.Error(err))
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := eth.Dial(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatal("rpc dial failed", zap.Error(err))
	}
	defer client.Close()

	arbCfg, err := cfg.Arbitrage()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	poolA, poolB := cfg.Pools()

	det, err := arbitrage.NewDetector(client, poolA, poolB, arbCfg, cfg.ReadTimeout())
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	cache := openCache(cfg.CacheDB, log)
	checkPair(ctx, arbitrage.NewMetaResolver(det.Reader(), cache), poolA, poolB, log)

	metrics.Serve(ctx, cfg.MetricsAddr, log)

	log.Info("monitoring pools",
		zap.String("pool_a", poolA.Name),
		zap.String("pool_a_address", poolA.Address.Hex()),
		zap.String("pool_b", poolB.Name),
		zap.String("pool_b_address", poolB.Address.Hex()),
		zap.String("threshold", arbCfg.Threshold().FloatString(4)),
		zap.Uint64("gas_limit", arbCfg.GasLimit()),
		zap.Duration("interval", arbCfg.PollInterval()),
	)

	sched := monitor.NewScheduler(det, arbCfg.PollInterval(), monitor.NewLogReporter(log), log)
	if err := sched.Run(ctx); err != nil {
		log.Error("scheduler exited", zap.Error(err))
	}
}

// openCache returns an LRU, backed by sqlite when a path is configured. A
// cache that fails to open only costs a few extra reads at startup.
func openCache(path string, log *zap.Logger) *storage.PoolCache {
	var db *storage.PoolMetaDB
	if path != "" {
		var err error
		db, err = storage.NewPoolMetaDB(path)
		if err != nil {
			log.Warn("pool meta cache unavailable", zap.String("path", path), zap.Error(err))
			db = nil
		} else if stats, err := db.Stats(); err == nil {
			log.Info("pool meta cache opened", zap.String("path", path), zap.Int64("entries", stats["pool_meta_entries"]))
		}
	}

	cache, err := storage.NewPoolCache(64, db)
	if err != nil {
		log.Fatal("pool cache", zap.Error(err))
	}
	return cache
}

// checkPair refuses to start when the pools trade different pairs. A chain
// failure here is not a configuration problem, so it only warns.
func checkPair(ctx context.Context, resolver *arbitrage.MetaResolver, poolA, poolB arbitrage.Pool, log *zap.Logger) {
	metaA, cachedA, err := resolver.Resolve(ctx, poolA.Address)
	if err != nil {
		log.Warn("pool metadata unavailable, skipping pair check", zap.String("pool", poolA.Name), zap.Error(err))
		return
	}
	metaB, cachedB, err := resolver.Resolve(ctx, poolB.Address)
	if err != nil {
		log.Warn("pool metadata unavailable, skipping pair check", zap.String("pool", poolB.Name), zap.Error(err))
		return
	}

	if err := arbitrage.CheckSamePair(metaA, metaB); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("pools trade the same pair",
		zap.String("token0", eth.SymbolFor(metaA.Token0)),
		zap.String("token1", eth.SymbolFor(metaA.Token1)),
		zap.Uint32("fee_a", metaA.Fee),
		zap.Uint32("fee_b", metaB.Fee),
		zap.Bool("cached", cachedA && cachedB),
	)
}
