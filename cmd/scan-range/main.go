package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pulkyeet/pool-spread-monitor/internal/arbitrage"
	"github.com/pulkyeet/pool-spread-monitor/internal/config"
	"github.com/pulkyeet/pool-spread-monitor/internal/eth"
	"github.com/pulkyeet/pool-spread-monitor/internal/logger"
	"github.com/pulkyeet/pool-spread-monitor/internal/monitor"
)

func main() {
	cfgPath := flag.String("config", "", "optional yaml config file")
	startBlock := flag.Uint64("start", 0, "start block")
	endBlock := flag.Uint64("end", 0, "end block (inclusive)")
	step := flag.Uint64("step", 100, "block step size")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		l, _ := logger.New("info", "json")
		l.Fatal("invalid configuration", zap.Error(err))
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	blocks := monitor.BlockRange(*startBlock, *endBlock, *step)
	if len(blocks) == 0 {
		log.Fatal("empty block range",
			zap.Uint64("start", *startBlock), zap.Uint64("end", *endBlock), zap.Uint64("step", *step))
	}

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

	fmt.Printf("Scanning blocks %d to %d (step: %d), %s vs %s...\n",
		*startBlock, *endBlock, *step, poolA.Name, poolB.Name)

	sum, err := monitor.Sweep(ctx, det, blocks, monitor.NewLogReporter(log))
	if err != nil {
		log.Warn("scan interrupted", zap.Error(err))
	}

	fmt.Printf("\n================================================\n")
	fmt.Printf("Scan complete! Blocks checked: %d | Failed: %d | Opportunities: %d\n",
		sum.Evaluated, sum.Failed, sum.Opportunities)
}
