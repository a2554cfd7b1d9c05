package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/pulkyeet/pool-spread-monitor/internal/arbitrage"
	"github.com/pulkyeet/pool-spread-monitor/internal/config"
	"github.com/pulkyeet/pool-spread-monitor/internal/logger"
	"github.com/pulkyeet/pool-spread-monitor/internal/monitor"
	"github.com/pulkyeet/pool-spread-monitor/internal/replay"
)

// sweepInterval fills arbitrage.Config's poll interval, which must be
// positive. Sweep evaluates blocks back to back and never reads it.
const sweepInterval = time.Millisecond

func main() {
	file := flag.String("file", "", "parquet file of recorded pool samples")
	poolA := flag.String("pool-a", config.DefaultPoolA, "reference pool address")
	poolB := flag.String("pool-b", config.DefaultPoolB, "second pool address")
	threshold := flag.String("threshold", config.DefaultThreshold, "threshold fraction of pool A price")
	gasLimit := flag.Uint64("gas-limit", config.DefaultGasLimit, "gas units per arbitrage transaction")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log, err := logger.New(*level, "console")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if *file == "" {
		log.Fatal("usage: --file <parquet_file>")
	}

	thresholdRat, ok := new(big.Rat).SetString(*threshold)
	if !ok {
		log.Fatal("invalid configuration", zap.String("threshold", *threshold))
	}
	arbCfg, err := arbitrage.NewConfig(thresholdRat, sweepInterval, *gasLimit)
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	for _, addr := range []string{*poolA, *poolB} {
		if !common.IsHexAddress(addr) {
			log.Fatal("invalid pool address", zap.String("pool", addr))
		}
	}

	client, err := replay.Load(*file)
	if err != nil {
		log.Fatal("load samples", zap.Error(err))
	}

	det, err := arbitrage.NewDetector(client,
		arbitrage.Pool{Name: "pool_a", Address: common.HexToAddress(*poolA)},
		arbitrage.Pool{Name: "pool_b", Address: common.HexToAddress(*poolB)},
		arbCfg, time.Second)
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blocks := client.Blocks()
	fmt.Printf("Replaying %d recorded blocks from %s...\n", len(blocks), *file)

	sum, err := monitor.Sweep(ctx, det, blocks, monitor.NewLogReporter(log))
	if err != nil {
		log.Warn("replay interrupted", zap.Error(err))
	}

	fmt.Printf("\nReplay complete! Blocks evaluated: %d | Failed: %d | Opportunities: %d\n",
		sum.Evaluated, sum.Failed, sum.Opportunities)
}
