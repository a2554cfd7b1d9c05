package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulkyeet/pool-spread-monitor/internal/arbitrage"
	"github.com/pulkyeet/pool-spread-monitor/internal/config"
	"github.com/pulkyeet/pool-spread-monitor/internal/eth"
	"github.com/pulkyeet/pool-spread-monitor/internal/logger"
)

func main() {
	cfgPath := flag.String("config", "", "optional yaml config file")
	flag.Parse()

	log, err := logger.New("info", "console")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := eth.Dial(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatal("rpc dial failed", zap.Error(err))
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		log.Fatal("eth_chainId failed", zap.Error(err))
	}
	head, err := client.BlockNumber(ctx)
	if err != nil {
		log.Fatal("eth_blockNumber failed", zap.Error(err))
	}

	gas := arbitrage.NewGasEstimator(client, cfg.GasLimitEstimate, cfg.ReadTimeout())
	cost, err := gas.Estimate(ctx)
	if err != nil {
		log.Fatal("fee rate unavailable", zap.Error(err))
	}
	feeRate, err := client.SuggestGasPrice(ctx)
	if err != nil {
		log.Fatal("fee rate unavailable", zap.Error(err))
	}

	fmt.Println("Network Check")
	fmt.Println("=============")
	fmt.Printf("Chain ID:       %s\n", chainID)
	fmt.Printf("Head block:     %d\n", head)
	fmt.Printf("Gas price:      %s wei\n", feeRate)
	fmt.Printf("Gas limit:      %d\n", cfg.GasLimitEstimate)
	fmt.Printf("Est. gas cost:  %s wei\n", cost)
}
