package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/pulkyeet/pool-spread-monitor/internal/arbitrage"
	"github.com/pulkyeet/pool-spread-monitor/internal/config"
	"github.com/pulkyeet/pool-spread-monitor/internal/eth"
	"github.com/pulkyeet/pool-spread-monitor/internal/logger"
)

func main() {
	_ = godotenv.Load()

	pool := flag.String("pool", eth.UniV3WETHUSDC.Hex(), "pool address")
	block := flag.Int64("block", -1, "block number (-1 for latest)")
	timeout := flag.Duration("timeout", 10*time.Second, "read timeout")
	flag.Parse()

	log, err := logger.New("info", "console")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if !common.IsHexAddress(*pool) {
		log.Fatal("invalid pool address", zap.String("pool", *pool))
	}
	addr := common.HexToAddress(*pool)

	rpcURL := config.RPCURLFromEnv()
	if rpcURL == "" {
		log.Fatal("set RPC_URL, ALCHEMY_URL or INFURA_API_KEY")
	}

	ctx := context.Background()
	client, err := eth.Dial(ctx, rpcURL)
	if err != nil {
		log.Fatal("rpc dial failed", zap.Error(err))
	}
	defer client.Close()

	reader, err := arbitrage.NewPoolReader(client, *timeout)
	if err != nil {
		log.Fatal("pool reader", zap.Error(err))
	}

	var blockNum *big.Int
	if *block >= 0 {
		blockNum = big.NewInt(*block)
	}

	state, err := reader.ReadPoolState(ctx, addr, blockNum)
	if err != nil {
		log.Fatal("read pool state", zap.Error(err))
	}
	price, err := arbitrage.NormalizePrice(state.SqrtPriceX96)
	if err != nil {
		log.Fatal("normalize price", zap.Error(err))
	}

	fmt.Printf("Pool %s\n", addr.Hex())
	fmt.Printf("  Liquidity:    %s\n", state.Liquidity.Dec())
	fmt.Printf("  SqrtPriceX96: %s\n", state.SqrtPriceX96)
	fmt.Printf("  Tick:         %d\n", state.Tick)
	fmt.Printf("  Price (1e18): %s\n", price)

	meta, err := reader.ReadPoolMeta(ctx, addr)
	if err != nil {
		log.Warn("pool metadata unavailable", zap.Error(err))
		return
	}
	fmt.Printf("  Pair:         %s/%s (fee %d, tick spacing %d)\n",
		eth.SymbolFor(meta.Token0), eth.SymbolFor(meta.Token1), meta.Fee, meta.TickSpacing)
	fmt.Printf("  Price:        %s %s per %s\n",
		arbitrage.DisplayPrice(price, meta.Decimals0, meta.Decimals1),
		eth.SymbolFor(meta.Token1), eth.SymbolFor(meta.Token0))
}
