package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// GasEstimator turns the network fee rate into an advisory cost for one
// arbitrage transaction of a fixed, configured size.
type GasEstimator struct {
	client   ChainClient
	gasLimit *big.Int
	timeout  time.Duration
}

func NewGasEstimator(client ChainClient, gasLimit uint64, timeout time.Duration) *GasEstimator {
	return &GasEstimator{
		client:   client,
		gasLimit: new(big.Int).SetUint64(gasLimit),
		timeout:  timeout,
	}
}

// Estimate returns current fee rate * gas limit, in wei.
func (g *GasEstimator) Estimate(ctx context.Context) (*big.Int, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &ConnectivityError{Op: "eth_gasPrice", Err: err}
	}
	return g.cost(gasPrice)
}

// EstimateAt prices the trade at a past block using that block's base fee.
func (g *GasEstimator) EstimateAt(ctx context.Context, blockNum *big.Int) (*big.Int, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	header, err := g.client.HeaderByNumber(ctx, blockNum)
	if err != nil {
		return nil, &ConnectivityError{Op: "eth_getBlockByNumber", Err: err}
	}
	if header == nil || header.BaseFee == nil {
		return nil, &ConnectivityError{Op: "eth_getBlockByNumber", Err: fmt.Errorf("block %s has no base fee", blockNum)}
	}
	return g.cost(header.BaseFee)
}

func (g *GasEstimator) cost(gasPrice *big.Int) (*big.Int, error) {
	if gasPrice == nil || gasPrice.Sign() < 0 {
		return nil, &ConnectivityError{Op: "fee rate", Err: errors.New("fee rate missing or negative")}
	}
	return new(big.Int).Mul(gasPrice, g.gasLimit), nil
}

func (g *GasEstimator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}
