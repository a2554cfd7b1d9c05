package arbitrage

import (
	"context"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"
)

// Detector runs one evaluation: read both pools and the fee rate in
// parallel, normalize, then decide.
type Detector struct {
	reader *PoolReader
	gas    *GasEstimator
	poolA  Pool
	poolB  Pool
	cfg    Config
}

// NewDetector wires the pipeline. poolA is the reference pool for the
// threshold.
func NewDetector(client ChainClient, poolA, poolB Pool, cfg Config, readTimeout time.Duration) (*Detector, error) {
	if poolA.Address == poolB.Address {
		return nil, configErr("pools", "pool A and pool B are the same address %s", poolA.Address.Hex())
	}

	reader, err := NewPoolReader(client, readTimeout)
	if err != nil {
		return nil, err
	}

	return &Detector{
		reader: reader,
		gas:    NewGasEstimator(client, cfg.GasLimit(), readTimeout),
		poolA:  poolA,
		poolB:  poolB,
		cfg:    cfg,
	}, nil
}

func (d *Detector) Reader() *PoolReader { return d.reader }

func (d *Detector) Pools() (Pool, Pool) { return d.poolA, d.poolB }

// RunCycle evaluates at the latest block with the current fee rate.
func (d *Detector) RunCycle(ctx context.Context) (*CycleResult, error) {
	return d.run(ctx, nil, d.gas.Estimate)
}

// EvaluateAt evaluates both pools at a past block, pricing gas from that
// block's base fee.
func (d *Detector) EvaluateAt(ctx context.Context, blockNum *big.Int) (*CycleResult, error) {
	return d.run(ctx, blockNum, func(ctx context.Context) (*big.Int, error) {
		return d.gas.EstimateAt(ctx, blockNum)
	})
}

func (d *Detector) run(ctx context.Context, blockNum *big.Int, estimate func(context.Context) (*big.Int, error)) (*CycleResult, error) {
	start := time.Now()

	var (
		stateA, stateB *PoolState
		gasCost        *big.Int
	)

	// the three reads are independent; evaluation waits for all of them
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := d.reader.ReadPoolState(gctx, d.poolA.Address, blockNum)
		if err != nil {
			return &CycleError{Step: StepReadPoolA, Err: err}
		}
		stateA = s
		return nil
	})
	g.Go(func() error {
		s, err := d.reader.ReadPoolState(gctx, d.poolB.Address, blockNum)
		if err != nil {
			return &CycleError{Step: StepReadPoolB, Err: err}
		}
		stateB = s
		return nil
	})
	g.Go(func() error {
		c, err := estimate(gctx)
		if err != nil {
			return &CycleError{Step: StepEstimateGas, Err: err}
		}
		gasCost = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	priceA, err := NormalizePrice(stateA.SqrtPriceX96)
	if err != nil {
		return nil, &CycleError{Step: StepNormalize, Err: err}
	}
	priceB, err := NormalizePrice(stateB.SqrtPriceX96)
	if err != nil {
		return nil, &CycleError{Step: StepNormalize, Err: err}
	}

	decision, err := Evaluate(priceA, priceB, gasCost, d.cfg.Threshold())
	if err != nil {
		return nil, &CycleError{Step: StepEvaluate, Err: err}
	}

	return &CycleResult{
		Block:    blockNum,
		PoolA:    d.poolA,
		PoolB:    d.poolB,
		StateA:   stateA,
		StateB:   stateB,
		PriceA:   priceA,
		PriceB:   priceB,
		GasCost:  gasCost,
		Decision: decision,
		Elapsed:  time.Since(start),
	}, nil
}
