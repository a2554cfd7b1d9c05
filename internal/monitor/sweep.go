package monitor

import (
	"context"
	"math/big"
	"time"

	"github.com/pulkyeet/pool-spread-monitor/internal/arbitrage"
)

// Evaluator evaluates both pools at a given historical block.
type Evaluator interface {
	EvaluateAt(ctx context.Context, block *big.Int) (*arbitrage.CycleResult, error)
}

type SweepSummary struct {
	Evaluated     int
	Failed        int
	Opportunities int
}

// Sweep evaluates blocks in order, one at a time. A failing block is
// reported and skipped like a failed cycle. Cancellation is checked between
// blocks; the summary so far is returned together with ctx's error.
func Sweep(ctx context.Context, ev Evaluator, blocks []uint64, reporter Reporter) (SweepSummary, error) {
	var sum SweepSummary

	for i, b := range blocks {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		block := new(big.Int).SetUint64(b)
		start := time.Now()
		res, err := guard(func() (*arbitrage.CycleResult, error) {
			return ev.EvaluateAt(ctx, block)
		})
		report(reporter, nil, uint64(i+1), res, err, time.Since(start))

		if err != nil {
			sum.Failed++
			continue
		}
		sum.Evaluated++
		if res.Decision.OpportunityExists {
			sum.Opportunities++
		}
	}
	return sum, nil
}

// BlockRange lists start..end inclusive in increments of step.
func BlockRange(start, end, step uint64) []uint64 {
	if step == 0 || end < start {
		return nil
	}
	blocks := make([]uint64, 0, (end-start)/step+1)
	for b := start; b <= end; b += step {
		blocks = append(blocks, b)
		if b > end-step {
			break
		}
	}
	return blocks
}
