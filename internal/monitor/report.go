package monitor

import (
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulkyeet/pool-spread-monitor/internal/arbitrage"
	"github.com/pulkyeet/pool-spread-monitor/internal/metrics"
)

// LogReporter writes one log line per cycle and updates the prometheus
// collectors.
type LogReporter struct {
	log     *zap.Logger
	gasWarn sync.Once
}

func NewLogReporter(log *zap.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) Report(seq uint64, res *arbitrage.CycleResult, err error, elapsed time.Duration) {
	metrics.CycleDuration.Observe(elapsed.Seconds())

	if err != nil {
		step := arbitrage.StepOf(err)
		metrics.Cycles.WithLabelValues(metrics.OutcomeFailed).Inc()
		metrics.CycleFailures.WithLabelValues(string(step)).Inc()
		r.log.Warn("cycle failed",
			zap.Uint64("cycle", seq),
			zap.String("step", string(step)),
			zap.Error(err),
			zap.Duration("elapsed", elapsed),
		)
		return
	}

	d := res.Decision
	if res.GasCost != nil && res.PriceA != nil && res.GasCost.Cmp(res.PriceA) > 0 {
		// gas is in wei, prices are token1 per token0 at 1e18; with a low
		// decimals token1 the gas term alone outweighs the whole price
		r.gasWarn.Do(func() {
			r.log.Warn("gas cost exceeds reference price, opportunities are unreachable at this scale",
				zap.Stringer("gas_cost", res.GasCost),
				zap.Stringer("price_a", res.PriceA),
			)
		})
	}
	metrics.PoolPrice.WithLabelValues(res.PoolA.Name).Set(arbitrage.PriceFloat(res.PriceA))
	metrics.PoolPrice.WithLabelValues(res.PoolB.Name).Set(arbitrage.PriceFloat(res.PriceB))
	gasWei, _ := new(big.Float).SetInt(res.GasCost).Float64()
	metrics.GasCostWei.Set(gasWei)
	metrics.PriceDiff.Set(arbitrage.PriceFloat(d.PriceDifference))

	fields := []zap.Field{
		zap.Uint64("cycle", seq),
		zap.String("block", blockLabel(res.Block)),
		zap.String("pool_a", res.PoolA.Name),
		zap.String("pool_b", res.PoolB.Name),
		zap.Stringer("price_a", res.PriceA),
		zap.Stringer("price_b", res.PriceB),
		zap.Stringer("gas_cost", res.GasCost),
		zap.Stringer("price_diff", d.PriceDifference),
		zap.Stringer("threshold", d.ThresholdAbs),
		zap.Stringer("required", d.ReferenceThreshold),
		zap.Bool("opportunity", d.OpportunityExists),
		zap.Duration("elapsed", elapsed),
	}

	if d.OpportunityExists {
		metrics.Cycles.WithLabelValues(metrics.OutcomeOpportunity).Inc()
		metrics.Opportunities.Inc()
		r.log.Info("arbitrage opportunity detected", fields...)
		return
	}
	metrics.Cycles.WithLabelValues(metrics.OutcomeNone).Inc()
	r.log.Info("no significant arbitrage opportunity", fields...)
}

func blockLabel(b *big.Int) string {
	if b == nil {
		return "latest"
	}
	return b.String()
}
