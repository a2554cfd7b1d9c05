package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PoolPrice = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spread_pool_price",
		Help: "Normalized pool price (token1 per token0, scaled by 1e18, as float)",
	}, []string{"pool"})

	GasCostWei = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spread_gas_cost_wei",
		Help: "Estimated gas cost of one arbitrage transaction in wei",
	})

	PriceDiff = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spread_price_diff",
		Help: "Absolute normalized price difference between the two pools",
	})

	Cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spread_cycles_total",
		Help: "Evaluation cycles by outcome (opportunity, none, failed)",
	}, []string{"outcome"})

	CycleFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spread_cycle_failures_total",
		Help: "Failed cycles by the step that failed",
	}, []string{"step"})

	Opportunities = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spread_opportunities_total",
		Help: "Cycles that found a spread above threshold plus gas",
	})

	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "spread_cycle_duration_seconds",
		Help:    "Wall time of one evaluation cycle",
		Buckets: prometheus.DefBuckets,
	})
)

const (
	OutcomeOpportunity = "opportunity"
	OutcomeNone        = "none"
	OutcomeFailed      = "failed"
)

func init() {
	prometheus.MustRegister(
		PoolPrice,
		GasCostWei,
		PriceDiff,
		Cycles,
		CycleFailures,
		Opportunities,
		CycleDuration,
	)
}
