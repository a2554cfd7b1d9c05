package arbitrage

import (
	"math/big"
	"time"
)

// Config holds the decision parameters. It is fixed at startup; the fields
// are unexported so nothing can change them mid-run.
type Config struct {
	threshold    *big.Rat
	pollInterval time.Duration
	gasLimit     uint64
}

// NewConfig validates and copies the parameters. threshold must lie strictly
// between 0 and 1.
func NewConfig(threshold *big.Rat, pollInterval time.Duration, gasLimit uint64) (Config, error) {
	if threshold == nil {
		return Config{}, configErr("threshold_fraction", "missing")
	}
	if threshold.Sign() <= 0 || threshold.Cmp(big.NewRat(1, 1)) >= 0 {
		return Config{}, configErr("threshold_fraction", "%s is outside (0,1)", threshold.RatString())
	}
	if pollInterval <= 0 {
		return Config{}, configErr("poll_interval_ms", "must be positive, got %s", pollInterval)
	}
	if gasLimit == 0 {
		return Config{}, configErr("gas_limit_estimate", "must be positive")
	}

	return Config{
		threshold:    new(big.Rat).Set(threshold),
		pollInterval: pollInterval,
		gasLimit:     gasLimit,
	}, nil
}

// Threshold returns a copy of the threshold fraction.
func (c Config) Threshold() *big.Rat {
	if c.threshold == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(c.threshold)
}

func (c Config) PollInterval() time.Duration { return c.pollInterval }

func (c Config) GasLimit() uint64 { return c.gasLimit }
