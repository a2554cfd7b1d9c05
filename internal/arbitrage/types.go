package arbitrage

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PoolState is one fresh read of a uniswap v3 style pool. Owned by the cycle
// that fetched it.
type PoolState struct {
	Address      common.Address
	SqrtPriceX96 *big.Int
	Tick         int32
	// Liquidity is read but not used by the decision yet.
	Liquidity *uint256.Int
	Block     *big.Int // nil means latest
}

// PoolMeta is static pool data, safe to cache across restarts.
type PoolMeta struct {
	Address     common.Address
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickSpacing int32
	Decimals0   int
	Decimals1   int
}

// Pool names a monitored pool.
type Pool struct {
	Name    string
	Address common.Address
}

// Decision is the verdict for a single cycle. All amounts are base-1e18
// fixed point (prices) or wei (gas), compared as raw integers.
type Decision struct {
	OpportunityExists bool
	PriceDifference   *big.Int
	// ThresholdAbs is priceA scaled by the threshold fraction.
	ThresholdAbs *big.Int
	GasCost      *big.Int
	// ReferenceThreshold is ThresholdAbs + GasCost, the bar PriceDifference
	// must strictly exceed.
	ReferenceThreshold *big.Int
}

// CycleResult is everything a cycle produced, handed to reporting.
type CycleResult struct {
	Block    *big.Int
	PoolA    Pool
	PoolB    Pool
	StateA   *PoolState
	StateB   *PoolState
	PriceA   *big.Int
	PriceB   *big.Int
	GasCost  *big.Int
	Decision *Decision
	Elapsed  time.Duration
}
