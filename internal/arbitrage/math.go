package arbitrage

import (
	"errors"
	"fmt"
	"math/big"
)

// PriceScale is the fixed point base of a normalized price (1e18).
var PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// sqrtPriceX96 is sqrt(price) * 2^96, so squaring leaves a 2^192 factor.
const q192Shift = 192

// NormalizePrice converts a packed sqrtPriceX96 into token1 per token0 at
// 1e18 scale: sqrtPriceX96^2 * 1e18 / 2^192, floored. The square of a 160 bit
// value needs 320 bits, so this must stay on big.Int.
func NormalizePrice(sqrtPriceX96 *big.Int) (*big.Int, error) {
	if sqrtPriceX96 == nil {
		return nil, errors.New("sqrtPriceX96 is nil")
	}
	if sqrtPriceX96.Sign() < 0 {
		return nil, fmt.Errorf("sqrtPriceX96 is negative: %s", sqrtPriceX96)
	}

	price := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	price.Mul(price, PriceScale)
	// floor division by 2^192; price is non-negative so a shift is exact
	price.Rsh(price, q192Shift)

	return price, nil
}

// ThresholdAbs scales the reference price by the threshold fraction,
// truncating toward zero.
func ThresholdAbs(reference *big.Int, fraction *big.Rat) *big.Int {
	t := new(big.Int).Mul(reference, fraction.Num())
	return t.Quo(t, fraction.Denom())
}

// Evaluate decides whether |priceA - priceB| strictly exceeds
// priceA*threshold + gasCost. priceA is always the reference: the threshold
// is never taken from priceB, the mean or the smaller price.
func Evaluate(priceA, priceB, gasCost *big.Int, threshold *big.Rat) (*Decision, error) {
	if priceA == nil || priceB == nil || gasCost == nil {
		return nil, errors.New("evaluate: nil input")
	}
	if priceA.Sign() < 0 || priceB.Sign() < 0 {
		return nil, fmt.Errorf("evaluate: negative price (a=%s b=%s)", priceA, priceB)
	}
	if gasCost.Sign() < 0 {
		return nil, fmt.Errorf("evaluate: negative gas cost %s", gasCost)
	}
	if threshold == nil || threshold.Sign() < 0 {
		return nil, configErr("threshold_fraction", "must be non-negative")
	}

	diff := new(big.Int).Sub(priceA, priceB)
	diff.Abs(diff)

	thresholdAbs := ThresholdAbs(priceA, threshold)
	required := new(big.Int).Add(thresholdAbs, gasCost)

	return &Decision{
		OpportunityExists:  diff.Cmp(required) > 0,
		PriceDifference:    diff,
		ThresholdAbs:       thresholdAbs,
		GasCost:            new(big.Int).Set(gasCost),
		ReferenceThreshold: required,
	}, nil
}

// DisplayPrice renders a normalized price as a human decimal adjusted for
// token decimals. Output only; decisions use the raw integer.
func DisplayPrice(price *big.Int, decimals0, decimals1 int) string {
	if price == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(price, PriceScale)

	shift := decimals0 - decimals1
	if shift != 0 {
		pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(shift))), nil)
		adj := new(big.Rat).SetInt(pow)
		if shift > 0 {
			r.Mul(r, adj)
		} else {
			r.Quo(r, adj)
		}
	}
	return r.FloatString(6)
}

// PriceFloat is price/1e18 as a float, for gauges.
func PriceFloat(price *big.Int) float64 {
	if price == nil {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(price, PriceScale).Float64()
	return f
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
