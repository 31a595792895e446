package dex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"arbcore/internal/model"
)

// FeeDenominator is the unit of pool fee tiers (parts per million).
const FeeDenominator = 1_000_000

const bpsDenominator = 10_000

var (
	q192      = new(big.Int).Lsh(big.NewInt(1), 192)
	bigBps    = big.NewInt(bpsDenominator)
	bigFeeDen = big.NewInt(FeeDenominator)
)

// PriceX192 returns sqrtPriceX96 squared: the token1/token0 price scaled by
// 2^192. Comparisons between pools use this value directly.
func PriceX192(sqrtPriceX96 *big.Int) *big.Int {
	return new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
}

// ExceedsThreshold reports whether hi is more than thresholdBps above lo,
// using only integer arithmetic: (hi-lo)*10000 > threshold*lo.
func ExceedsThreshold(lo, hi *big.Int, thresholdBps uint64) bool {
	if lo.Sign() <= 0 || hi.Cmp(lo) <= 0 {
		return false
	}
	diff := new(big.Int).Sub(hi, lo)
	diff.Mul(diff, bigBps)
	limit := new(big.Int).Mul(lo, new(big.Int).SetUint64(thresholdBps))
	return diff.Cmp(limit) > 0
}

// SpreadBps returns (hi-lo)*10000/lo rounded down.
func SpreadBps(lo, hi *big.Int) uint64 {
	if lo.Sign() <= 0 || hi.Cmp(lo) <= 0 {
		return 0
	}
	diff := new(big.Int).Sub(hi, lo)
	diff.Mul(diff, bigBps)
	diff.Quo(diff, lo)
	if !diff.IsUint64() {
		return ^uint64(0)
	}
	return diff.Uint64()
}

// ApproxSpreadBps is a float64 estimate of the spread between two sqrt
// prices. It is only precise enough to discard obviously flat pairs.
func ApproxSpreadBps(sqrtLo, sqrtHi *big.Int) float64 {
	lo, _ := new(big.Float).SetInt(sqrtLo).Float64()
	hi, _ := new(big.Float).SetInt(sqrtHi).Float64()
	if lo == 0 {
		return 0
	}
	ratio := hi / lo
	return (ratio*ratio - 1) * bpsDenominator
}

// AmountOut quotes a swap against the spot price after the pool fee, rounding
// down. zeroForOne swaps token0 for token1.
func AmountOut(sqrtPriceX96 *big.Int, fee uint32, amountIn *big.Int, zeroForOne bool) *big.Int {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 || amountIn == nil || amountIn.Sign() <= 0 || fee >= FeeDenominator {
		return new(big.Int)
	}
	in := new(big.Int).Mul(amountIn, big.NewInt(int64(FeeDenominator-fee)))
	in.Quo(in, bigFeeDen)

	price := PriceX192(sqrtPriceX96)
	if zeroForOne {
		out := in.Mul(in, price)
		return out.Rsh(out, 192)
	}
	out := in.Lsh(in, 192)
	return out.Quo(out, price)
}

// SwapQuote quotes amountIn of tokenIn through a pool quote and returns the
// output amount and token. ok is false when tokenIn is not in the pool.
func SwapQuote(q model.Quote, tokenIn common.Address, amountIn *big.Int) (out *big.Int, tokenOut common.Address, ok bool) {
	tokenOut, ok = q.OtherToken(tokenIn)
	if !ok {
		return nil, common.Address{}, false
	}
	return AmountOut(q.SqrtPriceX96, q.Fee, amountIn, tokenIn == q.Token0), tokenOut, true
}

// HumanPrice converts a pool quote into quote-asset units per base-asset
// unit, adjusting for token decimals.
func HumanPrice(q model.Quote) decimal.Decimal {
	if q.SqrtPriceX96 == nil || q.SqrtPriceX96.Sign() <= 0 {
		return decimal.Zero
	}
	raw := decimal.NewFromBigInt(PriceX192(q.SqrtPriceX96), 0).DivRound(decimal.NewFromBigInt(q192, 0), 36)
	price := raw.Shift(int32(q.Decimals0) - int32(q.Decimals1))
	if q.BaseIsToken0() {
		return price
	}
	if price.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).DivRound(price, 36)
}

// FeeFraction returns a pool fee tier as a fraction.
func FeeFraction(fee uint32) decimal.Decimal {
	return decimal.New(int64(fee), -6)
}
