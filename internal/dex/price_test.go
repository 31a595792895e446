package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"arbcore/internal/model"
)

func sqrtX96(n int64) *big.Int {
	return new(big.Int).Lsh(big.NewInt(n), 96)
}

func TestExceedsThresholdIsStrict(t *testing.T) {
	// 100^2 -> 101^2 is exactly a 201 bps move.
	lo := PriceX192(sqrtX96(100))
	hi := PriceX192(sqrtX96(101))

	if got := SpreadBps(lo, hi); got != 201 {
		t.Fatalf("spread mismatch: %d", got)
	}
	if ExceedsThreshold(lo, hi, 201) {
		t.Fatalf("spread equal to threshold must not pass")
	}
	if !ExceedsThreshold(lo, hi, 200) {
		t.Fatalf("spread above threshold must pass")
	}
	if ExceedsThreshold(lo, lo, 0) {
		t.Fatalf("equal prices must not pass")
	}
	if ExceedsThreshold(hi, lo, 0) {
		t.Fatalf("inverted order must not pass")
	}
}

func TestApproxSpreadBps(t *testing.T) {
	got := ApproxSpreadBps(sqrtX96(100), sqrtX96(101))
	if got < 200.9 || got > 201.1 {
		t.Fatalf("approx spread mismatch: %f", got)
	}
}

func TestAmountOutDirections(t *testing.T) {
	// price 4 token1 per token0, zero fee
	sqrt := sqrtX96(2)
	if got := AmountOut(sqrt, 0, big.NewInt(1000), true); got.Int64() != 4000 {
		t.Fatalf("zeroForOne mismatch: %s", got)
	}
	if got := AmountOut(sqrt, 0, big.NewInt(1000), false); got.Int64() != 250 {
		t.Fatalf("oneForZero mismatch: %s", got)
	}

	// 0.3% fee rounds 1000 down to 997 before pricing
	if got := AmountOut(sqrt, 3000, big.NewInt(1000), true); got.Int64() != 3988 {
		t.Fatalf("fee mismatch: %s", got)
	}

	if got := AmountOut(sqrt, 0, big.NewInt(0), true); got.Sign() != 0 {
		t.Fatalf("zero input must quote zero: %s", got)
	}
}

func TestSwapQuoteUnknownToken(t *testing.T) {
	q := model.Quote{
		Token0:       common.HexToAddress("0x01"),
		Token1:       common.HexToAddress("0x02"),
		SqrtPriceX96: sqrtX96(1),
	}
	if _, _, ok := SwapQuote(q, common.HexToAddress("0x03"), big.NewInt(1)); ok {
		t.Fatalf("expected unknown token to fail")
	}
	out, tokenOut, ok := SwapQuote(q, q.Token1, big.NewInt(10))
	if !ok || tokenOut != q.Token0 || out.Int64() != 10 {
		t.Fatalf("swap quote mismatch: %s %s %v", out, tokenOut.Hex(), ok)
	}
}

func TestHumanPrice(t *testing.T) {
	// raw price 4 with token0 6 decimals and token1 6 decimals
	q := model.Quote{
		Token0:       common.HexToAddress("0x01"),
		Token1:       common.HexToAddress("0x02"),
		Decimals0:    6,
		Decimals1:    6,
		SqrtPriceX96: sqrtX96(2),
	}
	if got := HumanPrice(q); !got.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("base token0 price mismatch: %s", got)
	}

	q.BaseToken = q.Token1
	if got := HumanPrice(q); !got.Equal(decimal.RequireFromString("0.25")) {
		t.Fatalf("base token1 price mismatch: %s", got)
	}

	// raw 1 with 18/6 decimals is 1e12 token1 per token0 in human units
	q = model.Quote{Decimals0: 18, Decimals1: 6, SqrtPriceX96: sqrtX96(1)}
	if got := HumanPrice(q); !got.Equal(decimal.New(1, 12)) {
		t.Fatalf("decimals shift mismatch: %s", got)
	}
}
