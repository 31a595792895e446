package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// VenueKind distinguishes on-chain pools from order-driven venues.
type VenueKind string

const (
	VenueKindPool      VenueKind = "pool"
	VenueKindOrderBook VenueKind = "orderbook"
)

// Pair is a symbolic trading pair such as WETH-USDC.
type Pair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

func (p Pair) String() string {
	return p.Base + "-" + p.Quote
}

// Quote is a venue-scoped price snapshot. Pool quotes carry the sqrt price and
// liquidity; order-book quotes carry bid, ask and volume.
type Quote struct {
	Venue     string    `json:"venue"`
	Kind      VenueKind `json:"kind"`
	Pair      Pair      `json:"pair"`
	Protocol  string    `json:"protocol,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Pool         common.Address `json:"pool,omitempty"`
	Token0       common.Address `json:"token0,omitempty"`
	Token1       common.Address `json:"token1,omitempty"`
	BaseToken    common.Address `json:"base_token,omitempty"`
	Decimals0    uint8          `json:"decimals0,omitempty"`
	Decimals1    uint8          `json:"decimals1,omitempty"`
	SqrtPriceX96 *big.Int       `json:"sqrt_price_x96,omitempty"`
	Liquidity    *big.Int       `json:"liquidity,omitempty"`
	Fee          uint32         `json:"fee,omitempty"`
	Tick         int32          `json:"tick,omitempty"`

	Bid      decimal.Decimal `json:"bid"`
	Ask      decimal.Decimal `json:"ask"`
	Volume   decimal.Decimal `json:"volume"`
	TakerFee decimal.Decimal `json:"taker_fee"`
}

// BaseIsToken0 reports whether the pair's base asset is the pool's token0.
func (q Quote) BaseIsToken0() bool {
	return q.BaseToken == (common.Address{}) || q.BaseToken == q.Token0
}

// QuoteToken returns the pool token that is not the base asset.
func (q Quote) QuoteToken() common.Address {
	if q.BaseIsToken0() {
		return q.Token1
	}
	return q.Token0
}

// OtherToken returns the pool token paired with token, or false when token is
// not part of the pool.
func (q Quote) OtherToken(token common.Address) (common.Address, bool) {
	switch token {
	case q.Token0:
		return q.Token1, true
	case q.Token1:
		return q.Token0, true
	default:
		return common.Address{}, false
	}
}

func (q Quote) QuoteDecimals() uint8 {
	if q.BaseIsToken0() {
		return q.Decimals1
	}
	return q.Decimals0
}
