package model

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Side is the direction of a leg relative to the pair's base asset.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Strategy selects the path builder for an opportunity. The set is closed;
// adding a member requires a new case in every switch over it.
type Strategy uint8

const (
	StrategyTwoHop Strategy = iota + 1
	StrategyTriangular
	StrategyFlashLoan
)

func (s Strategy) String() string {
	switch s {
	case StrategyTwoHop:
		return "two_hop"
	case StrategyTriangular:
		return "triangular"
	case StrategyFlashLoan:
		return "flash_loan"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Leg is one swap step of an opportunity.
type Leg struct {
	Side     Side           `json:"side"`
	Venue    string         `json:"venue"`
	Kind     VenueKind      `json:"kind"`
	Protocol string         `json:"protocol,omitempty"`
	Pool     common.Address `json:"pool,omitempty"`
	TokenIn  common.Address `json:"token_in"`
	TokenOut common.Address `json:"token_out"`
	Fee      uint32         `json:"fee,omitempty"`
}

// Validate checks the structural invariants of a leg.
func (l Leg) Validate() error {
	if l.Venue == "" {
		return fmt.Errorf("%w: leg venue is empty", ErrValidation)
	}
	if l.TokenIn == (common.Address{}) || l.TokenOut == (common.Address{}) {
		return fmt.Errorf("%w: leg on %s has a zero token", ErrValidation, l.Venue)
	}
	if l.TokenIn == l.TokenOut {
		return fmt.Errorf("%w: leg on %s swaps %s into itself", ErrValidation, l.Venue, l.TokenIn.Hex())
	}
	return nil
}

// Opportunity is a detected, not yet executed, arbitrage candidate. Legs are
// frozen at detection; the simulated profit is attached later on a copy.
type Opportunity struct {
	ID              string    `json:"id"`
	Strategy        Strategy  `json:"strategy"`
	Pair            Pair      `json:"pair"`
	Legs            []Leg     `json:"legs"`
	SpreadBps       uint64    `json:"spread_bps"`
	EstimatedProfit *big.Int  `json:"estimated_profit"`
	SimulatedProfit *big.Int  `json:"simulated_profit,omitempty"`
	BorrowAmount    *big.Int  `json:"borrow_amount,omitempty"`
	DetectedAt      time.Time `json:"detected_at"`
}

// WithSimulatedProfit returns a copy carrying the post-simulation profit.
func (o Opportunity) WithSimulatedProfit(profit *big.Int) Opportunity {
	out := o
	out.Legs = append([]Leg(nil), o.Legs...)
	if profit != nil {
		out.SimulatedProfit = new(big.Int).Set(profit)
	}
	return out
}

// Executable reports whether every leg trades on an on-chain pool.
func (o Opportunity) Executable() bool {
	if len(o.Legs) == 0 {
		return false
	}
	for _, leg := range o.Legs {
		if leg.Kind != VenueKindPool {
			return false
		}
	}
	return true
}

// RouteKey identifies the route independent of prices, used to keep two
// executions of the same route from overlapping.
func (o Opportunity) RouteKey() string {
	parts := make([]string, 0, len(o.Legs)+1)
	parts = append(parts, o.Strategy.String())
	for _, leg := range o.Legs {
		parts = append(parts, leg.Venue+":"+strings.ToLower(leg.TokenIn.Hex())+">"+strings.ToLower(leg.TokenOut.Hex()))
	}
	return strings.Join(parts, "|")
}
