package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SimulationResult holds exact amounts at entry and after each hop. HopOut
// has one entry per leg; the last one is the exit amount.
//
// GasEstimate marks results produced only to size gas. Builders emit zero
// minimum outputs for them instead of applying slippage.
type SimulationResult struct {
	AmountIn    *big.Int   `json:"amount_in"`
	HopOut      []*big.Int `json:"hop_out"`
	GasEstimate bool       `json:"gas_estimate,omitempty"`
}

// AmountOut returns the exit amount, or nil when there are no hops.
func (s *SimulationResult) AmountOut() *big.Int {
	if s == nil || len(s.HopOut) == 0 {
		return nil
	}
	return s.HopOut[len(s.HopOut)-1]
}

// Profit is the exit amount minus the entry amount.
func (s *SimulationResult) Profit() *big.Int {
	out := s.AmountOut()
	if out == nil || s.AmountIn == nil {
		return nil
	}
	return new(big.Int).Sub(out, s.AmountIn)
}

// EstimationSimulation returns a unit-amount result flagged for gas sizing.
func EstimationSimulation(legs int) *SimulationResult {
	hops := make([]*big.Int, legs)
	for i := range hops {
		hops[i] = big.NewInt(1)
	}
	return &SimulationResult{AmountIn: big.NewInt(1), HopOut: hops, GasEstimate: true}
}

// BuildResult is a path builder's output, ready for calldata encoding.
type BuildResult struct {
	Strategy     Strategy       `json:"strategy"`
	FunctionName string         `json:"function_name"`
	ParamsType   string         `json:"params_type"`
	Params       any            `json:"params"`
	BorrowToken  common.Address `json:"borrow_token"`
	BorrowAmount *big.Int       `json:"borrow_amount"`
	MinAmountOut *big.Int       `json:"min_amount_out"`
}
