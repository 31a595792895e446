package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"arbcore/internal/model"
)

// quoteExactInputSingleParams mirrors IQuoterV2.QuoteExactInputSingleParams.
type quoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

// Quoter simulates opportunities hop by hop against an on-chain QuoterV2.
type Quoter struct {
	caller  ContractCaller
	address common.Address
}

func NewQuoter(caller ContractCaller, address common.Address) *Quoter {
	return &Quoter{caller: caller, address: address}
}

// Simulate chains quoteExactInputSingle across the legs, feeding each hop's
// output into the next.
func (q *Quoter) Simulate(ctx context.Context, legs []model.Leg, amountIn *big.Int) (*model.SimulationResult, error) {
	if len(legs) == 0 {
		return nil, fmt.Errorf("%w: no legs to simulate", model.ErrValidation)
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: simulation amount must be positive", model.ErrValidation)
	}

	quoterABI, err := QuoterV2ABI()
	if err != nil {
		return nil, fmt.Errorf("parse quoter abi: %w", err)
	}

	result := &model.SimulationResult{
		AmountIn: new(big.Int).Set(amountIn),
		HopOut:   make([]*big.Int, 0, len(legs)),
	}
	current := amountIn
	for i, leg := range legs {
		if leg.Kind != model.VenueKindPool || !isConcentratedLiquidity(leg.Protocol) {
			return nil, fmt.Errorf("%w: leg %d on %s (%s) cannot be quoted", model.ErrExecutionUnsupported, i, leg.Venue, leg.Protocol)
		}
		params := quoteExactInputSingleParams{
			TokenIn:           leg.TokenIn,
			TokenOut:          leg.TokenOut,
			AmountIn:          current,
			Fee:               new(big.Int).SetUint64(uint64(leg.Fee)),
			SqrtPriceLimitX96: new(big.Int),
		}
		values, err := callMethod(ctx, q.caller, q.address, quoterABI, "quoteExactInputSingle", nil, params)
		if err != nil {
			return nil, fmt.Errorf("simulate leg %d on %s: %w", i, leg.Venue, err)
		}
		out, err := asBigInt(values[0])
		if err != nil {
			return nil, fmt.Errorf("simulate leg %d amountOut: %w", i, err)
		}
		result.HopOut = append(result.HopOut, out)
		current = out
	}
	return result, nil
}

func isConcentratedLiquidity(protocol string) bool {
	switch strings.ToLower(protocol) {
	case "uniswap_v3", "":
		return true
	default:
		return false
	}
}
