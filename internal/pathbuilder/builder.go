// Package pathbuilder turns a simulated opportunity into executor call
// parameters with slippage bounds.
package pathbuilder

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"arbcore/internal/dex"
	"arbcore/internal/model"
)

const bpsDenominator = 10000

// Params are the per-run settings shared by every strategy.
type Params struct {
	SlippageBps uint64
	Initiator   string
	Beneficiary string
}

// Build dispatches on the opportunity's strategy. Validation happens before
// any arithmetic and every failure wraps model.ErrValidation.
func Build(opp model.Opportunity, sim *model.SimulationResult, params Params) (model.BuildResult, error) {
	initiator, beneficiary, err := params.addresses()
	if err != nil {
		return model.BuildResult{}, err
	}
	if err := validateSimulation(opp, sim); err != nil {
		return model.BuildResult{}, err
	}

	switch opp.Strategy {
	case model.StrategyTwoHop:
		return buildTwoHop(opp, sim, params.SlippageBps, initiator, beneficiary)
	case model.StrategyTriangular:
		return buildTriangular(opp, sim, params.SlippageBps, initiator, beneficiary)
	case model.StrategyFlashLoan:
		return buildFlashLoan(opp, sim, params.SlippageBps, initiator, beneficiary)
	default:
		return model.BuildResult{}, fmt.Errorf("%w: unknown strategy %s", model.ErrValidation, opp.Strategy)
	}
}

// MinAmountOut applies the slippage tolerance with floor division. Gas
// estimation runs always get zero.
func MinAmountOut(amount *big.Int, slippageBps uint64, gasEstimate bool) (*big.Int, error) {
	if gasEstimate {
		return new(big.Int), nil
	}
	if slippageBps >= bpsDenominator {
		return nil, fmt.Errorf("%w: slippage %d bps out of range", model.ErrValidation, slippageBps)
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: simulated amount missing or negative", model.ErrValidation)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bpsDenominator-slippageBps))
	out.Quo(out, big.NewInt(bpsDenominator))
	if out.Sign() == 0 && amount.Sign() > 0 {
		return nil, fmt.Errorf("%w: minimum output rounds to zero from %s", model.ErrValidation, amount)
	}
	return out, nil
}

// ProtocolCode maps a protocol family to the executor's numeric code.
func ProtocolCode(protocol string) (uint8, error) {
	switch strings.ToLower(protocol) {
	case "uniswap_v3":
		return 0, nil
	case "sushiswap":
		return 1, nil
	case "dodo":
		return 2, nil
	case "camelot":
		return 3, nil
	default:
		return 0, fmt.Errorf("%w: %w: %q", model.ErrValidation, model.ErrUnknownProtocol, protocol)
	}
}

func buildTwoHop(opp model.Opportunity, sim *model.SimulationResult, slippage uint64, initiator, beneficiary common.Address) (model.BuildResult, error) {
	if err := validateLegs(opp.Legs, 2, 2, true); err != nil {
		return model.BuildResult{}, err
	}
	minOut1, err := MinAmountOut(sim.HopOut[0], slippage, sim.GasEstimate)
	if err != nil {
		return model.BuildResult{}, fmt.Errorf("hop 1: %w", err)
	}
	minOut2, err := MinAmountOut(sim.HopOut[1], slippage, sim.GasEstimate)
	if err != nil {
		return model.BuildResult{}, fmt.Errorf("hop 2: %w", err)
	}

	legA, legB := opp.Legs[0], opp.Legs[1]
	return model.BuildResult{
		Strategy:     model.StrategyTwoHop,
		FunctionName: FunctionTwoHop,
		ParamsType:   TwoHopParamsType,
		Params: TwoHopParams{
			Initiator:         initiator,
			Beneficiary:       beneficiary,
			TokenIntermediate: legA.TokenOut,
			PoolA:             legA.Pool,
			FeeA:              feeInt(legA.Fee),
			PoolB:             legB.Pool,
			FeeB:              feeInt(legB.Fee),
			AmountOutMinimum1: minOut1,
			AmountOutMinimum2: minOut2,
		},
		BorrowToken:  legA.TokenIn,
		BorrowAmount: new(big.Int).Set(sim.AmountIn),
		MinAmountOut: minOut2,
	}, nil
}

func buildTriangular(opp model.Opportunity, sim *model.SimulationResult, slippage uint64, initiator, beneficiary common.Address) (model.BuildResult, error) {
	if err := validateLegs(opp.Legs, 3, 3, true); err != nil {
		return model.BuildResult{}, err
	}
	for i, leg := range opp.Legs {
		if leg.Fee == 0 {
			return model.BuildResult{}, fmt.Errorf("%w: triangular leg %d has no fee tier", model.ErrValidation, i)
		}
	}
	minOut, err := MinAmountOut(sim.AmountOut(), slippage, sim.GasEstimate)
	if err != nil {
		return model.BuildResult{}, fmt.Errorf("final hop: %w", err)
	}

	tokens := make([]common.Address, 0, len(opp.Legs)+1)
	fees := make([]uint32, 0, len(opp.Legs))
	for _, leg := range opp.Legs {
		tokens = append(tokens, leg.TokenIn)
		fees = append(fees, leg.Fee)
	}
	tokens = append(tokens, opp.Legs[len(opp.Legs)-1].TokenOut)
	path, err := dex.EncodePath(tokens, fees)
	if err != nil {
		return model.BuildResult{}, fmt.Errorf("%w: %w", model.ErrValidation, err)
	}

	return model.BuildResult{
		Strategy:     model.StrategyTriangular,
		FunctionName: FunctionTriangular,
		ParamsType:   TriangularParamsType,
		Params: TriangularParams{
			Initiator:        initiator,
			Beneficiary:      beneficiary,
			Path:             path,
			AmountOutMinimum: minOut,
		},
		BorrowToken:  opp.Legs[0].TokenIn,
		BorrowAmount: new(big.Int).Set(sim.AmountIn),
		MinAmountOut: minOut,
	}, nil
}

func buildFlashLoan(opp model.Opportunity, sim *model.SimulationResult, slippage uint64, initiator, beneficiary common.Address) (model.BuildResult, error) {
	if err := validateLegs(opp.Legs, 2, 0, false); err != nil {
		return model.BuildResult{}, err
	}

	steps := make([]FlashLoanStep, 0, len(opp.Legs))
	for i, leg := range opp.Legs {
		code, err := ProtocolCode(leg.Protocol)
		if err != nil {
			return model.BuildResult{}, fmt.Errorf("leg %d: %w", i, err)
		}
		steps = append(steps, FlashLoanStep{
			Protocol: code,
			Pool:     leg.Pool,
			TokenIn:  leg.TokenIn,
			TokenOut: leg.TokenOut,
			Fee:      feeInt(leg.Fee),
			MinOut:   new(big.Int),
		})
	}
	minOut, err := MinAmountOut(sim.AmountOut(), slippage, sim.GasEstimate)
	if err != nil {
		return model.BuildResult{}, fmt.Errorf("final hop: %w", err)
	}
	steps[len(steps)-1].MinOut = minOut

	return model.BuildResult{
		Strategy:     model.StrategyFlashLoan,
		FunctionName: FunctionFlashLoan,
		ParamsType:   FlashLoanParamsType,
		Params: FlashLoanParams{
			Initiator:   initiator,
			Beneficiary: beneficiary,
			Steps:       steps,
		},
		BorrowToken:  opp.Legs[0].TokenIn,
		BorrowAmount: new(big.Int).Set(sim.AmountIn),
		MinAmountOut: minOut,
	}, nil
}

func feeInt(fee uint32) *big.Int {
	return new(big.Int).SetUint64(uint64(fee))
}
