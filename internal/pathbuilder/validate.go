package pathbuilder

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"arbcore/internal/model"
)

func (p Params) addresses() (common.Address, common.Address, error) {
	initiator, err := parseAddress("initiator", p.Initiator)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	beneficiary, err := parseAddress("beneficiary", p.Beneficiary)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return initiator, beneficiary, nil
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s %q is not an address", model.ErrValidation, field, value)
	}
	addr := common.HexToAddress(value)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s is the zero address", model.ErrValidation, field)
	}
	return addr, nil
}

func validateSimulation(opp model.Opportunity, sim *model.SimulationResult) error {
	if sim == nil {
		return fmt.Errorf("%w: simulation result is missing", model.ErrValidation)
	}
	if sim.AmountIn == nil || sim.AmountIn.Sign() <= 0 {
		return fmt.Errorf("%w: simulated input must be positive", model.ErrValidation)
	}
	if len(sim.HopOut) != len(opp.Legs) {
		return fmt.Errorf("%w: simulation has %d hops for %d legs", model.ErrValidation, len(sim.HopOut), len(opp.Legs))
	}
	for i, out := range sim.HopOut {
		if out == nil {
			return fmt.Errorf("%w: simulated output of hop %d is missing", model.ErrValidation, i)
		}
	}
	return nil
}

// validateLegs checks count (max 0 means unbounded), metadata, token
// continuity and that the route returns to the borrowed token.
func validateLegs(legs []model.Leg, min, max int, sameProtocol bool) error {
	if len(legs) < min || (max > 0 && len(legs) > max) {
		return fmt.Errorf("%w: %d legs, strategy needs %s", model.ErrValidation, len(legs), legRange(min, max))
	}
	for i, leg := range legs {
		if err := leg.Validate(); err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
		if leg.Kind != model.VenueKindPool {
			return fmt.Errorf("%w: leg %d on %s is not an on-chain pool", model.ErrValidation, i, leg.Venue)
		}
		if leg.Protocol == "" {
			return fmt.Errorf("%w: leg %d on %s has no protocol", model.ErrValidation, i, leg.Venue)
		}
		if leg.Pool == (common.Address{}) {
			return fmt.Errorf("%w: leg %d on %s has no pool address", model.ErrValidation, i, leg.Venue)
		}
		if needsFeeTier(leg.Protocol) && leg.Fee == 0 {
			return fmt.Errorf("%w: leg %d on %s has no fee tier", model.ErrValidation, i, leg.Venue)
		}
		if sameProtocol && !strings.EqualFold(leg.Protocol, legs[0].Protocol) {
			return fmt.Errorf("%w: leg %d protocol %s differs from %s", model.ErrValidation, i, leg.Protocol, legs[0].Protocol)
		}
		if i > 0 && legs[i-1].TokenOut != leg.TokenIn {
			return fmt.Errorf("%w: leg %d does not continue from leg %d", model.ErrValidation, i, i-1)
		}
	}
	if legs[len(legs)-1].TokenOut != legs[0].TokenIn {
		return fmt.Errorf("%w: route does not return to %s", model.ErrValidation, legs[0].TokenIn.Hex())
	}
	return nil
}

func needsFeeTier(protocol string) bool {
	switch strings.ToLower(protocol) {
	case "uniswap_v3":
		return true
	default:
		return false
	}
}

func legRange(min, max int) string {
	switch {
	case max == 0:
		return fmt.Sprintf("at least %d", min)
	case min == max:
		return fmt.Sprintf("exactly %d", min)
	default:
		return fmt.Sprintf("%d to %d", min, max)
	}
}
