package detector

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"arbcore/internal/dex"
	"arbcore/internal/model"
)

// FindTriangular chains the trade size through three pools starting and
// ending at start. It emits only when the final amount strictly exceeds the
// initial one.
func (d *Detector) FindTriangular(cycle [3]model.Quote, start common.Address) (model.Opportunity, bool) {
	initial := d.cfg.TradeSize
	amount := new(big.Int).Set(initial)
	token := start
	legs := make([]model.Leg, 0, len(cycle))

	for _, q := range cycle {
		if q.Kind != model.VenueKindPool {
			return model.Opportunity{}, false
		}
		out, next, ok := dex.SwapQuote(q, token, amount)
		if !ok || out.Sign() == 0 {
			return model.Opportunity{}, false
		}
		legs = append(legs, poolLeg(q, token, next))
		token, amount = next, out
	}

	if token != start || legs[1].TokenOut == start {
		return model.Opportunity{}, false
	}
	if amount.Cmp(initial) <= 0 {
		return model.Opportunity{}, false
	}

	profit := new(big.Int).Sub(amount, initial)
	spread := new(big.Int).Mul(profit, big.NewInt(10000))
	spread.Quo(spread, initial)
	bps := ^uint64(0)
	if spread.IsUint64() {
		bps = spread.Uint64()
	}
	opp := d.opportunity(model.StrategyTriangular, cycle[0].Pair, legs, bps, profit)
	opp.BorrowAmount = new(big.Int).Set(initial)
	return opp, true
}
