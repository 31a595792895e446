package detector

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"arbcore/internal/dex"
	"arbcore/internal/model"
)

var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// FindSpatial compares every unordered pair of pool quotes listing the same
// pair on different venues. The cheaper venue becomes the buy leg.
func (d *Detector) FindSpatial(quotes []model.Quote) []model.Opportunity {
	var out []model.Opportunity
	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			if opp, ok := d.compareSpatial(quotes[i], quotes[j]); ok {
				out = append(out, opp)
			}
		}
	}
	return out
}

func (d *Detector) compareSpatial(a, b model.Quote) (model.Opportunity, bool) {
	if a.Pair != b.Pair || a.Venue == b.Venue {
		return model.Opportunity{}, false
	}
	baseA, quoteA := baseToken(a), a.QuoteToken()
	if baseA != baseToken(b) || quoteA != b.QuoteToken() {
		d.logger.Debug("pair tokens differ between venues",
			zap.String("pair", a.Pair.String()),
			zap.String("venue_a", a.Venue),
			zap.String("venue_b", b.Venue),
		)
		return model.Opportunity{}, false
	}

	ra, okA := orientedSqrt(a)
	rb, okB := orientedSqrt(b)
	if !okA || !okB {
		return model.Opportunity{}, false
	}

	// Cross-multiplied so both sides share one denominator and stay exact.
	lo, hi := a, b
	sqrtLo, sqrtHi := ra.cross(rb)
	if sqrtLo.Cmp(sqrtHi) > 0 {
		lo, hi = b, a
		sqrtLo, sqrtHi = sqrtHi, sqrtLo
	}

	if dex.ApproxSpreadBps(sqrtLo, sqrtHi) < float64(d.cfg.ThresholdBps)/2 {
		return model.Opportunity{}, false
	}
	priceLo, priceHi := dex.PriceX192(sqrtLo), dex.PriceX192(sqrtHi)
	if !dex.ExceedsThreshold(priceLo, priceHi, d.cfg.ThresholdBps) {
		return model.Opportunity{}, false
	}

	profit := d.spatialProfit(lo, hi, baseA, quoteA)
	if profit == nil {
		d.logger.Debug("fees consume the spread",
			zap.String("pair", a.Pair.String()),
			zap.String("buy", lo.Venue),
			zap.String("sell", hi.Venue),
		)
		return model.Opportunity{}, false
	}

	legs := []model.Leg{
		poolLeg(lo, quoteA, baseA),
		poolLeg(hi, baseA, quoteA),
	}
	strategy := model.StrategyTwoHop
	if !strings.EqualFold(lo.Protocol, hi.Protocol) {
		strategy = model.StrategyFlashLoan
	}
	opp := d.opportunity(strategy, a.Pair, legs, dex.SpreadBps(priceLo, priceHi), profit)
	opp.BorrowAmount = new(big.Int).Set(d.cfg.TradeSize)
	return opp, true
}

// spatialProfit walks the trade size of quote token through both pools and
// returns the net gain, or nil when fees leave nothing.
func (d *Detector) spatialProfit(lo, hi model.Quote, base, quote common.Address) *big.Int {
	size := d.cfg.TradeSize
	bought, _, ok := dex.SwapQuote(lo, quote, size)
	if !ok {
		return nil
	}
	back, _, ok := dex.SwapQuote(hi, base, bought)
	if !ok {
		return nil
	}
	net := new(big.Int).Sub(back, size)
	if net.Sign() <= 0 {
		return nil
	}
	return net
}

func baseToken(q model.Quote) common.Address {
	if q.BaseIsToken0() {
		return q.Token0
	}
	return q.Token1
}

// sqrtRatio is a sqrt price held as num/den so inversion never rounds.
type sqrtRatio struct {
	num, den *big.Int
}

// cross returns r.num*o.den and o.num*r.den, which order and compare like
// r and o themselves.
func (r sqrtRatio) cross(o sqrtRatio) (*big.Int, *big.Int) {
	return new(big.Int).Mul(r.num, o.den), new(big.Int).Mul(o.num, r.den)
}

// orientedSqrt returns the sqrt price of base in quote terms:
// sqrtPriceX96/2^96 when base is token0, 2^96/sqrtPriceX96 otherwise.
func orientedSqrt(q model.Quote) (sqrtRatio, bool) {
	if q.SqrtPriceX96 == nil || q.SqrtPriceX96.Sign() <= 0 {
		return sqrtRatio{}, false
	}
	if q.BaseIsToken0() {
		return sqrtRatio{num: q.SqrtPriceX96, den: q96}, true
	}
	return sqrtRatio{num: q96, den: q.SqrtPriceX96}, true
}
