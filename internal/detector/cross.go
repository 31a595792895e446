package detector

import (
	"github.com/shopspring/decimal"

	"arbcore/internal/dex"
	"arbcore/internal/model"
)

var (
	one       = decimal.NewFromInt(1)
	bpsFactor = decimal.NewFromInt(10000)
)

// FindCrossVenue checks each order book against each pool listing the same
// pair, in both directions: buy on the book and sell on the pool, and the
// reverse. Per unit, profit is sell*(1-sellFee) - buy*(1+buyFee).
func (d *Detector) FindCrossVenue(books, pools []model.Quote) []model.Opportunity {
	var out []model.Opportunity
	for _, book := range books {
		for _, pool := range pools {
			if book.Pair != pool.Pair {
				continue
			}
			poolPrice := dex.HumanPrice(pool)
			if !poolPrice.IsPositive() {
				continue
			}
			poolFee := dex.FeeFraction(pool.Fee)

			// buy on the book at the ask, sell into the pool
			if opp, ok := d.crossVenue(book, pool, book.Ask, book.TakerFee, poolPrice, poolFee, true); ok {
				out = append(out, opp)
			}
			// buy from the pool, sell on the book at the bid
			if opp, ok := d.crossVenue(book, pool, poolPrice, poolFee, book.Bid, book.TakerFee, false); ok {
				out = append(out, opp)
			}
		}
	}
	return out
}

func (d *Detector) crossVenue(book, pool model.Quote, buy, buyFee, sell, sellFee decimal.Decimal, buyOnBook bool) (model.Opportunity, bool) {
	if !buy.IsPositive() || !sell.IsPositive() {
		return model.Opportunity{}, false
	}
	cost := buy.Mul(one.Add(buyFee))
	proceeds := sell.Mul(one.Sub(sellFee))
	perUnit := proceeds.Sub(cost)
	if !perUnit.IsPositive() {
		return model.Opportunity{}, false
	}

	profit := perUnit.Mul(d.cfg.CrossVenueSize).Shift(int32(pool.QuoteDecimals())).Floor().BigInt()
	if profit.Sign() <= 0 {
		return model.Opportunity{}, false
	}
	spread := sell.Sub(buy).Div(buy).Mul(bpsFactor).Floor()

	base, quote := baseToken(pool), pool.QuoteToken()
	bookBuy := model.Leg{Side: model.SideBuy, Venue: book.Venue, Kind: model.VenueKindOrderBook, TokenIn: quote, TokenOut: base}
	bookSell := model.Leg{Side: model.SideSell, Venue: book.Venue, Kind: model.VenueKindOrderBook, TokenIn: base, TokenOut: quote}

	var legs []model.Leg
	if buyOnBook {
		legs = []model.Leg{bookBuy, poolLeg(pool, base, quote)}
	} else {
		legs = []model.Leg{poolLeg(pool, quote, base), bookSell}
	}
	return d.opportunity(model.StrategyFlashLoan, pool.Pair, legs, clampBps(spread), profit), true
}

func clampBps(v decimal.Decimal) uint64 {
	if !v.IsPositive() {
		return 0
	}
	b := v.BigInt()
	if !b.IsUint64() {
		return ^uint64(0)
	}
	return b.Uint64()
}
