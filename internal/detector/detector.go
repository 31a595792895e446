// Package detector compares venue quotes and emits arbitrage candidates.
// Decisions use exact integer math on pool prices; floats only pre-filter.
package detector

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbcore/internal/model"
)

const DefaultThresholdBps = 10

// Config holds detection settings. TradeSize is in smallest units of the
// token a route starts from; CrossVenueSize is in base-asset units.
type Config struct {
	ThresholdBps   uint64
	TradeSize      *big.Int
	CrossVenueSize decimal.Decimal
}

// Cycle names three pool venues forming a triangular route from Start.
type Cycle struct {
	Venues [3]string
	Start  common.Address
}

type Detector struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func New(cfg Config, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TradeSize == nil || cfg.TradeSize.Sign() <= 0 {
		cfg.TradeSize = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	}
	if !cfg.CrossVenueSize.IsPositive() {
		cfg.CrossVenueSize = decimal.NewFromInt(1)
	}
	return &Detector{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Detect runs every comparison over one cycle's quotes. Cycles whose venues
// have no quote this round are skipped.
func (d *Detector) Detect(quotes []model.Quote, cycles []Cycle) []model.Opportunity {
	var pools, books []model.Quote
	byVenue := make(map[string]model.Quote)
	for _, q := range quotes {
		switch q.Kind {
		case model.VenueKindPool:
			pools = append(pools, q)
			byVenue[q.Venue] = q
		case model.VenueKindOrderBook:
			books = append(books, q)
		}
	}

	out := d.FindSpatial(pools)
	out = append(out, d.FindCrossVenue(books, pools)...)
	for _, c := range cycles {
		var cycle [3]model.Quote
		complete := true
		for i, id := range c.Venues {
			q, ok := byVenue[id]
			if !ok {
				complete = false
				break
			}
			cycle[i] = q
		}
		if !complete {
			d.logger.Debug("triangular cycle incomplete", zap.Strings("venues", c.Venues[:]))
			continue
		}
		if opp, ok := d.FindTriangular(cycle, c.Start); ok {
			out = append(out, opp)
		}
	}
	return out
}

func (d *Detector) opportunity(strategy model.Strategy, pair model.Pair, legs []model.Leg, spread uint64, profit *big.Int) model.Opportunity {
	return model.Opportunity{
		ID:              d.newID(),
		Strategy:        strategy,
		Pair:            pair,
		Legs:            legs,
		SpreadBps:       spread,
		EstimatedProfit: profit,
		DetectedAt:      d.now().UTC(),
	}
}

func sideFor(q model.Quote, tokenOut common.Address) model.Side {
	base := q.BaseToken
	if base == (common.Address{}) {
		base = q.Token0
	}
	if tokenOut == base {
		return model.SideBuy
	}
	return model.SideSell
}

func poolLeg(q model.Quote, tokenIn, tokenOut common.Address) model.Leg {
	return model.Leg{
		Side:     sideFor(q, tokenOut),
		Venue:    q.Venue,
		Kind:     model.VenueKindPool,
		Protocol: q.Protocol,
		Pool:     q.Pool,
		TokenIn:  tokenIn,
		TokenOut: tokenOut,
		Fee:      q.Fee,
	}
}
