package dex

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"arbcore/internal/model"
	"arbcore/internal/venue"
)

// PoolConfig describes one concentrated-liquidity pool venue.
type PoolConfig struct {
	ID        string
	Protocol  string
	Pool      common.Address
	Pair      model.Pair
	BaseToken common.Address
}

// PoolVenue quotes a pool from its slot0 and executes through a bundle
// submitter.
type PoolVenue struct {
	cfg       PoolConfig
	caller    ContractCaller
	metas     *PoolMetaCache
	submitter venue.BundleSubmitter
	chainID   uint64
	logger    *zap.Logger
	now       func() time.Time
}

func NewPoolVenue(cfg PoolConfig, chainID uint64, caller ContractCaller, metas *PoolMetaCache, submitter venue.BundleSubmitter, logger *zap.Logger) *PoolVenue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metas == nil {
		metas = NewPoolMetaCache()
	}
	return &PoolVenue{
		cfg:       cfg,
		caller:    caller,
		metas:     metas,
		submitter: submitter,
		chainID:   chainID,
		logger:    logger,
		now:       time.Now,
	}
}

func (v *PoolVenue) ID() string {
	return v.cfg.ID
}

func (v *PoolVenue) Kind() model.VenueKind {
	return model.VenueKindPool
}

// Quote reads slot0 and liquidity for the configured pool.
func (v *PoolVenue) Quote(ctx context.Context, pair model.Pair) (model.Quote, error) {
	if pair != v.cfg.Pair {
		return model.Quote{}, fmt.Errorf("venue %s does not list %s", v.cfg.ID, pair)
	}

	meta, err := v.meta(ctx)
	if err != nil {
		return model.Quote{}, fmt.Errorf("%w: %s metadata: %w", model.ErrTransientVenue, v.cfg.ID, err)
	}

	poolABI, err := V3PoolABI()
	if err != nil {
		return model.Quote{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := callMethod(ctx, v.caller, v.cfg.Pool, poolABI, "slot0", nil)
	if err != nil {
		return model.Quote{}, fmt.Errorf("%w: %s: %w", model.ErrTransientVenue, v.cfg.ID, err)
	}
	if len(values) < 2 {
		return model.Quote{}, fmt.Errorf("%w: %s: short slot0 result", model.ErrTransientVenue, v.cfg.ID)
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return model.Quote{}, fmt.Errorf("slot0 sqrtPriceX96: %w", err)
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return model.Quote{}, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.Quote{}, fmt.Errorf("slot0 tick: %w", err)
	}

	liquidity := new(big.Int)
	if values, err := callMethod(ctx, v.caller, v.cfg.Pool, poolABI, "liquidity", nil); err == nil {
		if liq, err := asBigInt(values[0]); err == nil {
			liquidity = liq
		}
	} else {
		v.logger.Debug("liquidity call failed", zap.String("venue", v.cfg.ID), zap.Error(err))
	}

	base := v.cfg.BaseToken
	if base == (common.Address{}) {
		base = common.HexToAddress(meta.Token0)
	}

	return model.Quote{
		Venue:        v.cfg.ID,
		Kind:         model.VenueKindPool,
		Pair:         pair,
		Protocol:     v.cfg.Protocol,
		Timestamp:    v.now().UTC(),
		Pool:         v.cfg.Pool,
		Token0:       common.HexToAddress(meta.Token0),
		Token1:       common.HexToAddress(meta.Token1),
		BaseToken:    base,
		Decimals0:    meta.Decimals0,
		Decimals1:    meta.Decimals1,
		SqrtPriceX96: sqrtPrice,
		Liquidity:    liquidity,
		Fee:          meta.Fee,
		Tick:         tick,
	}, nil
}

// Execute hands the bundle to the configured submitter.
func (v *PoolVenue) Execute(ctx context.Context, bundle model.Bundle) (bool, error) {
	if v.submitter == nil {
		return false, fmt.Errorf("%w: %s has no submitter", model.ErrExecutionUnsupported, v.cfg.ID)
	}
	return v.submitter.Submit(ctx, bundle)
}

func (v *PoolVenue) meta(ctx context.Context) (model.PoolMeta, error) {
	if meta, ok := v.metas.Get(v.cfg.Pool); ok {
		return meta, nil
	}
	meta, err := FetchPoolMeta(ctx, v.caller, v.chainID, v.cfg.Pool, v.logger)
	if err != nil {
		return model.PoolMeta{}, err
	}
	v.metas.Set(meta)
	return meta, nil
}
