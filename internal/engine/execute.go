package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"arbcore/internal/cache"
	"arbcore/internal/model"
	"arbcore/internal/pathbuilder"
)

// execute runs one opportunity from simulation to a resolved bundle. tried
// reports whether a bundle was handed to a venue.
func (r *Runner) execute(ctx context.Context, opp model.Opportunity) (included, tried bool, err error) {
	logger := r.logger.With(zap.String("id", opp.ID), zap.Stringer("strategy", opp.Strategy), zap.Stringer("pair", opp.Pair))

	if !opp.Executable() {
		logger.Info("cross-venue opportunity reported",
			zap.String("estimated_profit", opp.EstimatedProfit.String()),
			zap.Uint64("spread_bps", opp.SpreadBps),
		)
		return false, false, nil
	}
	if opp.BorrowAmount == nil || opp.BorrowAmount.Sign() <= 0 {
		return false, false, fmt.Errorf("%w: opportunity has no borrow amount", model.ErrValidation)
	}

	release, err := r.deps.Locks.Acquire(ctx, opp.RouteKey(), r.cfg.LockTTL)
	if errors.Is(err, cache.ErrLockHeld) {
		logger.Debug("route busy, skipping")
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("route lock: %w", err)
	}
	defer release()

	sim, err := r.deps.Simulator.Simulate(ctx, opp.Legs, opp.BorrowAmount)
	if err != nil {
		return false, false, fmt.Errorf("simulate: %w", err)
	}
	opp = opp.WithSimulatedProfit(sim.Profit())
	if opp.SimulatedProfit == nil || opp.SimulatedProfit.Sign() <= 0 {
		logger.Info("unprofitable after simulation",
			zap.String("estimated_profit", opp.EstimatedProfit.String()),
			zap.String("simulated_profit", fmt.Sprint(opp.SimulatedProfit)),
		)
		return false, false, nil
	}

	build, err := pathbuilder.Build(opp, sim, r.cfg.Build)
	if err != nil {
		return false, false, fmt.Errorf("build: %w", err)
	}
	data, err := r.deps.Encoder.EncodeBuild(build)
	if err != nil {
		return false, false, err
	}
	gas := r.estimateGas(ctx, opp, logger)

	head, err := r.deps.Chain.LatestBlockNumber(ctx)
	if err != nil {
		return false, false, fmt.Errorf("latest block: %w", err)
	}
	tip, feeCap, err := r.fees(ctx)
	if err != nil {
		return false, false, err
	}

	nonce, err := r.deps.Nonces.Next(ctx)
	if err != nil {
		return false, false, fmt.Errorf("next nonce: %w", err)
	}

	executor := r.cfg.Executor
	bundle := model.Bundle{
		TargetBlock: head + 1,
		Txs: []model.BundleTx{{
			Signer: r.cfg.Signer,
			Tx: &types.DynamicFeeTx{
				ChainID:   r.cfg.ChainID,
				Nonce:     nonce,
				GasTipCap: tip,
				GasFeeCap: feeCap,
				Gas:       gas,
				To:        &executor,
				Data:      data,
			},
		}},
	}

	v, ok := r.deps.Venues.Get(opp.Legs[0].Venue)
	if !ok {
		return false, false, fmt.Errorf("%w: venue %s not registered", model.ErrValidation, opp.Legs[0].Venue)
	}
	logger.Info("submitting bundle",
		zap.Uint64("nonce", nonce),
		zap.Uint64("target_block", bundle.TargetBlock),
		zap.Uint64("gas", gas),
		zap.String("simulated_profit", opp.SimulatedProfit.String()),
	)
	included, err = v.Execute(ctx, bundle)
	if err != nil {
		if errors.Is(err, model.ErrNonceRejected) {
			logger.Info("nonce rejected, resyncing", zap.Uint64("nonce", nonce))
			r.deps.Nonces.ResyncAsync()
		}
		return false, true, fmt.Errorf("execute on %s: %w", v.ID(), err)
	}
	logger.Info("bundle resolved", zap.Bool("included", included))
	return included, true, nil
}

// estimateGas sizes the call with a gas-estimation build, which carries zero
// minimum outputs, and falls back to the configured limit.
func (r *Runner) estimateGas(ctx context.Context, opp model.Opportunity, logger *zap.Logger) uint64 {
	build, err := pathbuilder.Build(opp, model.EstimationSimulation(len(opp.Legs)), r.cfg.Build)
	if err != nil {
		logger.Debug("estimation build failed", zap.Error(err))
		return r.cfg.GasLimitFallback
	}
	data, err := r.deps.Encoder.EncodeBuild(build)
	if err != nil {
		logger.Debug("estimation encode failed", zap.Error(err))
		return r.cfg.GasLimitFallback
	}
	executor := r.cfg.Executor
	gas, err := r.deps.Chain.EstimateGas(ctx, ethereum.CallMsg{From: r.cfg.Signer, To: &executor, Data: data})
	if err != nil || gas == 0 {
		logger.Debug("gas estimation failed, using fallback", zap.Error(err))
		return r.cfg.GasLimitFallback
	}
	return gas + gas/5
}

// fees returns the tip and the fee cap. The tip is the configured priority
// fee, or the node's suggestion when none is set. The cap allows the base fee
// to double before the target block.
func (r *Runner) fees(ctx context.Context) (tip, feeCap *big.Int, err error) {
	if r.cfg.PriorityFee != nil && r.cfg.PriorityFee.Sign() > 0 {
		tip = new(big.Int).Set(r.cfg.PriorityFee)
	} else if tip, err = r.deps.Chain.SuggestGasTipCap(ctx); err != nil {
		return nil, nil, fmt.Errorf("suggest tip: %w", err)
	}

	header, err := r.deps.Chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("latest header: %w", err)
	}
	feeCap = new(big.Int).Set(tip)
	if header.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(header.BaseFee, big.NewInt(2)))
	}
	return tip, feeCap, nil
}
