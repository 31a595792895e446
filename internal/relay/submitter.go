package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"arbcore/internal/chain"
	"arbcore/internal/model"
)

// Relay is the private relay as seen by the submitter.
type Relay interface {
	Simulate(ctx context.Context, txs []SignedTx, block uint64) (SimulationResult, error)
	Send(ctx context.Context, txs []SignedTx, block uint64) (Handle, error)
	Resolve(ctx context.Context, handle Handle) (model.Inclusion, error)
}

// TxSigner signs transactions for one address.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.DynamicFeeTx) (*types.Transaction, error)
}

// Submitter signs, simulates and sends bundles. It implements
// venue.BundleSubmitter.
type Submitter struct {
	relay   Relay
	signers map[common.Address]TxSigner
	logger  *zap.Logger
}

func NewSubmitter(relay Relay, logger *zap.Logger, signers ...TxSigner) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	bySigner := make(map[common.Address]TxSigner, len(signers))
	for _, s := range signers {
		bySigner[s.Address()] = s
	}
	return &Submitter{relay: relay, signers: bySigner, logger: logger}
}

// Submit returns true only when the bundle was included in its target
// block. A bundle that fails simulation is never sent. Nothing is retried.
//
// A simulation refused for its nonce, "nonce too high" included, comes back
// wrapping model.ErrNonceRejected so the caller resyncs. Bundles that were
// sent but never mined still advance the cursor, and the relay's too-high
// refusal is the only signal that the gap exists. A NonceConflict resolution
// is reported as false without that error.
func (s *Submitter) Submit(ctx context.Context, bundle model.Bundle) (bool, error) {
	if len(bundle.Txs) == 0 {
		return false, fmt.Errorf("%w: empty bundle", model.ErrValidation)
	}

	signed := make([]SignedTx, 0, len(bundle.Txs))
	for i, btx := range bundle.Txs {
		signer, ok := s.signers[btx.Signer]
		if !ok {
			return false, fmt.Errorf("%w: no signer for %s", model.ErrValidation, btx.Signer.Hex())
		}
		tx, err := signer.SignTx(btx.Tx)
		if err != nil {
			return false, fmt.Errorf("sign bundle tx %d: %w", i, err)
		}
		signed = append(signed, SignedTx{Signer: btx.Signer, Tx: tx})
	}

	logger := s.logger.With(zap.Uint64("target_block", bundle.TargetBlock), zap.Int("txs", len(signed)))

	sim, err := s.relay.Simulate(ctx, signed, bundle.TargetBlock)
	if err != nil {
		logger.Warn("bundle simulation error", zap.Error(err))
		return false, err
	}
	if sim.Reverted() {
		reason := strings.Join(sim.Failures, "; ")
		logger.Warn("bundle simulation reverted", zap.String("reason", reason))
		if chain.IsNonceRejectionMessage(reason) {
			return false, fmt.Errorf("%w: %w: %s", model.ErrSimulationFailed, model.ErrNonceRejected, reason)
		}
		return false, fmt.Errorf("%w: %s", model.ErrSimulationFailed, reason)
	}

	handle, err := s.relay.Send(ctx, signed, bundle.TargetBlock)
	if err != nil {
		logger.Warn("bundle send failed", zap.Error(err))
		return false, err
	}
	logger = logger.With(zap.String("bundle", handle.BundleHash))
	logger.Info("bundle sent", zap.Uint64("sim_gas_used", sim.GasUsed))

	inclusion, err := s.relay.Resolve(ctx, handle)
	if err != nil {
		logger.Warn("bundle resolution failed", zap.Error(err))
		return false, fmt.Errorf("%w: resolve: %w", model.ErrSubmission, err)
	}
	logger.Info("bundle resolved", zap.Stringer("inclusion", inclusion))
	return inclusion == model.Included, nil
}
