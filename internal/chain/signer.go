package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"arbcore/internal/model"
)

// AccountBackend is the slice of the RPC client a signer needs.
type AccountBackend interface {
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// LocalSigner signs with an in-memory ECDSA key.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	signer  types.Signer
	backend AccountBackend
}

// NewLocalSigner parses a hex private key for the given chain.
func NewLocalSigner(privateKeyHex string, chainID *big.Int, backend AccountBackend) (*LocalSigner, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain/signer: chain id is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain/signer: parse key: %w", err)
	}
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(chainID),
		backend: backend,
	}, nil
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

// TransactionCount returns the confirmed or pending transaction count.
func (s *LocalSigner) TransactionCount(ctx context.Context, mode model.CountMode) (uint64, error) {
	if s.backend == nil {
		return 0, fmt.Errorf("chain/signer: no backend")
	}
	if mode == model.CountPending {
		return s.backend.PendingNonceAt(ctx, s.address)
	}
	return s.backend.NonceAt(ctx, s.address, nil)
}

// SignTx signs an EIP-1559 transaction.
func (s *LocalSigner) SignTx(tx *types.DynamicFeeTx) (*types.Transaction, error) {
	signed, err := types.SignNewTx(s.key, s.signer, tx)
	if err != nil {
		return nil, fmt.Errorf("chain/signer: sign nonce %d: %w", tx.Nonce, err)
	}
	return signed, nil
}

// SendSigned broadcasts a signed transaction. Nonce refusals are wrapped with
// model.ErrNonceRejected.
func (s *LocalSigner) SendSigned(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	if s.backend == nil {
		return common.Hash{}, fmt.Errorf("chain/signer: no backend")
	}
	if err := s.backend.SendTransaction(ctx, tx); err != nil {
		if IsNonceRejectionMessage(err.Error()) {
			return common.Hash{}, fmt.Errorf("%w: nonce %d: %w", model.ErrNonceRejected, tx.Nonce(), err)
		}
		return common.Hash{}, fmt.Errorf("send tx nonce %d: %w", tx.Nonce(), err)
	}
	return tx.Hash(), nil
}
