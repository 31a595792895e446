package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BundleTx pairs an unsigned transaction with the address that must sign it.
type BundleTx struct {
	Signer common.Address
	Tx     *types.DynamicFeeTx
}

// Bundle is an ordered set of transactions targeting one block.
type Bundle struct {
	Txs         []BundleTx
	TargetBlock uint64
}

// Inclusion is the resolved outcome of a submitted bundle.
type Inclusion int

const (
	NotIncluded Inclusion = iota
	Included
	NonceConflict
)

func (i Inclusion) String() string {
	switch i {
	case Included:
		return "included"
	case NonceConflict:
		return "nonce_conflict"
	default:
		return "not_included"
	}
}

// CountMode selects which transaction count a signer reports.
type CountMode int

const (
	CountLatest CountMode = iota
	CountPending
)

func (m CountMode) String() string {
	if m == CountPending {
		return "pending"
	}
	return "latest"
}
