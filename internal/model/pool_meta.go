package model

import "github.com/ethereum/go-ethereum/common"

// PoolMeta captures immutable pool metadata used to price a pool venue.
type PoolMeta struct {
	ChainID     uint64 `json:"chain_id"`
	Pool        string `json:"pool"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
	Decimals0   uint8  `json:"decimals0"`
	Decimals1   uint8  `json:"decimals1"`
}

func (m PoolMeta) PoolAddress() common.Address {
	return common.HexToAddress(m.Pool)
}
