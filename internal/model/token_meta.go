package model

// TokenMeta captures the ERC20 fields a pool venue needs.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}
