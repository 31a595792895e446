package pathbuilder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Executor entry points, one per strategy.
const (
	FunctionTwoHop     = "executeTwoHop"
	FunctionTriangular = "executeTriangular"
	FunctionFlashLoan  = "executeFlashLoan"
)

// ABI descriptors of the parameter tuples, in canonical form.
const (
	TwoHopParamsType     = "(address,address,address,address,uint24,address,uint24,uint256,uint256)"
	TriangularParamsType = "(address,address,bytes,uint256)"
	FlashLoanParamsType  = "(address,address,(uint8,address,address,address,uint24,uint256)[])"
)

// TwoHopParams is decoded by the executor as
// (initiator, beneficiary, tokenIntermediate, poolA, feeA, poolB, feeB,
// amountOutMinimum1, amountOutMinimum2).
type TwoHopParams struct {
	Initiator         common.Address
	Beneficiary       common.Address
	TokenIntermediate common.Address
	PoolA             common.Address
	FeeA              *big.Int
	PoolB             common.Address
	FeeB              *big.Int
	AmountOutMinimum1 *big.Int
	AmountOutMinimum2 *big.Int
}

// TriangularParams carries the packed A-fee-B-fee-C-fee-A route.
type TriangularParams struct {
	Initiator        common.Address
	Beneficiary      common.Address
	Path             []byte
	AmountOutMinimum *big.Int
}

type FlashLoanStep struct {
	Protocol uint8
	Pool     common.Address
	TokenIn  common.Address
	TokenOut common.Address
	Fee      *big.Int
	MinOut   *big.Int
}

type FlashLoanParams struct {
	Initiator   common.Address
	Beneficiary common.Address
	Steps       []FlashLoanStep
}
