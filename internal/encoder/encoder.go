// Package encoder produces executor calldata from build results. It holds
// the executor ABI and the parameter tuple types, both parsed once, and
// never touches the network.
package encoder

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"arbcore/internal/model"
)

const executorABIJSON = `[
  {"inputs": [{"name": "borrowToken", "type": "address"}, {"name": "borrowAmount", "type": "uint256"}, {"name": "params", "type": "bytes"}], "name": "executeTwoHop", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "borrowToken", "type": "address"}, {"name": "borrowAmount", "type": "uint256"}, {"name": "params", "type": "bytes"}], "name": "executeTriangular", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "borrowToken", "type": "address"}, {"name": "borrowAmount", "type": "uint256"}, {"name": "params", "type": "bytes"}], "name": "executeFlashLoan", "outputs": [], "stateMutability": "nonpayable", "type": "function"}
]`

var paramTuples = [][]abi.ArgumentMarshaling{
	{
		{Name: "initiator", Type: "address"},
		{Name: "beneficiary", Type: "address"},
		{Name: "tokenIntermediate", Type: "address"},
		{Name: "poolA", Type: "address"},
		{Name: "feeA", Type: "uint24"},
		{Name: "poolB", Type: "address"},
		{Name: "feeB", Type: "uint24"},
		{Name: "amountOutMinimum1", Type: "uint256"},
		{Name: "amountOutMinimum2", Type: "uint256"},
	},
	{
		{Name: "initiator", Type: "address"},
		{Name: "beneficiary", Type: "address"},
		{Name: "path", Type: "bytes"},
		{Name: "amountOutMinimum", Type: "uint256"},
	},
	{
		{Name: "initiator", Type: "address"},
		{Name: "beneficiary", Type: "address"},
		{Name: "steps", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "protocol", Type: "uint8"},
			{Name: "pool", Type: "address"},
			{Name: "tokenIn", Type: "address"},
			{Name: "tokenOut", Type: "address"},
			{Name: "fee", Type: "uint24"},
			{Name: "minOut", Type: "uint256"},
		}},
	},
}

// Error reports a failed encoding with the function and the Go shapes of
// the arguments it was given.
type Error struct {
	Function string
	Shapes   []string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("encode %s(%s): %v", e.Function, strings.Join(e.Shapes, ", "), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Encoder packs executor calls.
type Encoder struct {
	executor abi.ABI
	params   map[string]abi.Arguments
}

func New() (*Encoder, error) {
	executor, err := abi.JSON(strings.NewReader(executorABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse executor abi: %w", err)
	}

	params := make(map[string]abi.Arguments, len(paramTuples))
	for _, components := range paramTuples {
		typ, err := abi.NewType("tuple", "", components)
		if err != nil {
			return nil, fmt.Errorf("compile params tuple: %w", err)
		}
		params[typ.String()] = abi.Arguments{{Name: "params", Type: typ}}
	}
	return &Encoder{executor: executor, params: params}, nil
}

// Encode packs a call to an executor function.
func (e *Encoder) Encode(function string, args ...interface{}) ([]byte, error) {
	if _, ok := e.executor.Methods[function]; !ok {
		return nil, &Error{Function: function, Shapes: shapes(args), Err: fmt.Errorf("function not in executor abi")}
	}
	data, err := e.executor.Pack(function, args...)
	if err != nil {
		return nil, &Error{Function: function, Shapes: shapes(args), Err: err}
	}
	return data, nil
}

// EncodeParams abi-encodes a parameter struct against a known tuple type.
func (e *Encoder) EncodeParams(typeDescriptor string, value interface{}) ([]byte, error) {
	args, ok := e.params[typeDescriptor]
	if !ok {
		return nil, &Error{Function: typeDescriptor, Shapes: shapes([]interface{}{value}), Err: fmt.Errorf("unknown params type")}
	}
	data, err := args.Pack(value)
	if err != nil {
		return nil, &Error{Function: typeDescriptor, Shapes: shapes([]interface{}{value}), Err: err}
	}
	return data, nil
}

// EncodeBuild encodes the params of a build result and wraps them in the
// executor call it names.
func (e *Encoder) EncodeBuild(res model.BuildResult) ([]byte, error) {
	params, err := e.EncodeParams(res.ParamsType, res.Params)
	if err != nil {
		return nil, fmt.Errorf("%s params: %w", res.Strategy, err)
	}
	return e.Encode(res.FunctionName, res.BorrowToken, res.BorrowAmount, params)
}

func shapes(args []interface{}) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if arg == nil {
			out[i] = "nil"
			continue
		}
		out[i] = reflect.TypeOf(arg).String()
	}
	return out
}
