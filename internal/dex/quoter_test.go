package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"arbcore/internal/model"
)

func TestQuoterChainsHops(t *testing.T) {
	quoterABI, err := QuoterV2ABI()
	if err != nil {
		t.Fatalf("quoter abi: %v", err)
	}
	method := quoterABI.Methods["quoteExactInputSingle"]

	var seenIn []*big.Int
	caller := newFakeCaller()
	caller.handler = func(msg ethereum.CallMsg) ([]byte, error) {
		// static tuple: tokenIn, tokenOut, amountIn, fee, limit
		amountIn := new(big.Int).SetBytes(msg.Data[4+64 : 4+96])
		seenIn = append(seenIn, amountIn)
		out := new(big.Int).Mul(amountIn, big.NewInt(2))
		return method.Outputs.Pack(out, big.NewInt(0), uint32(1), big.NewInt(90000))
	}

	legs := []model.Leg{
		{Venue: "a", Kind: model.VenueKindPool, Protocol: "uniswap_v3", TokenIn: weth, TokenOut: usdc, Fee: 500},
		{Venue: "b", Kind: model.VenueKindPool, Protocol: "uniswap_v3", TokenIn: usdc, TokenOut: weth, Fee: 3000},
	}
	q := NewQuoter(caller, common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"))

	sim, err := q.Simulate(context.Background(), legs, big.NewInt(100))
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if len(sim.HopOut) != 2 || sim.HopOut[0].Int64() != 200 || sim.HopOut[1].Int64() != 400 {
		t.Fatalf("hop outputs mismatch: %v", sim.HopOut)
	}
	if len(seenIn) != 2 || seenIn[1].Int64() != 200 {
		t.Fatalf("second hop should consume first output: %v", seenIn)
	}
	if sim.GasEstimate {
		t.Fatalf("real simulation flagged as estimate")
	}
}

func TestQuoterRejectsOrderBookLeg(t *testing.T) {
	q := NewQuoter(newFakeCaller(), common.Address{})
	legs := []model.Leg{{Venue: "cex", Kind: model.VenueKindOrderBook, TokenIn: weth, TokenOut: usdc}}
	if _, err := q.Simulate(context.Background(), legs, big.NewInt(1)); !errors.Is(err, model.ErrExecutionUnsupported) {
		t.Fatalf("expected unsupported leg error, got %v", err)
	}
}
