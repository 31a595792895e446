package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"arbcore/internal/detector"
	"arbcore/internal/encoder"
	"arbcore/internal/model"
	"arbcore/internal/nonce"
	"arbcore/internal/pathbuilder"
	"arbcore/internal/venue"
)

var (
	weth   = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	usdc   = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	signer = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	pair   = model.Pair{Base: "WETH", Quote: "USDC"}
)

type fakeVenue struct {
	id      string
	quote   model.Quote
	err     error
	execErr error

	mu      sync.Mutex
	bundles []model.Bundle
}

func (v *fakeVenue) ID() string            { return v.id }
func (v *fakeVenue) Kind() model.VenueKind { return v.quote.Kind }

func (v *fakeVenue) Quote(context.Context, model.Pair) (model.Quote, error) {
	if v.err != nil {
		return model.Quote{}, v.err
	}
	return v.quote, nil
}

func (v *fakeVenue) Execute(_ context.Context, bundle model.Bundle) (bool, error) {
	v.mu.Lock()
	v.bundles = append(v.bundles, bundle)
	v.mu.Unlock()
	if v.execErr != nil {
		return false, v.execErr
	}
	return true, nil
}

func poolVenue(id string, pool byte, sqrt *big.Int) *fakeVenue {
	return &fakeVenue{id: id, quote: model.Quote{
		Venue:        id,
		Kind:         model.VenueKindPool,
		Pair:         pair,
		Protocol:     "uniswap_v3",
		Pool:         common.BytesToAddress([]byte{pool}),
		Token0:       weth,
		Token1:       usdc,
		Decimals0:    18,
		Decimals1:    6,
		SqrtPriceX96: sqrt,
		Fee:          500,
	}}
}

func sqrtForPrice(price int64) *big.Int {
	num := new(big.Int).Mul(big.NewInt(price), big.NewInt(1_000_000))
	num.Lsh(num, 192)
	num.Quo(num, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	return num.Sqrt(num)
}

type fakeSimulator struct {
	gain int64
}

func (s fakeSimulator) Simulate(_ context.Context, legs []model.Leg, amountIn *big.Int) (*model.SimulationResult, error) {
	hops := make([]*big.Int, len(legs))
	for i := range hops {
		hops[i] = big.NewInt(1_000_000)
	}
	hops[len(hops)-1] = new(big.Int).Add(amountIn, big.NewInt(s.gain))
	return &model.SimulationResult{AmountIn: new(big.Int).Set(amountIn), HopOut: hops}, nil
}

type fakeChain struct{}

func (fakeChain) LatestBlockNumber(context.Context) (uint64, error) { return 100, nil }

func (fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(10)}, nil
}

func (fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 0, errors.New("execution reverted")
}

func (fakeChain) SuggestGasTipCap(context.Context) (*big.Int, error) { return big.NewInt(3), nil }

type fakeCounter struct {
	mu      sync.Mutex
	latest  uint64
	resyncs int
}

func (c *fakeCounter) Address() common.Address { return signer }

func (c *fakeCounter) TransactionCount(_ context.Context, mode model.CountMode) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mode == model.CountLatest {
		c.resyncs++
	}
	return c.latest, nil
}

func newTestRunner(t *testing.T, venues []*fakeVenue, sim Simulator, nonces *nonce.Coordinator) *Runner {
	t.Helper()
	enc, err := encoder.New()
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	registry, err := venue.NewRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	targets := make([]Target, 0, len(venues))
	for _, v := range venues {
		if err := registry.Add(v); err != nil {
			t.Fatalf("add venue: %v", err)
		}
		targets = append(targets, Target{Venue: v, Pair: pair})
	}

	cfg := RunConfig{
		ChainID:  big.NewInt(42161),
		Executor: common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		Signer:   signer,
		Build: pathbuilder.Params{
			SlippageBps: 50,
			Initiator:   signer.Hex(),
			Beneficiary: signer.Hex(),
		},
		GasLimitFallback: 700000,
		PriorityFee:      big.NewInt(2),
		RetryBaseDelay:   time.Millisecond,
		Targets:          targets,
	}
	deps := Deps{
		Venues:    registry,
		Detector:  detector.New(detector.Config{ThresholdBps: 10, TradeSize: big.NewInt(1000_000000)}, nil),
		Simulator: sim,
		Encoder:   enc,
		Nonces:    nonces,
		Chain:     fakeChain{},
	}
	return NewRunner(cfg, deps, nil)
}

func TestCollectIsolatesFailures(t *testing.T) {
	a := poolVenue("a", 1, sqrtForPrice(3000))
	broken := poolVenue("broken", 2, sqrtForPrice(3000))
	broken.err = fmt.Errorf("%w: rpc timeout", model.ErrTransientVenue)
	c := poolVenue("c", 3, sqrtForPrice(3100))

	r := newTestRunner(t, []*fakeVenue{a, broken, c}, fakeSimulator{}, nil)
	quotes := r.Collect(context.Background(), r.cfg.Targets)
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	if quotes[0].Venue != "a" || quotes[1].Venue != "c" {
		t.Fatalf("unexpected order: %s, %s", quotes[0].Venue, quotes[1].Venue)
	}
}

func TestRunCycleExecutesOpportunity(t *testing.T) {
	cheap := poolVenue("cheap", 1, sqrtForPrice(3000))
	rich := poolVenue("rich", 2, sqrtForPrice(3300))
	counter := &fakeCounter{latest: 10}

	r := newTestRunner(t, []*fakeVenue{cheap, rich}, fakeSimulator{gain: 5_000000}, nonce.NewCoordinator(counter, nil))
	report, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if len(report.Opportunities) != 1 || report.Attempted != 1 || report.Included != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(cheap.bundles) != 1 || len(rich.bundles) != 0 {
		t.Fatalf("bundle should go to the buy venue, got %d/%d", len(cheap.bundles), len(rich.bundles))
	}

	bundle := cheap.bundles[0]
	if bundle.TargetBlock != 101 {
		t.Fatalf("expected target 101, got %d", bundle.TargetBlock)
	}
	tx := bundle.Txs[0].Tx
	if tx.Nonce != 10 || tx.Gas != 700000 {
		t.Fatalf("unexpected nonce/gas: %d/%d", tx.Nonce, tx.Gas)
	}
	if tx.GasFeeCap.Int64() != 22 || tx.GasTipCap.Int64() != 2 {
		t.Fatalf("unexpected fees: cap %s tip %s", tx.GasFeeCap, tx.GasTipCap)
	}
	if len(tx.Data) < 4 {
		t.Fatalf("missing calldata")
	}
}

func TestRunCycleFallsBackToSuggestedTip(t *testing.T) {
	cheap := poolVenue("cheap", 1, sqrtForPrice(3000))
	rich := poolVenue("rich", 2, sqrtForPrice(3300))

	r := newTestRunner(t, []*fakeVenue{cheap, rich}, fakeSimulator{gain: 5_000000}, nonce.NewCoordinator(&fakeCounter{}, nil))
	r.cfg.PriorityFee = nil
	if _, err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if len(cheap.bundles) != 1 {
		t.Fatalf("expected one bundle, got %d", len(cheap.bundles))
	}
	tx := cheap.bundles[0].Txs[0].Tx
	if tx.GasTipCap.Int64() != 3 || tx.GasFeeCap.Int64() != 23 {
		t.Fatalf("unexpected fees: cap %s tip %s", tx.GasFeeCap, tx.GasTipCap)
	}
}

func TestRunCycleSkipsUnprofitableSimulation(t *testing.T) {
	cheap := poolVenue("cheap", 1, sqrtForPrice(3000))
	rich := poolVenue("rich", 2, sqrtForPrice(3300))

	r := newTestRunner(t, []*fakeVenue{cheap, rich}, fakeSimulator{gain: -1}, nonce.NewCoordinator(&fakeCounter{}, nil))
	report, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if report.Attempted != 0 || len(cheap.bundles) != 0 {
		t.Fatalf("nothing should be submitted: %+v", report)
	}
}

func TestRunCycleResyncsOnNonceRejection(t *testing.T) {
	cheap := poolVenue("cheap", 1, sqrtForPrice(3000))
	cheap.execErr = fmt.Errorf("%w: %w: nonce too low", model.ErrSimulationFailed, model.ErrNonceRejected)
	rich := poolVenue("rich", 2, sqrtForPrice(3300))
	counter := &fakeCounter{latest: 4}
	coord := nonce.NewCoordinator(counter, nil)

	r := newTestRunner(t, []*fakeVenue{cheap, rich}, fakeSimulator{gain: 1}, coord)
	report, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected one failure, got %+v", report)
	}

	deadline := time.Now().Add(time.Second)
	for {
		counter.mu.Lock()
		resyncs := counter.resyncs
		counter.mu.Unlock()
		// one read on first Next, one from the resync
		if resyncs >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("resync was not triggered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRunCycleReportsCrossVenueOnly(t *testing.T) {
	pool := poolVenue("uni", 1, sqrtForPrice(3000))
	book := &fakeVenue{id: "book"}
	book.quote = model.Quote{Venue: "book", Kind: model.VenueKindOrderBook, Pair: pair}
	book.quote.Bid, book.quote.Ask = decimal.NewFromInt(3100), decimal.NewFromInt(3101)

	r := newTestRunner(t, []*fakeVenue{pool, book}, fakeSimulator{gain: 1}, nonce.NewCoordinator(&fakeCounter{}, nil))
	report, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if len(report.Opportunities) != 1 || report.Attempted != 0 {
		t.Fatalf("cross-venue opportunity must only be reported: %+v", report)
	}
}

func TestScanRequiresTargets(t *testing.T) {
	r := newTestRunner(t, nil, fakeSimulator{}, nil)
	if _, err := r.Scan(context.Background()); err == nil {
		t.Fatalf("expected error without targets")
	}
}
