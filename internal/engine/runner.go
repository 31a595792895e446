package engine

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arbcore/internal/cache"
	"arbcore/internal/detector"
	"arbcore/internal/model"
	"arbcore/internal/pathbuilder"
	"arbcore/internal/venue"
)

// RunConfig holds runtime settings for the arbitrage loop.
type RunConfig struct {
	Interval           time.Duration
	FetchConcurrency   int
	ExecuteConcurrency int
	QuoteRetries       int
	RetryBaseDelay     time.Duration
	ChainID            *big.Int
	Executor           common.Address
	Signer             common.Address
	Build              pathbuilder.Params
	GasLimitFallback   uint64
	PriorityFee        *big.Int
	LockTTL            time.Duration
	Targets            []Target
	Cycles             []detector.Cycle
}

// Simulator quotes a route hop by hop.
type Simulator interface {
	Simulate(ctx context.Context, legs []model.Leg, amountIn *big.Int) (*model.SimulationResult, error)
}

// CallEncoder turns a build result into executor calldata.
type CallEncoder interface {
	EncodeBuild(res model.BuildResult) ([]byte, error)
}

// NonceSource hands out nonces for the configured signer.
type NonceSource interface {
	Next(ctx context.Context) (uint64, error)
	ResyncAsync() <-chan struct{}
}

// ChainState is the node access the runner needs to price transactions.
type ChainState interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// Deps are the collaborators of a Runner.
type Deps struct {
	Venues    *venue.Registry
	Detector  *detector.Detector
	Simulator Simulator
	Encoder   CallEncoder
	Nonces    NonceSource
	Chain     ChainState
	Locks     cache.Locker
}

// CycleReport summarizes one detection and execution cycle.
type CycleReport struct {
	Quotes        int
	Opportunities []model.Opportunity
	Attempted     int64
	Included      int64
	Failed        int64
}

// Runner drives detection and execution cycles.
type Runner struct {
	cfg    RunConfig
	deps   Deps
	logger *zap.Logger
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, deps Deps, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 8
	}
	if cfg.ExecuteConcurrency <= 0 {
		cfg.ExecuteConcurrency = 2
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	if deps.Locks == nil {
		deps.Locks = cache.NewMemoryLocker()
	}
	return &Runner{cfg: cfg, deps: deps, logger: logger}
}

// Run executes cycles until ctx is cancelled. A cycle always finishes
// before the next one starts.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.validate(true); err != nil {
		return err
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		started := time.Now()
		report, err := r.RunCycle(ctx)
		if err != nil {
			return err
		}
		r.logger.Info("cycle complete",
			zap.Int("quotes", report.Quotes),
			zap.Int("opportunities", len(report.Opportunities)),
			zap.Int64("attempted", report.Attempted),
			zap.Int64("included", report.Included),
			zap.Int64("failed", report.Failed),
			zap.Duration("took", time.Since(started)),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Scan runs collection and detection only.
func (r *Runner) Scan(ctx context.Context) ([]model.Opportunity, error) {
	if err := r.validate(false); err != nil {
		return nil, err
	}
	quotes := r.Collect(ctx, r.cfg.Targets)
	return r.deps.Detector.Detect(quotes, r.cfg.Cycles), nil
}

// RunCycle collects quotes, detects opportunities and executes them
// concurrently. Per-opportunity failures are logged, not returned.
func (r *Runner) RunCycle(ctx context.Context) (CycleReport, error) {
	if err := ctx.Err(); err != nil {
		return CycleReport{}, err
	}
	quotes := r.Collect(ctx, r.cfg.Targets)
	opps := r.deps.Detector.Detect(quotes, r.cfg.Cycles)
	report := CycleReport{Quotes: len(quotes), Opportunities: opps}

	var attempted, included, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(r.cfg.ExecuteConcurrency)
	for _, opp := range opps {
		g.Go(func() error {
			ok, tried, err := r.execute(ctx, opp)
			if tried {
				attempted.Add(1)
			}
			switch {
			case err != nil:
				failed.Add(1)
				r.logger.Warn("opportunity failed",
					zap.String("id", opp.ID),
					zap.Stringer("strategy", opp.Strategy),
					zap.Stringer("pair", opp.Pair),
					zap.Error(err),
				)
			case ok:
				included.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Attempted = attempted.Load()
	report.Included = included.Load()
	report.Failed = failed.Load()
	return report, nil
}

func (r *Runner) validate(execute bool) error {
	if r.deps.Detector == nil {
		return fmt.Errorf("detector is nil")
	}
	if len(r.cfg.Targets) == 0 {
		return fmt.Errorf("at least one venue target is required")
	}
	if !execute {
		return nil
	}
	switch {
	case r.deps.Venues == nil:
		return fmt.Errorf("venue registry is nil")
	case r.deps.Simulator == nil:
		return fmt.Errorf("simulator is nil")
	case r.deps.Encoder == nil:
		return fmt.Errorf("encoder is nil")
	case r.deps.Nonces == nil:
		return fmt.Errorf("nonce source is nil")
	case r.deps.Chain == nil:
		return fmt.Errorf("chain client is nil")
	case r.cfg.ChainID == nil:
		return fmt.Errorf("chain id is required")
	case r.cfg.Executor == (common.Address{}):
		return fmt.Errorf("executor address is required")
	}
	return nil
}
