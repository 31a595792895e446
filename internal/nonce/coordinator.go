// Package nonce hands out transaction nonces for one signing address. All
// concurrent executions share a Coordinator, which is the only place the
// cursor is read or written.
package nonce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"arbcore/internal/model"
)

const defaultResyncTimeout = 15 * time.Second

// TxCounter reports the chain's transaction counts for an address.
type TxCounter interface {
	Address() common.Address
	TransactionCount(ctx context.Context, mode model.CountMode) (uint64, error)
}

type Coordinator struct {
	src           TxCounter
	logger        *zap.Logger
	resyncTimeout time.Duration

	mu     sync.Mutex
	ready  bool
	cursor uint64
}

func NewCoordinator(src TxCounter, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{src: src, logger: logger, resyncTimeout: defaultResyncTimeout}
}

// Next returns the nonce to use and advances the cursor. The first call
// adopts the confirmed count; every call jumps forward to the pending count
// when another sender got ahead.
func (c *Coordinator) Next(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		confirmed, err := c.src.TransactionCount(ctx, model.CountLatest)
		if err != nil {
			return 0, fmt.Errorf("confirmed count for %s: %w", c.src.Address().Hex(), err)
		}
		c.cursor = confirmed
		c.ready = true
	}

	pending, err := c.src.TransactionCount(ctx, model.CountPending)
	if err != nil {
		return 0, fmt.Errorf("pending count for %s: %w", c.src.Address().Hex(), err)
	}
	if pending > c.cursor {
		c.logger.Info("nonce cursor jumped to pending count",
			zap.String("signer", c.src.Address().Hex()),
			zap.Uint64("from", c.cursor),
			zap.Uint64("to", pending),
		)
		c.cursor = pending
	}

	next := c.cursor
	c.cursor++
	return next, nil
}

// Resync discards the cursor and reloads it from the confirmed count.
func (c *Coordinator) Resync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	confirmed, err := c.src.TransactionCount(ctx, model.CountLatest)
	if err != nil {
		c.ready = false
		return fmt.Errorf("resync %s: %w", c.src.Address().Hex(), err)
	}
	c.logger.Info("nonce cursor resynced",
		zap.String("signer", c.src.Address().Hex()),
		zap.Uint64("from", c.cursor),
		zap.Uint64("to", confirmed),
	)
	c.cursor = confirmed
	c.ready = true
	return nil
}

// ResyncAsync runs Resync in the background. The returned channel closes
// when it finishes.
func (c *Coordinator) ResyncAsync() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), c.resyncTimeout)
		defer cancel()
		if err := c.Resync(ctx); err != nil {
			c.logger.Warn("nonce resync failed", zap.Error(err))
		}
	}()
	return done
}

// Cursor returns the next nonce that would be handed out and whether the
// coordinator has been initialized.
func (c *Coordinator) Cursor() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor, c.ready
}
