// Package cex exposes centralized-exchange order books as venues. External
// market-data fetchers write best bid/ask snapshots into redis hashes; the
// venue only reads them.
package cex

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbcore/internal/model"
)

const defaultMaxAge = 5 * time.Second

// Snapshot is a best bid/ask observation.
type Snapshot struct {
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Volume    decimal.Decimal
	Timestamp time.Time
}

// SnapshotKey is the redis hash holding the latest snapshot of pair on venue.
func SnapshotKey(venueID string, pair model.Pair) string {
	return "quotes:" + venueID + ":" + pair.String()
}

// WriteSnapshot stores a snapshot the way fetchers are expected to.
func WriteSnapshot(ctx context.Context, rdb redis.Cmdable, venueID string, pair model.Pair, snap Snapshot) error {
	fields := map[string]interface{}{
		"bid":    snap.Bid.String(),
		"ask":    snap.Ask.String(),
		"volume": snap.Volume.String(),
		"ts":     strconv.FormatInt(snap.Timestamp.UnixMilli(), 10),
	}
	if err := rdb.HSet(ctx, SnapshotKey(venueID, pair), fields).Err(); err != nil {
		return fmt.Errorf("redis: write snapshot %s %s: %w", venueID, pair, err)
	}
	return nil
}

type Config struct {
	ID       string
	TakerFee decimal.Decimal
	MaxAge   time.Duration
}

// OrderBookVenue quotes from redis snapshots. It cannot execute: order
// placement belongs to the exchange-specific workflow.
type OrderBookVenue struct {
	cfg    Config
	rdb    redis.Cmdable
	logger *zap.Logger
	now    func() time.Time
}

func NewOrderBookVenue(cfg Config, rdb redis.Cmdable, logger *zap.Logger) *OrderBookVenue {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultMaxAge
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderBookVenue{cfg: cfg, rdb: rdb, logger: logger, now: time.Now}
}

func (v *OrderBookVenue) ID() string {
	return v.cfg.ID
}

func (v *OrderBookVenue) Kind() model.VenueKind {
	return model.VenueKindOrderBook
}

func (v *OrderBookVenue) Quote(ctx context.Context, pair model.Pair) (model.Quote, error) {
	snap, err := v.readSnapshot(ctx, pair)
	if err != nil {
		return model.Quote{}, fmt.Errorf("%w: %s %s: %w", model.ErrTransientVenue, v.cfg.ID, pair, err)
	}
	if age := v.now().Sub(snap.Timestamp); age > v.cfg.MaxAge {
		return model.Quote{}, fmt.Errorf("%w: %s %s: snapshot is %s old", model.ErrTransientVenue, v.cfg.ID, pair, age.Truncate(time.Millisecond))
	}
	if !snap.Bid.IsPositive() || !snap.Ask.IsPositive() || snap.Bid.GreaterThan(snap.Ask) {
		return model.Quote{}, fmt.Errorf("%w: %s %s: crossed or empty book bid=%s ask=%s", model.ErrTransientVenue, v.cfg.ID, pair, snap.Bid, snap.Ask)
	}

	return model.Quote{
		Venue:     v.cfg.ID,
		Kind:      model.VenueKindOrderBook,
		Pair:      pair,
		Timestamp: snap.Timestamp.UTC(),
		Bid:       snap.Bid,
		Ask:       snap.Ask,
		Volume:    snap.Volume,
		TakerFee:  v.cfg.TakerFee,
	}, nil
}

func (v *OrderBookVenue) Execute(context.Context, model.Bundle) (bool, error) {
	return false, fmt.Errorf("%w: %s is an order book", model.ErrExecutionUnsupported, v.cfg.ID)
}

var errNoSnapshot = errors.New("no snapshot")

func (v *OrderBookVenue) readSnapshot(ctx context.Context, pair model.Pair) (Snapshot, error) {
	vals, err := v.rdb.HGetAll(ctx, SnapshotKey(v.cfg.ID, pair)).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis: %w", err)
	}
	if len(vals) == 0 {
		return Snapshot{}, errNoSnapshot
	}

	var snap Snapshot
	if snap.Bid, err = decimal.NewFromString(vals["bid"]); err != nil {
		return Snapshot{}, fmt.Errorf("parse bid: %w", err)
	}
	if snap.Ask, err = decimal.NewFromString(vals["ask"]); err != nil {
		return Snapshot{}, fmt.Errorf("parse ask: %w", err)
	}
	if raw, ok := vals["volume"]; ok && raw != "" {
		if snap.Volume, err = decimal.NewFromString(raw); err != nil {
			return Snapshot{}, fmt.Errorf("parse volume: %w", err)
		}
	}
	ms, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse ts: %w", err)
	}
	snap.Timestamp = time.UnixMilli(ms)
	return snap, nil
}
