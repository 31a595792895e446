package cex

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbcore/internal/model"
)

var pair = model.Pair{Base: "WETH", Quote: "USDC"}

func newVenue(t *testing.T, now time.Time) (*OrderBookVenue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	v := NewOrderBookVenue(Config{ID: "binance", TakerFee: decimal.RequireFromString("0.001")}, rdb, nil)
	v.now = func() time.Time { return now }
	return v, rdb
}

func TestOrderBookQuote(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	v, rdb := newVenue(t, now)
	ctx := context.Background()

	require.NoError(t, WriteSnapshot(ctx, rdb, "binance", pair, Snapshot{
		Bid:       decimal.RequireFromString("3000.5"),
		Ask:       decimal.RequireFromString("3001"),
		Volume:    decimal.RequireFromString("12.25"),
		Timestamp: now.Add(-time.Second),
	}))

	q, err := v.Quote(ctx, pair)
	require.NoError(t, err)
	assert.Equal(t, model.VenueKindOrderBook, q.Kind)
	assert.True(t, q.Bid.Equal(decimal.RequireFromString("3000.5")))
	assert.True(t, q.Ask.Equal(decimal.NewFromInt(3001)))
	assert.True(t, q.TakerFee.Equal(decimal.RequireFromString("0.001")))
	assert.Equal(t, now.Add(-time.Second).UnixMilli(), q.Timestamp.UnixMilli())
}

func TestOrderBookQuoteTransientFailures(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	v, rdb := newVenue(t, now)
	ctx := context.Background()

	_, err := v.Quote(ctx, pair)
	assert.ErrorIs(t, err, model.ErrTransientVenue, "missing snapshot")

	require.NoError(t, WriteSnapshot(ctx, rdb, "binance", pair, Snapshot{
		Bid:       decimal.NewFromInt(1),
		Ask:       decimal.NewFromInt(2),
		Timestamp: now.Add(-time.Minute),
	}))
	_, err = v.Quote(ctx, pair)
	assert.ErrorIs(t, err, model.ErrTransientVenue, "stale snapshot")

	require.NoError(t, WriteSnapshot(ctx, rdb, "binance", pair, Snapshot{
		Bid:       decimal.NewFromInt(3),
		Ask:       decimal.NewFromInt(2),
		Timestamp: now,
	}))
	_, err = v.Quote(ctx, pair)
	assert.ErrorIs(t, err, model.ErrTransientVenue, "crossed book")

	require.NoError(t, rdb.HSet(ctx, SnapshotKey("binance", pair), "bid", "abc").Err())
	_, err = v.Quote(ctx, pair)
	assert.ErrorIs(t, err, model.ErrTransientVenue, "garbage bid")
}

func TestOrderBookExecuteUnsupported(t *testing.T) {
	v, _ := newVenue(t, time.Now())
	ok, err := v.Execute(context.Background(), model.Bundle{})
	assert.False(t, ok)
	assert.ErrorIs(t, err, model.ErrExecutionUnsupported)
}
