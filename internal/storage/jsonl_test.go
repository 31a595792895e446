package storage

import (
	"context"
	"path/filepath"
	"testing"

	"arbcore/internal/model"
)

func TestJsonlPoolStoreMergesAndFilters(t *testing.T) {
	store := NewJsonlPoolStore(filepath.Join(t.TempDir(), "pools", "pools.jsonl"))
	ctx := context.Background()

	pools, err := store.LoadPools(ctx, 1)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(pools) != 0 {
		t.Fatalf("expected no pools, got %d", len(pools))
	}

	err = store.SavePools(ctx, []model.PoolMeta{
		{ChainID: 1, Pool: "0x1111111111111111111111111111111111111111", Fee: 500},
		{ChainID: 42161, Pool: "0x2222222222222222222222222222222222222222", Fee: 3000},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	err = store.SavePools(ctx, []model.PoolMeta{
		{ChainID: 1, Pool: "0x1111111111111111111111111111111111111111", Fee: 500, Decimals0: 18, Decimals1: 6},
	})
	if err != nil {
		t.Fatalf("save update: %v", err)
	}

	pools, err = store.LoadPools(ctx, 1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pools) != 1 {
		t.Fatalf("expected 1 pool for chain 1, got %d", len(pools))
	}
	if pools[0].Decimals0 != 18 || pools[0].Decimals1 != 6 {
		t.Fatalf("update not applied: %+v", pools[0])
	}

	pools, err = store.LoadPools(ctx, 42161)
	if err != nil {
		t.Fatalf("load other chain: %v", err)
	}
	if len(pools) != 1 || pools[0].Fee != 3000 {
		t.Fatalf("other chain mismatch: %+v", pools)
	}
}
