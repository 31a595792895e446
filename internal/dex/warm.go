package dex

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"arbcore/internal/model"
	"arbcore/internal/storage"
)

// WarmPoolMeta fills cache from store, fetches metadata for pools the store
// does not know yet and writes those back.
func WarmPoolMeta(ctx context.Context, caller ContractCaller, store storage.PoolStore, cache *PoolMetaCache, chainID uint64, pools []common.Address, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if store != nil {
		stored, err := store.LoadPools(ctx, chainID)
		if err != nil {
			return fmt.Errorf("load pool metadata: %w", err)
		}
		for _, meta := range stored {
			cache.Set(meta)
		}
		logger.Info("pool metadata loaded", zap.Int("pools", len(stored)))
	}

	var fetched []model.PoolMeta
	for _, pool := range pools {
		if _, ok := cache.Get(pool); ok {
			continue
		}
		meta, err := FetchPoolMeta(ctx, caller, chainID, pool, logger)
		if err != nil {
			return fmt.Errorf("fetch pool %s: %w", pool.Hex(), err)
		}
		cache.Set(meta)
		fetched = append(fetched, meta)
	}

	if store != nil && len(fetched) > 0 {
		if err := store.SavePools(ctx, fetched); err != nil {
			return fmt.Errorf("save pool metadata: %w", err)
		}
		logger.Info("pool metadata stored", zap.Int("pools", len(fetched)))
	}
	return nil
}
