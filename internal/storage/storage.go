package storage

import (
	"context"

	"arbcore/internal/model"
)

// PoolStore persists pool metadata so venues skip the metadata calls on
// restart.
type PoolStore interface {
	LoadPools(ctx context.Context, chainID uint64) ([]model.PoolMeta, error)
	SavePools(ctx context.Context, pools []model.PoolMeta) error
}
