package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"arbcore/internal/model"
)

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides Postgres persistence for pool metadata.
type Store struct {
	db    DB
	close func()
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: pool, close: pool.Close}, nil
}

// NewStoreWithDB wraps an existing connection pool.
func NewStoreWithDB(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

const createPoolsSQL = `
	CREATE TABLE IF NOT EXISTS pools (
		chain_id     BIGINT  NOT NULL,
		pool_address TEXT    NOT NULL,
		token0       TEXT    NOT NULL,
		token1       TEXT    NOT NULL,
		fee          INTEGER NOT NULL,
		tick_spacing INTEGER NOT NULL,
		decimals0    SMALLINT NOT NULL,
		decimals1    SMALLINT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (chain_id, pool_address)
	)`

// Migrate creates the pools table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createPoolsSQL); err != nil {
		return fmt.Errorf("create pools table: %w", err)
	}
	return nil
}

// SavePools inserts or updates pool metadata in one transaction.
func (s *Store) SavePools(ctx context.Context, pools []model.PoolMeta) error {
	if len(pools) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, pool := range pools {
		_, err := tx.Exec(ctx, `
			INSERT INTO pools (
				chain_id, pool_address, token0, token1, fee, tick_spacing, decimals0, decimals1, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				fee = EXCLUDED.fee,
				tick_spacing = EXCLUDED.tick_spacing,
				decimals0 = EXCLUDED.decimals0,
				decimals1 = EXCLUDED.decimals1,
				updated_at = now()
		`,
			int64(pool.ChainID),
			pool.Pool,
			pool.Token0,
			pool.Token1,
			int64(pool.Fee),
			int64(pool.TickSpacing),
			int64(pool.Decimals0),
			int64(pool.Decimals1),
		)
		if err != nil {
			return fmt.Errorf("upsert pool %s: %w", pool.Pool, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadPools returns all pools stored for a chain.
func (s *Store) LoadPools(ctx context.Context, chainID uint64) ([]model.PoolMeta, error) {
	rows, err := s.db.Query(ctx, `
		SELECT pool_address, token0, token1, fee, tick_spacing, decimals0, decimals1
		FROM pools WHERE chain_id = $1 ORDER BY pool_address
	`, int64(chainID))
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()

	var out []model.PoolMeta
	for rows.Next() {
		var (
			meta                         model.PoolMeta
			fee, tickSpacing, dec0, dec1 int64
		)
		if err := rows.Scan(&meta.Pool, &meta.Token0, &meta.Token1, &fee, &tickSpacing, &dec0, &dec1); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		meta.ChainID = chainID
		meta.Fee = uint32(fee)
		meta.TickSpacing = int32(tickSpacing)
		meta.Decimals0 = uint8(dec0)
		meta.Decimals1 = uint8(dec1)
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pools: %w", err)
	}
	return out, nil
}
