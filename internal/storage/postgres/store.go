package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dynamicFee/internal/model"
)

// Store provides Postgres persistence for pools, fee changes and engine state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertPools inserts registered pools; existing rows keep their first registration time.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		tokens, err := json.Marshal(pool.Tokens)
		if err != nil {
			return fmt.Errorf("marshal tokens: %w", err)
		}
		batch.Queue(`
			INSERT INTO fee_pools (pool_address, tokens, registered_at, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				tokens = EXCLUDED.tokens,
				registered_at = LEAST(fee_pools.registered_at, EXCLUDED.registered_at),
				updated_at = now()
		`,
			pool.Address,
			tokens,
			pool.RegisteredAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutFeeChanges inserts fee-change notifications. Ids are derived from the change
// itself, so re-running a replay over the same swaps inserts nothing new.
func (s *Store) PutFeeChanges(ctx context.Context, changes []model.FeeChangeRecord) error {
	if len(changes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range changes {
		batch.Queue(`
			INSERT INTO fee_changes (
				id, pool_address, old_fee, new_fee, volatility, observed_ts, observed_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (id) DO NOTHING
		`,
			c.ID,
			c.Pool,
			c.OldFee,
			c.NewFee,
			c.Volatility,
			int64(c.Timestamp),
			c.ObservedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range changes {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot returns the engine snapshot stored under name.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (model.EngineSnapshot, bool, error) {
	if name == "" {
		return model.EngineSnapshot{}, false, fmt.Errorf("state name required")
	}
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT snapshot FROM fee_engine_state WHERE name=$1`, name)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EngineSnapshot{}, false, nil
		}
		return model.EngineSnapshot{}, false, err
	}
	var snap model.EngineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.EngineSnapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, true, nil
}

// SaveSnapshot upserts the engine snapshot under name.
func (s *Store) SaveSnapshot(ctx context.Context, name string, snap model.EngineSnapshot) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO fee_engine_state (name, last_processed_ts, snapshot, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, snapshot = EXCLUDED.snapshot, updated_at = now()
	`, name, int64(snap.LastProcessed), data)
	return err
}
