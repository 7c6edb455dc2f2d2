package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type StateRepo struct {
	db *DB
}

func NewStateRepo(db *DB) *StateRepo {
	return &StateRepo{db: db}
}

func (r *StateRepo) Get(ctx context.Context, chainID int64, cursor string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var block int64
	err := r.db.QueryRowContext(ctx, `
		SELECT last_block FROM indexer_state
		WHERE chain_id = $1 AND cursor_name = $2
	`, chainID, cursor).Scan(&block)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cursor %s: %w", cursor, err)
	}
	return block, nil
}

// Advance persists max(existing, block). GREATEST in the upsert keeps the
// cursor monotonic even when a repair pass replays an older range.
func (r *StateRepo) Advance(ctx context.Context, chainID int64, cursor string, block int64) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO indexer_state (chain_id, cursor_name, last_block)
		VALUES ($1, $2, $3)
		ON CONFLICT (chain_id, cursor_name) DO UPDATE SET
			last_block = GREATEST(indexer_state.last_block, EXCLUDED.last_block),
			updated_at = now()
	`, chainID, cursor, block)
	if err != nil {
		return fmt.Errorf("advance cursor %s: %w", cursor, err)
	}
	return nil
}
