package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
	"github.com/launchkit/campaign-indexer/internal/store"
)

type ActivityRepo struct {
	db *DB
}

func NewActivityRepo(db *DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

func (r *ActivityRepo) Insert(ctx context.Context, ev *model.ActivityEvent) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_events (
			chain_id, tx_hash, log_index, kind,
			campaign_address, actor, amount, block_number, block_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
	`, ev.ChainID, ev.TxHash, ev.LogIndex, ev.Kind,
		ev.CampaignAddress, ev.Actor, ev.Amount, ev.BlockNumber, ev.BlockTime,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
			return fmt.Errorf("insert activity: %w", store.ErrSchemaMissing)
		}
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}
