package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
)

type VoteRepo struct {
	db *DB
}

func NewVoteRepo(db *DB) *VoteRepo {
	return &VoteRepo{db: db}
}

func (r *VoteRepo) Insert(ctx context.Context, v *model.Vote) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO votes (
			chain_id, tx_hash, log_index, campaign_address,
			voter_address, asset_address, raw_amount, meta,
			block_number, block_time, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
	`, v.ChainID, v.TxHash, v.LogIndex, v.CampaignAddress,
		v.VoterAddress, v.AssetAddress, v.RawAmount, v.Meta,
		v.BlockNumber, v.BlockTime, v.Status,
	)
	if err != nil {
		return false, fmt.Errorf("insert vote: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert vote rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *VoteRepo) ListTimesByCampaign(ctx context.Context, chainID int64, campaign string) ([]time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT block_time FROM votes
		WHERE chain_id = $1 AND campaign_address = $2
		ORDER BY block_time ASC
	`, chainID, campaign)
	if err != nil {
		return nil, fmt.Errorf("list vote times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan vote time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}
