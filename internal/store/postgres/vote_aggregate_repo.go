package postgres

import (
	"context"
	"fmt"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
)

type VoteAggregateRepo struct {
	db *DB
}

func NewVoteAggregateRepo(db *DB) *VoteAggregateRepo {
	return &VoteAggregateRepo{db: db}
}

func (r *VoteAggregateRepo) Upsert(ctx context.Context, agg *model.VoteAggregate) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vote_aggregates (
			chain_id, campaign_address, votes_1h, votes_24h, votes_7d, votes_all, trend_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chain_id, campaign_address) DO UPDATE SET
			votes_1h = EXCLUDED.votes_1h,
			votes_24h = EXCLUDED.votes_24h,
			votes_7d = EXCLUDED.votes_7d,
			votes_all = EXCLUDED.votes_all,
			trend_score = EXCLUDED.trend_score,
			updated_at = now()
	`, agg.ChainID, agg.CampaignAddress, agg.Votes1h, agg.Votes24h, agg.Votes7d, agg.VotesAll, agg.TrendScore)
	if err != nil {
		return fmt.Errorf("upsert vote aggregate: %w", err)
	}
	return nil
}
