package postgres

import (
	"context"
	"fmt"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
)

type TokenStatsRepo struct {
	db *DB
}

func NewTokenStatsRepo(db *DB) *TokenStatsRepo {
	return &TokenStatsRepo{db: db}
}

func (r *TokenStatsRepo) Upsert(ctx context.Context, stats *model.TokenStats) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO token_stats (
			chain_id, campaign_address, last_price, sold_quantity, volume_24h, market_cap
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chain_id, campaign_address) DO UPDATE SET
			last_price = EXCLUDED.last_price,
			sold_quantity = EXCLUDED.sold_quantity,
			volume_24h = EXCLUDED.volume_24h,
			market_cap = EXCLUDED.market_cap,
			updated_at = now()
	`, stats.ChainID, stats.CampaignAddress, stats.LastPrice, stats.SoldQuantity, stats.Volume24h, stats.MarketCap)
	if err != nil {
		return fmt.Errorf("upsert token stats: %w", err)
	}
	return nil
}
