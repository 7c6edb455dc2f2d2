package postgres

import (
	"context"
	"fmt"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
)

type CandleRepo struct {
	db *DB
}

func NewCandleRepo(db *DB) *CandleRepo {
	return &CandleRepo{db: db}
}

// Apply folds one trade into a candle bucket with a single upsert statement:
// open is written only on the bucket's first row, high/low widen
// monotonically, close takes the incoming price (callers feed trades in
// deterministic block/log order), volume and count accumulate. The merged row
// is returned so callers can publish the post-merge close and volume.
func (r *CandleRepo) Apply(ctx context.Context, chainID int64, campaign string, tf model.Timeframe, bucketStart int64, price, volume float64) (*model.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var c model.Candle
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO token_candles (
			chain_id, campaign_address, timeframe, bucket_start,
			open, high, low, close, volume, trade_count
		) VALUES ($1, $2, $3, $4, $5, $5, $5, $5, $6, 1)
		ON CONFLICT (chain_id, campaign_address, timeframe, bucket_start) DO UPDATE SET
			high = GREATEST(token_candles.high, EXCLUDED.high),
			low = LEAST(token_candles.low, EXCLUDED.low),
			close = EXCLUDED.close,
			volume = token_candles.volume + EXCLUDED.volume,
			trade_count = token_candles.trade_count + 1,
			updated_at = now()
		RETURNING chain_id, campaign_address, timeframe, bucket_start,
		          open, high, low, close, volume, trade_count, updated_at
	`, chainID, campaign, int64(tf), bucketStart, price, volume).Scan(
		&c.ChainID, &c.CampaignAddress, &c.Timeframe, &c.BucketStart,
		&c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.TradeCount, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("apply candle: %w", err)
	}
	return &c, nil
}
