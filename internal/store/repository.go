package store

import (
	"context"
	"errors"
	"time"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
)

// ErrSchemaMissing is wrapped by repository implementations when a write hits
// a missing table. The audit path uses it to disable itself for the process
// lifetime instead of retrying forever.
var ErrSchemaMissing = errors.New("schema missing")

type CampaignRepository interface {
	// Upsert creates the campaign or enriches an existing row. Existing
	// non-null fields win over incoming nulls, so replays and reconciliation
	// never regress known data.
	Upsert(ctx context.Context, c *model.Campaign) error
	Get(ctx context.Context, chainID int64, address string) (*model.Campaign, error)
	ListActive(ctx context.Context, chainID int64) ([]*model.Campaign, error)
	ListAddresses(ctx context.Context, chainID int64) ([]string, error)
	SetGraduated(ctx context.Context, chainID int64, address string, block int64, at time.Time) error
	SetFeeRecipient(ctx context.Context, chainID int64, address, recipient string) error
}

type TradeRepository interface {
	// Insert writes the trade, returning false when the (chainID, txHash,
	// logIndex) key already exists.
	Insert(ctx context.Context, t *model.Trade) (bool, error)
	// ListByCampaign returns all trades for a campaign ordered by
	// (blockNumber, logIndex) ascending.
	ListByCampaign(ctx context.Context, chainID int64, campaign string) ([]*model.Trade, error)
	// SumRaisedNative returns the all-time signed native sum for a chain
	// (buys positive, sells negative), used to seed the realtime accumulator.
	SumRaisedNative(ctx context.Context, chainID int64) (float64, error)
}

type VoteRepository interface {
	Insert(ctx context.Context, v *model.Vote) (bool, error)
	// ListTimesByCampaign returns the block times of all votes for a campaign.
	ListTimesByCampaign(ctx context.Context, chainID int64, campaign string) ([]time.Time, error)
}

type CandleRepository interface {
	// Apply upserts one trade into a candle bucket and returns the merged row.
	Apply(ctx context.Context, chainID int64, campaign string, tf model.Timeframe, bucketStart int64, price, volume float64) (*model.Candle, error)
}

type VoteAggregateRepository interface {
	Upsert(ctx context.Context, agg *model.VoteAggregate) error
}

type TokenStatsRepository interface {
	Upsert(ctx context.Context, stats *model.TokenStats) error
}

type StateRepository interface {
	// Get returns the stored cursor block, 0 when absent.
	Get(ctx context.Context, chainID int64, cursor string) (int64, error)
	// Advance persists max(existing, block); it never lowers the high-water
	// mark even when called with a smaller value.
	Advance(ctx context.Context, chainID int64, cursor string, block int64) error
}

type ActivityRepository interface {
	Insert(ctx context.Context, ev *model.ActivityEvent) error
}
