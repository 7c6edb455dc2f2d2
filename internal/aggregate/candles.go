package aggregate

import (
	"context"
	"fmt"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
	"github.com/launchkit/campaign-indexer/internal/store"
)

// CandleSink receives the merged candle row after each bucket upsert.
type CandleSink interface {
	PublishCandle(ctx context.Context, c *model.Candle)
}

// Candles folds trades into OHLC buckets across every maintained timeframe.
type Candles struct {
	repo store.CandleRepository
	sink CandleSink
}

func NewCandles(repo store.CandleRepository, sink CandleSink) *Candles {
	return &Candles{repo: repo, sink: sink}
}

// ApplyTrade upserts the trade into one bucket per timeframe and emits the
// merged row for each. Trades with no spot price (zero token amount) carry no
// OHLC information and are skipped.
func (c *Candles) ApplyTrade(ctx context.Context, t *model.Trade) error {
	if t.Price == nil {
		return nil
	}
	for _, tf := range model.Timeframes {
		bucket := tf.BucketStart(t.BlockTime)
		merged, err := c.repo.Apply(ctx, t.ChainID, t.CampaignAddress, tf, bucket, *t.Price, t.NativeAmount)
		if err != nil {
			return fmt.Errorf("candle timeframe %d: %w", int64(tf), err)
		}
		c.sink.PublishCandle(ctx, merged)
	}
	return nil
}
