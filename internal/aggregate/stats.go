package aggregate

import (
	"time"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
)

// ComputeStats recomputes the per-campaign snapshot from the full trade list,
// which callers supply ordered by (blockNumber, logIndex) ascending.
func ComputeStats(chainID int64, campaign string, trades []*model.Trade, now time.Time) *model.TokenStats {
	stats := &model.TokenStats{
		ChainID:         chainID,
		CampaignAddress: campaign,
	}

	cutoff := now.Add(-24 * time.Hour)
	for _, t := range trades {
		switch t.Side {
		case model.TradeSideBuy:
			stats.SoldQuantity += t.TokenAmount
		case model.TradeSideSell:
			stats.SoldQuantity -= t.TokenAmount
		}
		if !t.BlockTime.Before(cutoff) {
			stats.Volume24h += t.NativeAmount
		}
		if t.Price != nil {
			price := *t.Price
			stats.LastPrice = &price
		}
	}

	if stats.LastPrice != nil {
		cap := *stats.LastPrice * stats.SoldQuantity
		stats.MarketCap = &cap
	}
	return stats
}
