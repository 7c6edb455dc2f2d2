package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
)

func trade(side model.TradeSide, tokens, native float64, at time.Time) *model.Trade {
	t := &model.Trade{
		ChainID:         97,
		CampaignAddress: "0xcafe",
		Side:            side,
		TokenAmount:     tokens,
		NativeAmount:    native,
		BlockTime:       at,
	}
	if tokens > 0 {
		price := native / tokens
		t.Price = &price
	}
	return t
}

func TestComputeStats_TwoBuysOneSell(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := now.Add(-time.Minute)

	trades := []*model.Trade{
		trade(model.TradeSideBuy, 10, 0.01, at),
		trade(model.TradeSideBuy, 5, 0.006, at),
		trade(model.TradeSideSell, 3, 0.0033, at),
	}

	stats := ComputeStats(97, "0xcafe", trades, now)

	assert.InDelta(t, 12.0, stats.SoldQuantity, 1e-9)
	assert.InDelta(t, 0.01+0.006+0.0033, stats.Volume24h, 1e-9)

	require.NotNil(t, stats.LastPrice)
	assert.InDelta(t, 0.0033/3, *stats.LastPrice, 1e-12)

	require.NotNil(t, stats.MarketCap)
	assert.InDelta(t, (0.0033/3)*12, *stats.MarketCap, 1e-9)
}

func TestComputeStats_Volume24hWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	trades := []*model.Trade{
		trade(model.TradeSideBuy, 1, 0.5, now.Add(-48*time.Hour)),
		trade(model.TradeSideBuy, 1, 0.25, now.Add(-time.Hour)),
	}

	stats := ComputeStats(97, "0xcafe", trades, now)
	assert.InDelta(t, 0.25, stats.Volume24h, 1e-9, "only the trailing 24h counts")
	assert.InDelta(t, 2.0, stats.SoldQuantity, 1e-9, "sold quantity is all-time")
}

func TestComputeStats_NoPricedTrades(t *testing.T) {
	now := time.Now()
	trades := []*model.Trade{
		trade(model.TradeSideBuy, 0, 0.001, now), // airdrop-style, no price
	}

	stats := ComputeStats(97, "0xcafe", trades, now)
	assert.Nil(t, stats.LastPrice)
	assert.Nil(t, stats.MarketCap)
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(97, "0xcafe", nil, time.Now())
	assert.Zero(t, stats.SoldQuantity)
	assert.Zero(t, stats.Volume24h)
	assert.Nil(t, stats.LastPrice)
}
