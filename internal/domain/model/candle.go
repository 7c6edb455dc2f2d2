package model

import "time"

// Timeframe is a candle bucket width in seconds.
type Timeframe int64

// Timeframes maintained for every campaign.
var Timeframes = []Timeframe{5, 60, 300, 900, 3600}

// BucketStart aligns a block timestamp down to the start of its bucket.
func (tf Timeframe) BucketStart(blockTime time.Time) int64 {
	sec := int64(tf)
	return (blockTime.Unix() / sec) * sec
}

// Candle is one OHLC bucket for a campaign and timeframe. Open is set on the
// first write to the bucket only; high/low widen monotonically; close always
// takes the latest trade's price; volume and trade count accumulate.
type Candle struct {
	ChainID         int64
	CampaignAddress string
	Timeframe       Timeframe
	BucketStart     int64
	Open            float64
	High            float64
	Low             float64
	Close           float64
	Volume          float64
	TradeCount      int64
	UpdatedAt       time.Time
}
