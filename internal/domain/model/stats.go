package model

import "time"

// TokenStats is the per-campaign snapshot recomputed after each trade batch.
type TokenStats struct {
	ChainID         int64
	CampaignAddress string
	// LastPrice is the price of the most recent trade; nil before any priced
	// trade exists.
	LastPrice *float64
	// SoldQuantity is the net tokens sold by the curve: sum of buy token
	// amounts minus sum of sell token amounts, over all time.
	SoldQuantity float64
	// Volume24h is the trailing-24h native-denominated volume.
	Volume24h float64
	// MarketCap is LastPrice * SoldQuantity; nil while LastPrice is nil.
	MarketCap *float64
	UpdatedAt time.Time
}
