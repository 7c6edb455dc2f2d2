package model

import "time"

// TradeSide is the direction of a curve trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Trade is a single bonding-curve buy or sell. The (ChainID, TxHash, LogIndex)
// triple is the global natural key: it makes re-scanning any block range safe
// because duplicate ingestion conflicts away. Immutable once written.
type Trade struct {
	ChainID         int64
	TxHash          string
	LogIndex        int64
	CampaignAddress string
	BlockNumber     int64
	BlockTime       time.Time
	Side            TradeSide
	Wallet          string
	RawTokenAmount  string
	RawNativeAmount string
	TokenAmount     float64
	NativeAmount    float64
	// Price is the spot price nativeAmount/tokenAmount; nil when the trade
	// moved zero tokens.
	Price     *float64
	CreatedAt time.Time
}
