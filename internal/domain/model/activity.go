package model

import "time"

// ActivityKind tags one on-chain action in the audit log.
type ActivityKind string

const (
	ActivityCreate   ActivityKind = "create"
	ActivityBuy      ActivityKind = "buy"
	ActivitySell     ActivityKind = "sell"
	ActivityFinalize ActivityKind = "finalize"
	ActivityVote     ActivityKind = "vote"
)

// ActivityEvent is one append-only audit row per on-chain action. Audit writes
// are non-critical: a missing-schema failure disables further writes for the
// process lifetime instead of retrying.
type ActivityEvent struct {
	ChainID         int64
	TxHash          string
	LogIndex        int64
	Kind            ActivityKind
	CampaignAddress string
	Actor           string
	Amount          string
	BlockNumber     int64
	BlockTime       time.Time
	CreatedAt       time.Time
}
