package model

import (
	"fmt"
	"time"
)

// Cursor names for the per-chain scan targets.
const (
	CursorFactory = "factory"
	CursorVotes   = "votes"
)

// CampaignCursor returns the cursor name for a single campaign's scan target.
func CampaignCursor(address string) string {
	return fmt.Sprintf("campaign:%s", address)
}

// IndexerState is a persisted high-water-mark block number for one scan
// target. Under normal operation LastBlock never decreases.
type IndexerState struct {
	ChainID   int64
	Cursor    string
	LastBlock int64
	UpdatedAt time.Time
}
