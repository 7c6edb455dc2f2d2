package model

import "time"

// Campaign is one bonding-curve token sale instance, identified on a chain by
// its curve contract address. A campaign is created on the first
// CampaignCreated sighting (log scan or registry reconciliation), mutated once
// on graduation, and never deleted.
type Campaign struct {
	ChainID             int64
	Address             string
	TokenAddress        string
	CreatorAddress      string
	FeeRecipientAddress *string
	Name                string
	Symbol              string
	LogoURI             *string
	CreatedBlock        int64
	CreatedAtChainTime  time.Time
	GraduatedBlock      *int64
	GraduatedAtChain    *time.Time
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// MergeString implements monotonic enrichment: an existing non-empty value is
// preferred over an incoming one, so lifecycle upserts never regress a known
// field back to unknown.
func MergeString(existing, incoming string) string {
	if existing != "" {
		return existing
	}
	return incoming
}
