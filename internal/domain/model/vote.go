package model

import "time"

// VoteStatus is the lifecycle state of an ingested vote.
type VoteStatus string

const VoteStatusConfirmed VoteStatus = "confirmed"

// Vote is one vote-cast event from the voting treasury contract, keyed like a
// trade by (ChainID, TxHash, LogIndex). Immutable once written.
type Vote struct {
	ChainID         int64
	TxHash          string
	LogIndex        int64
	CampaignAddress string
	VoterAddress    string
	AssetAddress    string
	RawAmount       string
	Meta            string
	BlockNumber     int64
	BlockTime       time.Time
	Status          VoteStatus
	CreatedAt       time.Time
}

// VoteAggregate is the per-campaign rolling vote summary. It is recomputed in
// full from the votes table whenever a vote for the campaign is ingested.
type VoteAggregate struct {
	ChainID         int64
	CampaignAddress string
	Votes1h         int64
	Votes24h        int64
	Votes7d         int64
	VotesAll        int64
	TrendScore      float64
	UpdatedAt       time.Time
}
