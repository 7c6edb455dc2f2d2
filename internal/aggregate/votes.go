package aggregate

import (
	"time"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
)

// Trending weights over consecutive 24h buckets, newest first. A decay proxy
// for momentum, replaceable policy rather than an external contract.
const (
	trendWeightDay0 = 1.0
	trendWeightDay1 = 0.5
	trendWeightDay2 = 0.25
)

// ComputeVoteAggregate recomputes the full rolling summary from every vote
// time for a campaign. Recompute-from-scratch keeps window edges exact at the
// cost of rereading the campaign's votes on each new vote.
func ComputeVoteAggregate(chainID int64, campaign string, times []time.Time, now time.Time) *model.VoteAggregate {
	agg := &model.VoteAggregate{
		ChainID:         chainID,
		CampaignAddress: campaign,
	}

	h1 := now.Add(-time.Hour)
	h24 := now.Add(-24 * time.Hour)
	d7 := now.Add(-7 * 24 * time.Hour)
	h48 := now.Add(-48 * time.Hour)
	h72 := now.Add(-72 * time.Hour)

	for _, ts := range times {
		agg.VotesAll++
		if !ts.Before(h1) {
			agg.Votes1h++
		}
		if !ts.Before(h24) {
			agg.Votes24h++
		}
		if !ts.Before(d7) {
			agg.Votes7d++
		}

		switch {
		case !ts.Before(h24):
			agg.TrendScore += trendWeightDay0
		case !ts.Before(h48):
			agg.TrendScore += trendWeightDay1
		case !ts.Before(h72):
			agg.TrendScore += trendWeightDay2
		}
	}
	return agg
}
