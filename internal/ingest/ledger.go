package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/launchkit/campaign-indexer/internal/aggregate"
	"github.com/launchkit/campaign-indexer/internal/chain/abi"
	"github.com/launchkit/campaign-indexer/internal/domain/model"
	"github.com/launchkit/campaign-indexer/internal/metrics"
	"github.com/launchkit/campaign-indexer/internal/scan"
	"github.com/launchkit/campaign-indexer/internal/store"
)

// Publisher is the slice of the realtime layer the ledger emits into. All of
// it is best effort; none of these calls return errors.
type Publisher interface {
	PublishTrade(ctx context.Context, t *model.Trade)
	PublishStats(ctx context.Context, s *model.TokenStats)
	AnnounceCampaign(ctx context.Context, c *model.Campaign)
	QueuePatch(chainID int64, campaign string, fields map[string]any)
	AddRaised(ctx context.Context, chainID int64, delta float64)
}

// Ledger turns decoded chain logs into durable rows and keeps the derived
// aggregates consistent with them. Writes to trades and votes are idempotent
// on the (chain, tx, logIndex) key; aggregates only run when a write is novel,
// so replaying a block range is a no-op end to end.
type Ledger struct {
	chainID    int64
	chainLabel string

	campaigns store.CampaignRepository
	trades    store.TradeRepository
	votes     store.VoteRepository
	voteAggs  store.VoteAggregateRepository
	stats     store.TokenStatsRepository
	activity  store.ActivityRepository
	candles   *aggregate.Candles
	pub       Publisher

	logger *slog.Logger
	now    func() time.Time

	// Flipped once on a missing-schema audit failure; audit writes are
	// non-critical and must not retry for the rest of the process lifetime.
	auditDisabled atomic.Bool
}

type LedgerDeps struct {
	Campaigns store.CampaignRepository
	Trades    store.TradeRepository
	Votes     store.VoteRepository
	VoteAggs  store.VoteAggregateRepository
	Stats     store.TokenStatsRepository
	Activity  store.ActivityRepository
	Candles   *aggregate.Candles
	Publisher Publisher
}

func NewLedger(chainID int64, deps LedgerDeps, logger *slog.Logger) *Ledger {
	return &Ledger{
		chainID:    chainID,
		chainLabel: strconv.FormatInt(chainID, 10),
		campaigns:  deps.Campaigns,
		trades:     deps.Trades,
		votes:      deps.Votes,
		voteAggs:   deps.VoteAggs,
		stats:      deps.Stats,
		activity:   deps.Activity,
		candles:    deps.Candles,
		pub:        deps.Publisher,
		logger:     logger.With("component", "ledger", "chain_id", chainID),
		now:        time.Now,
	}
}

// HandleFactoryLogs ingests CampaignCreated events from a factory scan chunk.
func (l *Ledger) HandleFactoryLogs(ctx context.Context, logs []scan.Log) error {
	for _, log := range logs {
		if len(log.Topics) == 0 || log.Topics[0] != TopicCampaignCreated {
			continue
		}
		if err := l.applyCreated(ctx, log); err != nil {
			return err
		}
	}
	return nil
}

// HandleCampaignLogs ingests trade and finalize events from one campaign's
// scan chunk.
func (l *Ledger) HandleCampaignLogs(ctx context.Context, logs []scan.Log) error {
	for _, log := range logs {
		if len(log.Topics) == 0 {
			continue
		}
		switch log.Topics[0] {
		case TopicTokensPurchased, TopicTokensSold:
			if err := l.applyTrade(ctx, log); err != nil {
				return err
			}
		case TopicCampaignFinalized:
			if err := l.applyFinalized(ctx, log); err != nil {
				return err
			}
		}
	}
	return nil
}

// HandleVoteLogs ingests VoteCast events from a vote-treasury scan chunk.
func (l *Ledger) HandleVoteLogs(ctx context.Context, logs []scan.Log) error {
	for _, log := range logs {
		if len(log.Topics) == 0 || log.Topics[0] != TopicVoteCast {
			continue
		}
		if err := l.applyVote(ctx, log); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) applyCreated(ctx context.Context, log scan.Log) error {
	ev, err := DecodeCampaignCreated(log)
	if err != nil {
		return fmt.Errorf("decode campaign created: %w", err)
	}

	campaign := &model.Campaign{
		ChainID:            l.chainID,
		Address:            ev.Campaign,
		TokenAddress:       ev.Token,
		CreatorAddress:     ev.Creator,
		Name:               ev.Name,
		Symbol:             ev.Symbol,
		CreatedBlock:       log.BlockNumber,
		CreatedAtChainTime: log.BlockTime,
		IsActive:           true,
	}
	if err := l.campaigns.Upsert(ctx, campaign); err != nil {
		return fmt.Errorf("upsert campaign %s: %w", ev.Campaign, err)
	}
	metrics.CampaignsDiscovered.WithLabelValues(l.chainLabel, "scan").Inc()

	l.writeActivity(ctx, &model.ActivityEvent{
		ChainID:         l.chainID,
		TxHash:          log.TxHash,
		LogIndex:        log.LogIndex,
		Kind:            model.ActivityCreate,
		CampaignAddress: ev.Campaign,
		Actor:           ev.Creator,
		Amount:          "0",
		BlockNumber:     log.BlockNumber,
		BlockTime:       log.BlockTime,
	})

	l.pub.AnnounceCampaign(ctx, campaign)
	l.logger.Info("campaign discovered",
		"campaign", ev.Campaign, "token", ev.Token, "block", log.BlockNumber)
	return nil
}

func (l *Ledger) applyTrade(ctx context.Context, log scan.Log) error {
	ev, err := DecodeTrade(log)
	if err != nil {
		return fmt.Errorf("decode trade: %w", err)
	}

	tokenAmount := abi.ScaleDecimals(ev.TokenAmount, NativeDecimals)
	nativeAmount := abi.ScaleDecimals(ev.NativeAmount, NativeDecimals)
	trade := &model.Trade{
		ChainID:         l.chainID,
		TxHash:          log.TxHash,
		LogIndex:        log.LogIndex,
		// Campaign rows and cursors key on the lowercased address decoded
		// from topics; fold the provider's casing to keep the join exact.
		CampaignAddress: strings.ToLower(log.Address),
		BlockNumber:     log.BlockNumber,
		BlockTime:       log.BlockTime,
		Side:            ev.Side,
		Wallet:          ev.Wallet,
		RawTokenAmount:  ev.TokenAmount.String(),
		RawNativeAmount: ev.NativeAmount.String(),
		TokenAmount:     tokenAmount,
		NativeAmount:    nativeAmount,
		Price:           SpotPrice(ev.TokenAmount, ev.NativeAmount),
	}

	novel, err := l.trades.Insert(ctx, trade)
	if err != nil {
		return fmt.Errorf("insert trade %s/%d: %w", log.TxHash, log.LogIndex, err)
	}
	if !novel {
		return nil
	}
	metrics.TradesInserted.WithLabelValues(l.chainLabel).Inc()

	if err := l.candles.ApplyTrade(ctx, trade); err != nil {
		return err
	}
	if err := l.refreshStats(ctx, trade.CampaignAddress); err != nil {
		return err
	}

	l.pub.PublishTrade(ctx, trade)
	delta := nativeAmount
	kind := model.ActivityBuy
	if trade.Side == model.TradeSideSell {
		delta = -nativeAmount
		kind = model.ActivitySell
	}
	l.pub.AddRaised(ctx, l.chainID, delta)

	l.writeActivity(ctx, &model.ActivityEvent{
		ChainID:         l.chainID,
		TxHash:          log.TxHash,
		LogIndex:        log.LogIndex,
		Kind:            kind,
		CampaignAddress: trade.CampaignAddress,
		Actor:           ev.Wallet,
		Amount:          trade.RawTokenAmount,
		BlockNumber:     log.BlockNumber,
		BlockTime:       log.BlockTime,
	})
	return nil
}

func (l *Ledger) applyFinalized(ctx context.Context, log scan.Log) error {
	ev, err := DecodeFinalized(log)
	if err != nil {
		return fmt.Errorf("decode finalized: %w", err)
	}

	campaign := strings.ToLower(log.Address)
	if err := l.campaigns.SetGraduated(ctx, l.chainID, campaign, log.BlockNumber, log.BlockTime); err != nil {
		return fmt.Errorf("graduate campaign %s: %w", campaign, err)
	}

	l.pub.QueuePatch(l.chainID, campaign, map[string]any{
		"is_active":       false,
		"graduated_block": log.BlockNumber,
	})
	l.writeActivity(ctx, &model.ActivityEvent{
		ChainID:         l.chainID,
		TxHash:          log.TxHash,
		LogIndex:        log.LogIndex,
		Kind:            model.ActivityFinalize,
		CampaignAddress: campaign,
		Actor:           ev.Caller,
		Amount:          "0",
		BlockNumber:     log.BlockNumber,
		BlockTime:       log.BlockTime,
	})
	l.logger.Info("campaign graduated", "campaign", campaign, "block", log.BlockNumber)
	return nil
}

func (l *Ledger) applyVote(ctx context.Context, log scan.Log) error {
	ev, err := DecodeVoteCast(log)
	if err != nil {
		return fmt.Errorf("decode vote: %w", err)
	}

	vote := &model.Vote{
		ChainID:         l.chainID,
		TxHash:          log.TxHash,
		LogIndex:        log.LogIndex,
		CampaignAddress: ev.Campaign,
		VoterAddress:    ev.Voter,
		AssetAddress:    ev.Asset,
		RawAmount:       ev.AmountPaid.String(),
		Meta:            ev.Meta,
		BlockNumber:     log.BlockNumber,
		BlockTime:       log.BlockTime,
		Status:          model.VoteStatusConfirmed,
	}

	novel, err := l.votes.Insert(ctx, vote)
	if err != nil {
		return fmt.Errorf("insert vote %s/%d: %w", log.TxHash, log.LogIndex, err)
	}
	if !novel {
		return nil
	}
	metrics.VotesInserted.WithLabelValues(l.chainLabel).Inc()

	if err := l.refreshVoteAggregate(ctx, ev.Campaign); err != nil {
		return err
	}

	l.writeActivity(ctx, &model.ActivityEvent{
		ChainID:         l.chainID,
		TxHash:          log.TxHash,
		LogIndex:        log.LogIndex,
		Kind:            model.ActivityVote,
		CampaignAddress: ev.Campaign,
		Actor:           ev.Voter,
		Amount:          vote.RawAmount,
		BlockNumber:     log.BlockNumber,
		BlockTime:       log.BlockTime,
	})
	return nil
}

func (l *Ledger) refreshStats(ctx context.Context, campaign string) error {
	trades, err := l.trades.ListByCampaign(ctx, l.chainID, campaign)
	if err != nil {
		return fmt.Errorf("list trades for stats: %w", err)
	}
	stats := aggregate.ComputeStats(l.chainID, campaign, trades, l.now())
	if err := l.stats.Upsert(ctx, stats); err != nil {
		return fmt.Errorf("upsert stats for %s: %w", campaign, err)
	}
	l.pub.PublishStats(ctx, stats)
	return nil
}

func (l *Ledger) refreshVoteAggregate(ctx context.Context, campaign string) error {
	times, err := l.votes.ListTimesByCampaign(ctx, l.chainID, campaign)
	if err != nil {
		return fmt.Errorf("list votes for aggregate: %w", err)
	}
	agg := aggregate.ComputeVoteAggregate(l.chainID, campaign, times, l.now())
	if err := l.voteAggs.Upsert(ctx, agg); err != nil {
		return fmt.Errorf("upsert vote aggregate for %s: %w", campaign, err)
	}
	l.pub.QueuePatch(l.chainID, campaign, map[string]any{
		"votes_1h":    agg.Votes1h,
		"votes_24h":   agg.Votes24h,
		"votes_7d":    agg.Votes7d,
		"votes_all":   agg.VotesAll,
		"trend_score": agg.TrendScore,
	})
	return nil
}

// writeActivity appends one audit row. The audit log is a non-critical path:
// failures are counted and dropped, and a missing-schema error disables the
// path entirely for the rest of the process.
func (l *Ledger) writeActivity(ctx context.Context, ev *model.ActivityEvent) {
	if l.auditDisabled.Load() {
		return
	}
	err := l.activity.Insert(ctx, ev)
	if err == nil {
		return
	}
	metrics.ActivityWritesDropped.WithLabelValues(l.chainLabel).Inc()
	if errors.Is(err, store.ErrSchemaMissing) {
		l.auditDisabled.Store(true)
		l.logger.Warn("activity schema missing, disabling audit writes", "error", err)
		return
	}
	l.logger.Warn("activity write dropped", "error", err)
}
