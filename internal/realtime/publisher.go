package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
	"github.com/launchkit/campaign-indexer/internal/metrics"
)

// Broker delivers one serialized message to one channel.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RaisedSeeder supplies the all-time signed native sum for a chain, used once
// to seed the in-memory raised accumulator.
type RaisedSeeder interface {
	SumRaisedNative(ctx context.Context, chainID int64) (float64, error)
}

const DefaultFlushInterval = 500 * time.Millisecond

// Publisher fans indexing results out over pub/sub. Trades, candle upserts
// and stats snapshots go out immediately on per-campaign topics; league-level
// campaign patches are coalesced per campaign in a pending map and flushed as
// one batched message per chain on a timer. Everything here is best effort:
// publish failures are counted and swallowed, never surfaced to ingestion.
type Publisher struct {
	broker   Broker
	seeder   RaisedSeeder
	logger   *slog.Logger
	interval time.Duration

	mu           sync.Mutex
	pending      map[int64]map[string]map[string]any
	raised       map[int64]float64
	raisedSeeded map[int64]bool
	raisedDirty  map[int64]bool
}

func NewPublisher(broker Broker, seeder RaisedSeeder, logger *slog.Logger) *Publisher {
	return &Publisher{
		broker:       broker,
		seeder:       seeder,
		logger:       logger.With("component", "realtime"),
		interval:     DefaultFlushInterval,
		pending:      make(map[int64]map[string]map[string]any),
		raised:       make(map[int64]float64),
		raisedSeeded: make(map[int64]bool),
		raisedDirty:  make(map[int64]bool),
	}
}

// SetFlushInterval overrides the default batch cadence. Call before Run.
func (p *Publisher) SetFlushInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

func campaignTopic(chainID int64, address string) string {
	return fmt.Sprintf("campaign:%d:%s", chainID, address)
}

func leagueTopic(chainID int64) string {
	return fmt.Sprintf("league:%d", chainID)
}

func (p *Publisher) publish(ctx context.Context, chainID int64, channel string, msg map[string]any) {
	msg["ts"] = time.Now().Unix()
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Warn("marshal realtime message failed", "channel", channel, "error", err)
		return
	}
	if err := p.broker.Publish(ctx, channel, payload); err != nil {
		metrics.RealtimePublishErrors.WithLabelValues(strconv.FormatInt(chainID, 10)).Inc()
		p.logger.Warn("realtime publish failed", "channel", channel, "error", err)
	}
}

// PublishTrade emits one immediate trade message on the campaign topic.
func (p *Publisher) PublishTrade(ctx context.Context, t *model.Trade) {
	p.publish(ctx, t.ChainID, campaignTopic(t.ChainID, t.CampaignAddress), map[string]any{
		"type":          "trade",
		"chain_id":      t.ChainID,
		"campaign":      t.CampaignAddress,
		"tx_hash":       t.TxHash,
		"log_index":     t.LogIndex,
		"side":          t.Side,
		"wallet":        t.Wallet,
		"token_amount":  t.TokenAmount,
		"native_amount": t.NativeAmount,
		"price":         t.Price,
		"block_number":  t.BlockNumber,
		"block_time":    t.BlockTime.Unix(),
	})
}

// PublishCandle emits a lightweight bucket update on the campaign topic:
// only the latest close and accumulated volume. Consumers needing the full
// OHLC row read the store, which stays authoritative.
func (p *Publisher) PublishCandle(ctx context.Context, c *model.Candle) {
	p.publish(ctx, c.ChainID, campaignTopic(c.ChainID, c.CampaignAddress), map[string]any{
		"type":         "candle_upsert",
		"chain_id":     c.ChainID,
		"campaign":     c.CampaignAddress,
		"timeframe":    int64(c.Timeframe),
		"bucket_start": c.BucketStart,
		"close":        c.Close,
		"volume":       c.Volume,
	})
}

// PublishStats emits the recomputed stats snapshot on the campaign topic and
// queues the same fields into the league patch for the next flush.
func (p *Publisher) PublishStats(ctx context.Context, s *model.TokenStats) {
	p.publish(ctx, s.ChainID, campaignTopic(s.ChainID, s.CampaignAddress), map[string]any{
		"type":          "stats_patch",
		"chain_id":      s.ChainID,
		"campaign":      s.CampaignAddress,
		"last_price":    s.LastPrice,
		"sold_quantity": s.SoldQuantity,
		"volume_24h":    s.Volume24h,
		"market_cap":    s.MarketCap,
	})
	p.QueuePatch(s.ChainID, s.CampaignAddress, map[string]any{
		"last_price":    s.LastPrice,
		"sold_quantity": s.SoldQuantity,
		"volume_24h":    s.Volume24h,
		"market_cap":    s.MarketCap,
	})
}

// AnnounceCampaign emits an immediate campaign_created message on the league
// topic when a campaign is first discovered.
func (p *Publisher) AnnounceCampaign(ctx context.Context, c *model.Campaign) {
	p.publish(ctx, c.ChainID, leagueTopic(c.ChainID), map[string]any{
		"type":          "campaign_created",
		"chain_id":      c.ChainID,
		"campaign":      c.Address,
		"token_address": c.TokenAddress,
		"creator":       c.CreatorAddress,
		"name":          c.Name,
		"symbol":        c.Symbol,
		"created_block": c.CreatedBlock,
	})
}

// QueuePatch merges fields into the pending league patch for a campaign.
// Later values for the same key win, so a campaign touched fifty times
// between flushes still produces a single patch entry.
func (p *Publisher) QueuePatch(chainID int64, campaign string, fields map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	byCampaign, ok := p.pending[chainID]
	if !ok {
		byCampaign = make(map[string]map[string]any)
		p.pending[chainID] = byCampaign
	}
	patch, ok := byCampaign[campaign]
	if !ok {
		patch = make(map[string]any)
		byCampaign[campaign] = patch
	}
	for k, v := range fields {
		patch[k] = v
	}
}

// AddRaised applies a signed native delta to the per-chain raised accumulator,
// seeding it from the store on first touch. Buys pass positive deltas, sells
// negative ones.
func (p *Publisher) AddRaised(ctx context.Context, chainID int64, delta float64) {
	p.mu.Lock()
	seeded := p.raisedSeeded[chainID]
	p.mu.Unlock()

	if !seeded {
		sum, err := p.seeder.SumRaisedNative(ctx, chainID)
		if err != nil {
			p.logger.Warn("seed raised total failed", "chain_id", chainID, "error", err)
			return
		}
		p.mu.Lock()
		if !p.raisedSeeded[chainID] {
			p.raised[chainID] = sum
			p.raisedSeeded[chainID] = true
		}
		p.mu.Unlock()
	}

	p.mu.Lock()
	p.raised[chainID] += delta
	p.raisedDirty[chainID] = true
	p.mu.Unlock()
}

// Flush drains the pending map and publishes one campaign_patch message per
// chain with anything queued. Chains with nothing pending publish nothing.
func (p *Publisher) Flush(ctx context.Context) {
	p.mu.Lock()
	pending := p.pending
	p.pending = make(map[int64]map[string]map[string]any)

	raised := make(map[int64]float64, len(p.raisedDirty))
	for chainID := range p.raisedDirty {
		raised[chainID] = p.raised[chainID]
	}
	p.raisedDirty = make(map[int64]bool)
	p.mu.Unlock()

	for chainID, byCampaign := range pending {
		patches := make([]map[string]any, 0, len(byCampaign))
		for campaign, fields := range byCampaign {
			entry := map[string]any{"campaign": campaign}
			for k, v := range fields {
				entry[k] = v
			}
			patches = append(patches, entry)
		}

		msg := map[string]any{
			"type":      "campaign_patch",
			"chain_id":  chainID,
			"campaigns": patches,
		}
		if total, ok := raised[chainID]; ok {
			msg["raised_total"] = total
			delete(raised, chainID)
		}
		p.publish(ctx, chainID, leagueTopic(chainID), msg)

		label := strconv.FormatInt(chainID, 10)
		metrics.RealtimeFlushesTotal.WithLabelValues(label).Inc()
		metrics.RealtimePatchesFlushed.WithLabelValues(label).Add(float64(len(patches)))
	}

	// Raised totals moved on chains with no campaign patches queued.
	for chainID, total := range raised {
		p.publish(ctx, chainID, leagueTopic(chainID), map[string]any{
			"type":         "campaign_patch",
			"chain_id":     chainID,
			"campaigns":    []map[string]any{},
			"raised_total": total,
		})
		metrics.RealtimeFlushesTotal.WithLabelValues(strconv.FormatInt(chainID, 10)).Inc()
	}
}

// Run flushes on the interval until the context ends, then performs one final
// flush so late patches are not lost on shutdown.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Flush(context.WithoutCancel(ctx))
			return ctx.Err()
		case <-ticker.C:
			p.Flush(ctx)
		}
	}
}
