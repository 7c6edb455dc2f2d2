// Package orchestrator drives indexing passes. One pass walks every
// configured chain sequentially; within a chain the factory, the vote
// treasury and each active campaign are scanned sequentially, which keeps
// request concurrency bounded against rate-limited public endpoints.
package orchestrator

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/launchkit/campaign-indexer/internal/chain"
	"github.com/launchkit/campaign-indexer/internal/config"
	"github.com/launchkit/campaign-indexer/internal/domain/model"
	"github.com/launchkit/campaign-indexer/internal/ingest"
	"github.com/launchkit/campaign-indexer/internal/metrics"
	"github.com/launchkit/campaign-indexer/internal/registry"
	"github.com/launchkit/campaign-indexer/internal/retry"
	"github.com/launchkit/campaign-indexer/internal/scan"
	"github.com/launchkit/campaign-indexer/internal/store"
)

// Mode selects between lookback-bounded catch-up and bounded rewind-replay.
// Repair is chosen by the scheduler on its own cadence, never by error state.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeRepair Mode = "repair"
)

// ChainContext bundles everything one chain's pass needs.
type ChainContext struct {
	Cfg        config.ChainConfig
	Pool       *chain.Pool
	Scanner    *scan.Scanner
	Ledger     *ingest.Ledger
	Reconciler *registry.Reconciler
	Campaigns  store.CampaignRepository
	State      store.StateRepository
}

// LagSnapshot is the per-chain progress report served on the ops surface.
type LagSnapshot struct {
	ChainID          int64 `json:"chainId"`
	HeadBlock        int64 `json:"headBlock"`
	LastIndexedBlock int64 `json:"lastIndexedBlock"`
	LagBlocks        int64 `json:"lagBlocks"`
	LastRunAgeMs     int64 `json:"lastRunAgeMs"`
	LastErrorAgeMs   int64 `json:"lastErrorAgeMs"`
}

type chainHealth struct {
	head        int64
	lastIndexed int64
	lastRun     time.Time
	lastError   time.Time
}

// Orchestrator owns the pass loop and the overlap guard.
type Orchestrator struct {
	chains       []*ChainContext
	rewindBlocks int64
	logger       *slog.Logger

	running atomic.Bool

	mu     sync.Mutex
	health map[int64]*chainHealth
}

func New(chains []*ChainContext, rewindBlocks int64, logger *slog.Logger) *Orchestrator {
	if rewindBlocks <= 0 {
		rewindBlocks = 5000
	}
	return &Orchestrator{
		chains:       chains,
		rewindBlocks: rewindBlocks,
		logger:       logger.With("component", "orchestrator"),
		health:       make(map[int64]*chainHealth),
	}
}

// RunPass executes one full multi-chain pass. A pass already in flight makes
// this call a no-op (returns false): a slow pass delays the next tick instead
// of running twice.
func (o *Orchestrator) RunPass(ctx context.Context, mode Mode) bool {
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Info("pass already running, skipping tick", "mode", mode)
		return false
	}
	defer o.running.Store(false)

	runID := uuid.NewString()
	logger := o.logger.With("run_id", runID, "mode", string(mode))
	logger.Info("pass starting", "chains", len(o.chains))

	for _, cc := range o.chains {
		o.runChain(ctx, cc, mode, logger)
		if ctx.Err() != nil {
			return true
		}
	}

	logger.Info("pass finished")
	return true
}

// runChain indexes one chain. Failures here never propagate: one chain's
// trouble must not starve its siblings of their turn.
func (o *Orchestrator) runChain(ctx context.Context, cc *ChainContext, mode Mode, logger *slog.Logger) {
	chainID := cc.Cfg.ChainID
	label := strconv.FormatInt(chainID, 10)
	logger = logger.With("chain_id", chainID, "chain", cc.Cfg.Name)

	tracer := otel.Tracer("campaign-indexer/orchestrator")
	ctx, span := tracer.Start(ctx, "chain_pass")
	span.SetAttributes(
		attribute.Int64("chain.id", chainID),
		attribute.String("pass.mode", string(mode)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.PassDurationSeconds.WithLabelValues(label, string(mode)).Observe(time.Since(start).Seconds())
	}()

	head, err := cc.Pool.BlockNumber(ctx)
	if err != nil {
		o.recordError(chainID)
		metrics.PassErrorsTotal.WithLabelValues(label).Inc()
		logger.Error("head fetch failed, skipping chain", "error", err)
		return
	}
	target := head - cc.Cfg.Confirmations
	if target < 0 {
		target = 0
	}
	metrics.HeadBlock.WithLabelValues(label).Set(float64(head))

	cache := scan.NewTimeCache()

	o.scanTarget(ctx, cc, model.CursorFactory, scan.Filter{
		Address: cc.Cfg.Factory,
		Topics:  []string{ingest.TopicCampaignCreated},
	}, target, mode, cache, cc.Ledger.HandleFactoryLogs, logger)

	if err := cc.Reconciler.Run(ctx); err != nil {
		o.recordError(chainID)
		metrics.PassErrorsTotal.WithLabelValues(label).Inc()
		logger.Error("registry reconciliation failed", "error", err)
	}

	if cc.Cfg.VoteTreasury != "" {
		o.scanTarget(ctx, cc, model.CursorVotes, scan.Filter{
			Address: cc.Cfg.VoteTreasury,
			Topics:  []string{ingest.TopicVoteCast},
		}, target, mode, cache, cc.Ledger.HandleVoteLogs, logger)
	}

	o.scanCampaigns(ctx, cc, target, mode, cache, logger)
	o.hydrateFeeRecipients(ctx, cc, logger)

	o.recordProgress(ctx, cc, head, target, label)
}

// scanTarget runs one cursor-tracked scan. Pruned-history errors skip the
// target for this pass; the cursor stays put and the next pass retries.
func (o *Orchestrator) scanTarget(ctx context.Context, cc *ChainContext, cursor string, filter scan.Filter, target int64, mode Mode, cache *scan.TimeCache, handle scan.Handler, logger *slog.Logger) {
	chainID := cc.Cfg.ChainID
	label := strconv.FormatInt(chainID, 10)

	from, err := o.scanFrom(ctx, cc, cursor, target, mode)
	if err != nil {
		o.recordError(chainID)
		metrics.PassErrorsTotal.WithLabelValues(label).Inc()
		logger.Error("cursor read failed", "cursor", cursor, "error", err)
		return
	}
	if from > target {
		return
	}

	advance := func(ctx context.Context, block int64) error {
		return cc.State.Advance(ctx, chainID, cursor, block)
	}
	err = cc.Scanner.Scan(ctx, cursor, filter, from, target, cache, handle, advance)
	if err == nil {
		return
	}

	o.recordError(chainID)
	metrics.PassErrorsTotal.WithLabelValues(label).Inc()
	if retry.Classify(err).IsPruned() {
		logger.Warn("history pruned, skipping scan target this pass",
			"cursor", cursor, "from", from, "to", target, "error", err)
		return
	}
	logger.Error("scan target failed", "cursor", cursor, "from", from, "to", target, "error", err)
}

// scanCampaigns scans each active campaign under its own cursor. One
// campaign's failure does not abort its siblings.
func (o *Orchestrator) scanCampaigns(ctx context.Context, cc *ChainContext, target int64, mode Mode, cache *scan.TimeCache, logger *slog.Logger) {
	campaigns, err := cc.Campaigns.ListActive(ctx, cc.Cfg.ChainID)
	if err != nil {
		o.recordError(cc.Cfg.ChainID)
		metrics.PassErrorsTotal.WithLabelValues(strconv.FormatInt(cc.Cfg.ChainID, 10)).Inc()
		logger.Error("list active campaigns failed", "error", err)
		return
	}

	for _, campaign := range campaigns {
		if ctx.Err() != nil {
			return
		}
		// Campaign contracts emit only the curve events, so the address
		// filter alone is sufficient; the ledger dispatches on topic0.
		o.scanTarget(ctx, cc, model.CampaignCursor(campaign.Address), scan.Filter{
			Address: campaign.Address,
		}, target, mode, cache, cc.Ledger.HandleCampaignLogs, logger)
	}
}

// hydrateFeeRecipients backfills the nullable fee recipient on campaigns that
// still miss it, one factory read per pass shared by all of them.
func (o *Orchestrator) hydrateFeeRecipients(ctx context.Context, cc *ChainContext, logger *slog.Logger) {
	campaigns, err := cc.Campaigns.ListActive(ctx, cc.Cfg.ChainID)
	if err != nil {
		logger.Error("list campaigns for fee recipient hydration failed", "error", err)
		return
	}

	var recipient string
	for _, campaign := range campaigns {
		if campaign.FeeRecipientAddress != nil {
			continue
		}
		if recipient == "" {
			recipient, err = cc.Reconciler.FeeRecipient(ctx)
			if err != nil {
				logger.Warn("fee recipient read failed", "error", err)
				return
			}
		}
		if err := cc.Campaigns.SetFeeRecipient(ctx, cc.Cfg.ChainID, campaign.Address, recipient); err != nil {
			logger.Warn("fee recipient write failed", "campaign", campaign.Address, "error", err)
		}
	}
}

// scanFrom resolves the scan window start: the cursor, else the configured
// start block, else target minus lookback. Repair mode rewinds the cursor by
// a bounded distance without ever writing the rewind back.
func (o *Orchestrator) scanFrom(ctx context.Context, cc *ChainContext, cursor string, target int64, mode Mode) (int64, error) {
	last, err := cc.State.Get(ctx, cc.Cfg.ChainID, cursor)
	if err != nil {
		return 0, err
	}

	windowStart := target - cc.Cfg.Lookback
	if windowStart < 0 {
		windowStart = 0
	}

	if last == 0 {
		if cc.Cfg.StartBlock > 0 {
			return cc.Cfg.StartBlock, nil
		}
		return windowStart, nil
	}

	if mode == ModeRepair {
		from := last - o.rewindBlocks
		if from < windowStart {
			from = windowStart
		}
		return from, nil
	}
	return last + 1, nil
}

func (o *Orchestrator) recordProgress(ctx context.Context, cc *ChainContext, head, target int64, label string) {
	lastIndexed, err := cc.State.Get(ctx, cc.Cfg.ChainID, model.CursorFactory)
	if err != nil {
		lastIndexed = 0
	}
	lag := target - lastIndexed
	if lag < 0 {
		lag = 0
	}
	metrics.LagBlocks.WithLabelValues(label).Set(float64(lag))

	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.health[cc.Cfg.ChainID]
	if !ok {
		h = &chainHealth{}
		o.health[cc.Cfg.ChainID] = h
	}
	h.head = head
	h.lastIndexed = lastIndexed
	h.lastRun = time.Now()
}

func (o *Orchestrator) recordError(chainID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.health[chainID]
	if !ok {
		h = &chainHealth{}
		o.health[chainID] = h
	}
	h.lastError = time.Now()
}

// Snapshots reports per-chain lag for the ops surface. Ages are -1 until the
// corresponding event has happened at least once.
func (o *Orchestrator) Snapshots() []LagSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	out := make([]LagSnapshot, 0, len(o.chains))
	for _, cc := range o.chains {
		snap := LagSnapshot{ChainID: cc.Cfg.ChainID, LastRunAgeMs: -1, LastErrorAgeMs: -1}
		if h, ok := o.health[cc.Cfg.ChainID]; ok {
			snap.HeadBlock = h.head
			snap.LastIndexedBlock = h.lastIndexed
			snap.LagBlocks = h.head - cc.Cfg.Confirmations - h.lastIndexed
			if snap.LagBlocks < 0 {
				snap.LagBlocks = 0
			}
			if !h.lastRun.IsZero() {
				snap.LastRunAgeMs = now.Sub(h.lastRun).Milliseconds()
			}
			if !h.lastError.IsZero() {
				snap.LastErrorAgeMs = now.Sub(h.lastError).Milliseconds()
			}
		}
		out = append(out, snap)
	}
	return out
}
