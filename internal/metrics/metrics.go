package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters and histograms, partitioned by chain id.

var (
	// RPC layer
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total RPC calls by method and status",
	}, []string{"chain_id", "method", "status"})

	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "Total local token-bucket waits before RPC calls",
	}, []string{"chain_id"})

	EndpointRotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "rpc",
		Name:      "endpoint_rotations_total",
		Help:      "Total endpoint rotations after transient failures",
	}, []string{"chain_id"})

	// Scanner
	ScanChunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "scan",
		Name:      "chunks_total",
		Help:      "Total block-range chunks scanned to completion",
	}, []string{"chain_id", "cursor"})

	ScanLogsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "scan",
		Name:      "logs_fetched_total",
		Help:      "Total logs fetched from chain RPC",
	}, []string{"chain_id", "cursor"})

	ScanRangeSplits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "scan",
		Name:      "range_splits_total",
		Help:      "Total rate-limit-triggered range splits",
	}, []string{"chain_id"})

	ScanBackoffRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "scan",
		Name:      "backoff_retries_total",
		Help:      "Total backoff retries after range splitting bottomed out",
	}, []string{"chain_id"})

	// Ledger
	TradesInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "ledger",
		Name:      "trades_inserted_total",
		Help:      "Total novel trades written to the ledger",
	}, []string{"chain_id"})

	VotesInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "ledger",
		Name:      "votes_inserted_total",
		Help:      "Total novel votes written to the ledger",
	}, []string{"chain_id"})

	CampaignsDiscovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "ledger",
		Name:      "campaigns_discovered_total",
		Help:      "Total campaigns discovered, by source (scan or reconcile)",
	}, []string{"chain_id", "source"})

	ActivityWritesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "ledger",
		Name:      "activity_writes_dropped_total",
		Help:      "Total audit-log writes dropped on the non-critical path",
	}, []string{"chain_id"})

	// Reconciler
	ReconcileMissingTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "reconcile",
		Name:      "missing_campaigns_total",
		Help:      "Total campaigns healed from the on-chain registry",
	}, []string{"chain_id"})

	ReconcileRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Total registry reconciliation runs",
	}, []string{"chain_id"})

	// Realtime
	RealtimeFlushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "realtime",
		Name:      "flushes_total",
		Help:      "Total realtime flush cycles that published a batch",
	}, []string{"chain_id"})

	RealtimePatchesFlushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "realtime",
		Name:      "patches_flushed_total",
		Help:      "Total per-campaign patches included in flushed batches",
	}, []string{"chain_id"})

	RealtimePublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "realtime",
		Name:      "publish_errors_total",
		Help:      "Total swallowed publish failures",
	}, []string{"chain_id"})

	// Orchestrator
	PassDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "campaign_indexer",
		Subsystem: "orchestrator",
		Name:      "pass_duration_seconds",
		Help:      "Per-chain pass duration",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"chain_id", "mode"})

	PassErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign_indexer",
		Subsystem: "orchestrator",
		Name:      "pass_errors_total",
		Help:      "Total per-chain pass errors",
	}, []string{"chain_id"})

	HeadBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "campaign_indexer",
		Subsystem: "orchestrator",
		Name:      "head_block",
		Help:      "Latest observed chain head",
	}, []string{"chain_id"})

	LagBlocks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "campaign_indexer",
		Subsystem: "orchestrator",
		Name:      "lag_blocks",
		Help:      "Blocks between scan target and last indexed block",
	}, []string{"chain_id"})
)
