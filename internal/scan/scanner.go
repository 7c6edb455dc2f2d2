package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/launchkit/campaign-indexer/internal/chain/rpc"
	"github.com/launchkit/campaign-indexer/internal/metrics"
	"github.com/launchkit/campaign-indexer/internal/retry"
)

// Log is a decoded-enough chain log: hex fields parsed, timestamp resolved.
type Log struct {
	Address     string
	Topics      []string
	Data        string
	TxHash      string
	BlockNumber int64
	LogIndex    int64
	BlockTime   time.Time
}

// Client is the slice of the endpoint pool the scanner needs.
type Client interface {
	Logs(ctx context.Context, filter rpc.LogFilter) ([]*rpc.Log, error)
	BlockTimes(ctx context.Context, blockNumbers []int64) (map[int64]int64, error)
}

// Handler processes the logs of one completed chunk, in deterministic
// (blockNumber, logIndex) order.
type Handler func(ctx context.Context, logs []Log) error

// AdvanceFunc commits the cursor past a completed chunk. It is called after
// the handler succeeds, which makes one chunk the unit of resumability.
type AdvanceFunc func(ctx context.Context, block int64) error

// Filter selects logs by emitting contract and topic0.
type Filter struct {
	Address string
	Topics  []string
}

// TimeCache caches block timestamps for one orchestrator pass so sibling scan
// targets do not refetch the same headers. Passes are sequential, so no lock.
type TimeCache struct {
	times map[int64]int64
}

func NewTimeCache() *TimeCache {
	return &TimeCache{times: make(map[int64]int64)}
}

const (
	defaultMinChunk      = 64
	defaultMaxSplitDepth = 12
)

// Scanner fetches event logs in bounded block-range chunks. Rate-limited
// ranges are split in half recursively before falling back to exponential
// backoff on the same endpoint; every other failure propagates to the caller.
type Scanner struct {
	chainLabel    string
	client        Client
	chunkSize     int64
	minChunk      int64
	maxSplitDepth int
	backoff       retry.Backoff
	logger        *slog.Logger
}

func NewScanner(chainID int64, client Client, chunkSize int64, logger *slog.Logger) *Scanner {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	return &Scanner{
		chainLabel:    strconv.FormatInt(chainID, 10),
		client:        client,
		chunkSize:     chunkSize,
		minChunk:      defaultMinChunk,
		maxSplitDepth: defaultMaxSplitDepth,
		backoff:       retry.DefaultBackoff(),
		logger:        logger.With("component", "scanner"),
	}
}

// Scan walks [from, to] inclusive in chunks. After each chunk's logs are
// handled, the cursor is advanced past the chunk, so a crash resumes mid-range
// at the cost of refetching at most one chunk.
func (s *Scanner) Scan(ctx context.Context, cursor string, filter Filter, from, to int64, cache *TimeCache, handle Handler, advance AdvanceFunc) error {
	if from > to {
		return nil
	}
	if cache == nil {
		cache = NewTimeCache()
	}

	for start := from; start <= to; start += s.chunkSize {
		end := start + s.chunkSize - 1
		if end > to {
			end = to
		}

		rawLogs, err := s.fetchRange(ctx, filter, start, end, 0)
		if err != nil {
			return fmt.Errorf("fetch range [%d, %d]: %w", start, end, err)
		}

		logs, err := s.prepare(ctx, rawLogs, cache)
		if err != nil {
			return fmt.Errorf("prepare logs [%d, %d]: %w", start, end, err)
		}

		if len(logs) > 0 {
			if err := handle(ctx, logs); err != nil {
				return fmt.Errorf("handle logs [%d, %d]: %w", start, end, err)
			}
		}

		if err := advance(ctx, end); err != nil {
			return fmt.Errorf("advance cursor %s to %d: %w", cursor, end, err)
		}

		metrics.ScanChunksTotal.WithLabelValues(s.chainLabel, cursor).Inc()
		metrics.ScanLogsFetched.WithLabelValues(s.chainLabel, cursor).Add(float64(len(logs)))
	}

	return nil
}

// fetchRange fetches one range, splitting in half on rate limits until the
// range bottoms out at minChunk or maxSplitDepth, then backing off on the
// same endpoint. Pruned-history and terminal errors propagate untouched.
func (s *Scanner) fetchRange(ctx context.Context, filter Filter, from, to int64, depth int) ([]*rpc.Log, error) {
	logs, err := s.client.Logs(ctx, s.logFilter(filter, from, to))
	if err == nil {
		return logs, nil
	}

	decision := retry.Classify(err)
	if !decision.IsRateLimited() {
		return nil, err
	}

	if to > from && (to-from+1) > s.minChunk && depth < s.maxSplitDepth {
		metrics.ScanRangeSplits.WithLabelValues(s.chainLabel).Inc()
		s.logger.Debug("rate limited, splitting range",
			"from", from, "to", to, "depth", depth)

		mid := from + (to-from)/2
		left, err := s.fetchRange(ctx, filter, from, mid, depth+1)
		if err != nil {
			return nil, err
		}
		right, err := s.fetchRange(ctx, filter, mid+1, to, depth+1)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	}

	for attempt := 1; attempt <= s.backoff.MaxAttempts; attempt++ {
		metrics.ScanBackoffRetries.WithLabelValues(s.chainLabel).Inc()
		if serr := s.backoff.Sleep(ctx, attempt); serr != nil {
			return nil, serr
		}
		logs, err = s.client.Logs(ctx, s.logFilter(filter, from, to))
		if err == nil {
			return logs, nil
		}
		if !retry.Classify(err).IsRateLimited() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("rate limited after %d backoff attempts: %w", s.backoff.MaxAttempts, err)
}

func (s *Scanner) logFilter(filter Filter, from, to int64) rpc.LogFilter {
	return rpc.LogFilter{
		FromBlock: rpc.FormatHexInt64(from),
		ToBlock:   rpc.FormatHexInt64(to),
		Address:   filter.Address,
		Topics:    filter.Topics,
	}
}

// prepare parses raw logs, sorts them by (blockNumber, logIndex) so aggregate
// updates are deterministic regardless of provider ordering, and resolves
// block timestamps through the per-pass cache.
func (s *Scanner) prepare(ctx context.Context, rawLogs []*rpc.Log, cache *TimeCache) ([]Log, error) {
	logs := make([]Log, 0, len(rawLogs))
	for _, raw := range rawLogs {
		if raw == nil || raw.Removed {
			continue
		}
		blockNumber, err := rpc.ParseHexInt64(raw.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("parse log block number: %w", err)
		}
		logIndex, err := rpc.ParseHexInt64(raw.LogIndex)
		if err != nil {
			return nil, fmt.Errorf("parse log index: %w", err)
		}
		logs = append(logs, Log{
			Address:     raw.Address,
			Topics:      raw.Topics,
			Data:        raw.Data,
			TxHash:      raw.TransactionHash,
			BlockNumber: blockNumber,
			LogIndex:    logIndex,
		})
	}

	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].LogIndex < logs[j].LogIndex
	})

	missing := make([]int64, 0)
	seen := make(map[int64]struct{})
	for _, log := range logs {
		if _, ok := cache.times[log.BlockNumber]; ok {
			continue
		}
		if _, ok := seen[log.BlockNumber]; ok {
			continue
		}
		seen[log.BlockNumber] = struct{}{}
		missing = append(missing, log.BlockNumber)
	}
	if len(missing) > 0 {
		times, err := s.client.BlockTimes(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("resolve block times: %w", err)
		}
		for num, ts := range times {
			cache.times[num] = ts
		}
	}

	for i := range logs {
		ts, ok := cache.times[logs[i].BlockNumber]
		if !ok {
			return nil, fmt.Errorf("no timestamp for block %d", logs[i].BlockNumber)
		}
		logs[i].BlockTime = time.Unix(ts, 0).UTC()
	}

	return logs, nil
}
