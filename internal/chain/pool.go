package chain

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/launchkit/campaign-indexer/internal/chain/ratelimit"
	"github.com/launchkit/campaign-indexer/internal/chain/rpc"
	"github.com/launchkit/campaign-indexer/internal/metrics"
	"github.com/launchkit/campaign-indexer/internal/retry"
)

// Pool holds the ordered RPC endpoints for one chain and rotates between them
// on transient failure. Rate-limited and pruned-history errors are propagated
// without rotation: the scanner owns range splitting and backoff for the
// former, and the orchestrator owns skipping for the latter.
type Pool struct {
	chainID    int64
	chainLabel string
	clients    []*rpc.Client
	limiter    *ratelimit.Limiter
	logger     *slog.Logger

	mu  sync.Mutex
	idx int
}

func NewPool(chainID int64, urls []string, limiter *ratelimit.Limiter, logger *slog.Logger) (*Pool, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("chain %d: no rpc endpoints configured", chainID)
	}
	label := strconv.FormatInt(chainID, 10)
	clients := make([]*rpc.Client, 0, len(urls))
	for _, url := range urls {
		clients = append(clients, rpc.NewClient(url, logger))
	}
	return &Pool{
		chainID:    chainID,
		chainLabel: label,
		clients:    clients,
		limiter:    limiter,
		logger:     logger.With("component", "endpoint_pool", "chain_id", chainID),
	}, nil
}

func (p *Pool) ChainID() int64 {
	return p.chainID
}

func (p *Pool) current() *rpc.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clients[p.idx]
}

func (p *Pool) rotate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idx = (p.idx + 1) % len(p.clients)
	metrics.EndpointRotationsTotal.WithLabelValues(p.chainLabel).Inc()
}

// WithRetry invokes op against the current endpoint, rotating on transient
// failures for up to two full rotations of the endpoint list. The last error
// is propagated on exhaustion.
func (p *Pool) WithRetry(ctx context.Context, method string, op func(ctx context.Context, c *rpc.Client) error) error {
	maxAttempts := 2 * len(p.clients)
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}

		client := p.current()
		err := op(ctx, client)
		metrics.RPCCallsTotal.WithLabelValues(p.chainLabel, method, ratelimit.CallStatus(err)).Inc()
		if err == nil {
			return nil
		}

		decision := retry.Classify(err)
		if !decision.IsTransient() {
			return err
		}

		lastErr = err
		p.logger.Warn("rpc call failed, rotating endpoint",
			"method", method,
			"endpoint", client.URL(),
			"attempt", attempt+1,
			"reason", decision.Reason,
			"error", err,
		)
		p.rotate()
	}

	return fmt.Errorf("%s: all endpoints exhausted after %d attempts: %w", method, maxAttempts, lastErr)
}

// BlockNumber returns the current chain head.
func (p *Pool) BlockNumber(ctx context.Context) (int64, error) {
	var head int64
	err := p.WithRetry(ctx, "eth_blockNumber", func(ctx context.Context, c *rpc.Client) error {
		n, err := c.GetBlockNumber(ctx)
		if err != nil {
			return err
		}
		head = n
		return nil
	})
	return head, err
}

// Logs fetches logs for the given filter from the current endpoint.
func (p *Pool) Logs(ctx context.Context, filter rpc.LogFilter) ([]*rpc.Log, error) {
	var logs []*rpc.Log
	err := p.WithRetry(ctx, "eth_getLogs", func(ctx context.Context, c *rpc.Client) error {
		ls, err := c.GetLogs(ctx, filter)
		if err != nil {
			return err
		}
		logs = ls
		return nil
	})
	return logs, err
}

// BlockTimes resolves unix timestamps for the given block numbers using one
// batched header fetch.
func (p *Pool) BlockTimes(ctx context.Context, blockNumbers []int64) (map[int64]int64, error) {
	times := make(map[int64]int64, len(blockNumbers))
	if len(blockNumbers) == 0 {
		return times, nil
	}
	err := p.WithRetry(ctx, "eth_getBlockByNumber", func(ctx context.Context, c *rpc.Client) error {
		blocks, err := c.GetBlocksByNumber(ctx, blockNumbers)
		if err != nil {
			return err
		}
		for i, block := range blocks {
			if block == nil {
				return fmt.Errorf("block %d not available", blockNumbers[i])
			}
			ts, err := rpc.ParseHexInt64(block.Timestamp)
			if err != nil {
				return fmt.Errorf("parse block %d timestamp: %w", blockNumbers[i], err)
			}
			times[blockNumbers[i]] = ts
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return times, nil
}

// Call performs an eth_call and returns the raw return data.
func (p *Pool) Call(ctx context.Context, to, data string) (string, error) {
	var out string
	err := p.WithRetry(ctx, "eth_call", func(ctx context.Context, c *rpc.Client) error {
		result, err := c.Call(ctx, rpc.CallMsg{To: to, Data: data})
		if err != nil {
			return err
		}
		out = result
		return nil
	})
	return out, err
}
