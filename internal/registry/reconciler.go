// Package registry heals missed campaign discovery by cross-checking the
// factory contract's authoritative list against the local store. A discovery
// event lost to a pruned range or a provider gap is picked up here on the
// next pass instead of being gone forever.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/launchkit/campaign-indexer/internal/chain/abi"
	"github.com/launchkit/campaign-indexer/internal/domain/model"
	"github.com/launchkit/campaign-indexer/internal/metrics"
	"github.com/launchkit/campaign-indexer/internal/store"
)

// Method selectors for the factory registry, computed at startup.
var (
	selectorCampaignCount = abi.MethodID("campaignCount()")
	selectorCampaignAt    = abi.MethodID("campaignAt(uint256)")
	selectorFeeRecipient  = abi.MethodID("feeRecipient()")
)

// Caller is the slice of the endpoint pool the reconciler needs.
type Caller interface {
	Call(ctx context.Context, to, data string) (string, error)
}

// Reconciler enumerates the on-chain registry and upserts any campaign the
// local store does not know about.
type Reconciler struct {
	chainID    int64
	chainLabel string
	factory    string
	caller     Caller
	campaigns  store.CampaignRepository
	logger     *slog.Logger
}

func NewReconciler(chainID int64, factory string, caller Caller, campaigns store.CampaignRepository, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		chainID:    chainID,
		chainLabel: strconv.FormatInt(chainID, 10),
		factory:    factory,
		caller:     caller,
		campaigns:  campaigns,
		logger:     logger.With("component", "reconciler", "chain_id", chainID),
	}
}

// Run diffs the registry against the store and heals missing campaigns.
// Healed rows carry addresses only; metadata arrives later through monotonic
// enrichment when the corresponding logs are eventually scanned.
func (r *Reconciler) Run(ctx context.Context) error {
	metrics.ReconcileRunsTotal.WithLabelValues(r.chainLabel).Inc()

	count, err := r.campaignCount(ctx)
	if err != nil {
		return fmt.Errorf("registry count: %w", err)
	}

	known, err := r.campaigns.ListAddresses(ctx, r.chainID)
	if err != nil {
		return fmt.Errorf("list known campaigns: %w", err)
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, addr := range known {
		knownSet[addr] = struct{}{}
	}

	healed := 0
	for i := int64(0); i < count; i++ {
		addr, err := r.campaignAt(ctx, i)
		if err != nil {
			return fmt.Errorf("registry entry %d: %w", i, err)
		}
		if _, ok := knownSet[addr]; ok {
			continue
		}

		campaign := &model.Campaign{
			ChainID:            r.chainID,
			Address:            addr,
			CreatedAtChainTime: time.Now().UTC(),
			IsActive:           true,
		}
		if err := r.campaigns.Upsert(ctx, campaign); err != nil {
			return fmt.Errorf("heal campaign %s: %w", addr, err)
		}
		healed++
		metrics.CampaignsDiscovered.WithLabelValues(r.chainLabel, "reconcile").Inc()
		metrics.ReconcileMissingTotal.WithLabelValues(r.chainLabel).Inc()
		r.logger.Warn("healed campaign missing from store", "campaign", addr, "index", i)
	}

	if healed > 0 {
		r.logger.Info("registry reconciliation healed campaigns", "healed", healed, "total", count)
	}
	return nil
}

// FeeRecipient reads the factory's fee recipient address.
func (r *Reconciler) FeeRecipient(ctx context.Context) (string, error) {
	out, err := r.caller.Call(ctx, r.factory, selectorFeeRecipient)
	if err != nil {
		return "", err
	}
	data, err := abi.Decode(out)
	if err != nil {
		return "", err
	}
	return abi.WordAddress(data, 0)
}

func (r *Reconciler) campaignCount(ctx context.Context) (int64, error) {
	out, err := r.caller.Call(ctx, r.factory, selectorCampaignCount)
	if err != nil {
		return 0, err
	}
	data, err := abi.Decode(out)
	if err != nil {
		return 0, err
	}
	count, err := abi.WordBig(data, 0)
	if err != nil {
		return 0, err
	}
	if !count.IsInt64() {
		return 0, fmt.Errorf("campaign count out of range: %s", count)
	}
	return count.Int64(), nil
}

func (r *Reconciler) campaignAt(ctx context.Context, index int64) (string, error) {
	out, err := r.caller.Call(ctx, r.factory, selectorCampaignAt+abi.EncodeUint64(uint64(index)))
	if err != nil {
		return "", err
	}
	data, err := abi.Decode(out)
	if err != nil {
		return "", err
	}
	return abi.WordAddress(data, 0)
}
