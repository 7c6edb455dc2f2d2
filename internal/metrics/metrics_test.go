package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_AllVariablesNonNil(t *testing.T) {
	t.Parallel()

	vars := []struct {
		name string
		val  any
	}{
		{"RPCCallsTotal", RPCCallsTotal},
		{"RPCRateLimitWaits", RPCRateLimitWaits},
		{"EndpointRotationsTotal", EndpointRotationsTotal},
		{"ScanChunksTotal", ScanChunksTotal},
		{"ScanLogsFetched", ScanLogsFetched},
		{"ScanRangeSplits", ScanRangeSplits},
		{"ScanBackoffRetries", ScanBackoffRetries},
		{"TradesInserted", TradesInserted},
		{"VotesInserted", VotesInserted},
		{"CampaignsDiscovered", CampaignsDiscovered},
		{"ActivityWritesDropped", ActivityWritesDropped},
		{"ReconcileMissingTotal", ReconcileMissingTotal},
		{"ReconcileRunsTotal", ReconcileRunsTotal},
		{"RealtimeFlushesTotal", RealtimeFlushesTotal},
		{"RealtimePatchesFlushed", RealtimePatchesFlushed},
		{"RealtimePublishErrors", RealtimePublishErrors},
		{"PassDurationSeconds", PassDurationSeconds},
		{"PassErrorsTotal", PassErrorsTotal},
		{"HeadBlock", HeadBlock},
		{"LagBlocks", LagBlocks},
	}

	for _, v := range vars {
		assert.NotNilf(t, v.val, "%s should not be nil", v.name)
	}
}

func TestMetrics_LabeledUseNoPanic(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		RPCCallsTotal.WithLabelValues("97", "eth_getLogs", "ok").Inc()
		ScanChunksTotal.WithLabelValues("97", "factory").Inc()
		TradesInserted.WithLabelValues("97").Inc()
		CampaignsDiscovered.WithLabelValues("97", "reconcile").Inc()
		RealtimePatchesFlushed.WithLabelValues("97").Add(3)
		PassDurationSeconds.WithLabelValues("97", "normal").Observe(1.2)
		HeadBlock.WithLabelValues("97").Set(123456)
		LagBlocks.WithLabelValues("97").Set(12)
	})
}
