package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchkit/campaign-indexer/internal/config"
	"github.com/launchkit/campaign-indexer/internal/domain/model"
)

type fakeState struct {
	cursors  map[string]int64
	advances []int64
	getErr   error
}

func (s *fakeState) Get(_ context.Context, _ int64, cursor string) (int64, error) {
	if s.getErr != nil {
		return 0, s.getErr
	}
	return s.cursors[cursor], nil
}

func (s *fakeState) Advance(_ context.Context, _ int64, cursor string, block int64) error {
	if s.cursors == nil {
		s.cursors = make(map[string]int64)
	}
	if block > s.cursors[cursor] {
		s.cursors[cursor] = block
	}
	s.advances = append(s.advances, block)
	return nil
}

func chainCtx(cfg config.ChainConfig, state *fakeState) *ChainContext {
	return &ChainContext{Cfg: cfg, State: state}
}

func TestScanFrom_CursorAdvancesByOne(t *testing.T) {
	o := New(nil, 5000, slog.Default())
	cc := chainCtx(config.ChainConfig{ChainID: 97, Lookback: 50000}, &fakeState{
		cursors: map[string]int64{model.CursorFactory: 1200},
	})

	from, err := o.scanFrom(context.Background(), cc, model.CursorFactory, 10000, ModeNormal)
	require.NoError(t, err)
	assert.Equal(t, int64(1201), from)
}

func TestScanFrom_FreshCursorUsesStartBlock(t *testing.T) {
	o := New(nil, 5000, slog.Default())
	cc := chainCtx(config.ChainConfig{ChainID: 97, StartBlock: 800, Lookback: 50000}, &fakeState{})

	from, err := o.scanFrom(context.Background(), cc, model.CursorFactory, 10000, ModeNormal)
	require.NoError(t, err)
	assert.Equal(t, int64(800), from)
}

func TestScanFrom_FreshCursorFallsBackToLookback(t *testing.T) {
	o := New(nil, 5000, slog.Default())
	cc := chainCtx(config.ChainConfig{ChainID: 97, Lookback: 2000}, &fakeState{})

	from, err := o.scanFrom(context.Background(), cc, model.CursorFactory, 10000, ModeNormal)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), from)
}

func TestScanFrom_LookbackClampedAtGenesis(t *testing.T) {
	o := New(nil, 5000, slog.Default())
	cc := chainCtx(config.ChainConfig{ChainID: 97, Lookback: 50000}, &fakeState{})

	from, err := o.scanFrom(context.Background(), cc, model.CursorFactory, 100, ModeNormal)
	require.NoError(t, err)
	assert.Equal(t, int64(0), from)
}

func TestScanFrom_RepairRewindsBounded(t *testing.T) {
	o := New(nil, 500, slog.Default())
	cc := chainCtx(config.ChainConfig{ChainID: 97, Lookback: 50000}, &fakeState{
		cursors: map[string]int64{model.CursorFactory: 9000},
	})

	from, err := o.scanFrom(context.Background(), cc, model.CursorFactory, 10000, ModeRepair)
	require.NoError(t, err)
	assert.Equal(t, int64(8500), from, "repair rewinds the cursor without persisting the rewind")
}

func TestScanFrom_RepairClampedToWindow(t *testing.T) {
	o := New(nil, 100000, slog.Default())
	cc := chainCtx(config.ChainConfig{ChainID: 97, Lookback: 2000}, &fakeState{
		cursors: map[string]int64{model.CursorFactory: 9000},
	})

	from, err := o.scanFrom(context.Background(), cc, model.CursorFactory, 10000, ModeRepair)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), from, "rewind never escapes the lookback window")
}

func TestScanFrom_StateError(t *testing.T) {
	o := New(nil, 5000, slog.Default())
	cc := chainCtx(config.ChainConfig{ChainID: 97}, &fakeState{getErr: errors.New("db down")})

	_, err := o.scanFrom(context.Background(), cc, model.CursorFactory, 10000, ModeNormal)
	require.Error(t, err)
}

func TestRunPass_OverlapGuard(t *testing.T) {
	o := New(nil, 5000, slog.Default())

	o.running.Store(true)
	assert.False(t, o.RunPass(context.Background(), ModeNormal), "a pass in flight makes the tick a no-op")

	o.running.Store(false)
	assert.True(t, o.RunPass(context.Background(), ModeNormal))
	assert.False(t, o.running.Load(), "guard released after the pass")
}

func TestSnapshots_BeforeFirstPass(t *testing.T) {
	cc := chainCtx(config.ChainConfig{ChainID: 97, Confirmations: 3}, &fakeState{})
	o := New([]*ChainContext{cc}, 5000, slog.Default())

	snaps := o.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(97), snaps[0].ChainID)
	assert.Equal(t, int64(-1), snaps[0].LastRunAgeMs)
	assert.Equal(t, int64(-1), snaps[0].LastErrorAgeMs)
	assert.Zero(t, snaps[0].LagBlocks)
}

func TestSnapshots_AfterProgressAndError(t *testing.T) {
	cc := chainCtx(config.ChainConfig{ChainID: 97, Confirmations: 3}, &fakeState{
		cursors: map[string]int64{model.CursorFactory: 90},
	})
	o := New([]*ChainContext{cc}, 5000, slog.Default())

	o.recordProgress(context.Background(), cc, 100, 97, "97")
	o.recordError(97)
	time.Sleep(time.Millisecond)

	snaps := o.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(100), snaps[0].HeadBlock)
	assert.Equal(t, int64(90), snaps[0].LastIndexedBlock)
	assert.Equal(t, int64(7), snaps[0].LagBlocks)
	assert.GreaterOrEqual(t, snaps[0].LastRunAgeMs, int64(0))
	assert.GreaterOrEqual(t, snaps[0].LastErrorAgeMs, int64(0))
}

func TestSnapshots_LagNeverNegative(t *testing.T) {
	cc := chainCtx(config.ChainConfig{ChainID: 97, Confirmations: 3}, &fakeState{
		cursors: map[string]int64{model.CursorFactory: 200},
	})
	o := New([]*ChainContext{cc}, 5000, slog.Default())

	o.recordProgress(context.Background(), cc, 100, 97, "97")
	assert.Zero(t, o.Snapshots()[0].LagBlocks)
}
