package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
)

type capturedMessage struct {
	channel string
	payload map[string]any
}

type fakeBroker struct {
	messages []capturedMessage
	err      error
}

func (b *fakeBroker) Publish(_ context.Context, channel string, payload []byte) error {
	if b.err != nil {
		return b.err
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return err
	}
	b.messages = append(b.messages, capturedMessage{channel: channel, payload: decoded})
	return nil
}

func (b *fakeBroker) byChannel(channel string) []map[string]any {
	var out []map[string]any
	for _, m := range b.messages {
		if m.channel == channel {
			out = append(out, m.payload)
		}
	}
	return out
}

type fakeSeeder struct {
	sum   float64
	err   error
	calls int
}

func (s *fakeSeeder) SumRaisedNative(context.Context, int64) (float64, error) {
	s.calls++
	return s.sum, s.err
}

func newTestPublisher(broker Broker, seeder RaisedSeeder) *Publisher {
	return NewPublisher(broker, seeder, slog.Default())
}

func TestFlush_CoalescesBurstIntoOnePatch(t *testing.T) {
	broker := &fakeBroker{}
	p := newTestPublisher(broker, &fakeSeeder{})

	for i := 0; i < 50; i++ {
		p.QueuePatch(97, "0xcafe", map[string]any{"volume_24h": float64(i)})
	}
	p.Flush(context.Background())

	league := broker.byChannel("league:97")
	require.Len(t, league, 1, "fifty rapid updates collapse into one batch")

	msg := league[0]
	assert.Equal(t, "campaign_patch", msg["type"])
	assert.NotNil(t, msg["ts"])

	campaigns, ok := msg["campaigns"].([]any)
	require.True(t, ok)
	require.Len(t, campaigns, 1)

	patch := campaigns[0].(map[string]any)
	assert.Equal(t, "0xcafe", patch["campaign"])
	assert.Equal(t, float64(49), patch["volume_24h"], "latest value wins")
}

func TestFlush_OneMessagePerChain(t *testing.T) {
	broker := &fakeBroker{}
	p := newTestPublisher(broker, &fakeSeeder{})

	p.QueuePatch(97, "0xaaa", map[string]any{"votes_all": 1})
	p.QueuePatch(97, "0xbbb", map[string]any{"votes_all": 2})
	p.QueuePatch(56, "0xccc", map[string]any{"votes_all": 3})
	p.Flush(context.Background())

	require.Len(t, broker.byChannel("league:97"), 1)
	require.Len(t, broker.byChannel("league:56"), 1)

	campaigns := broker.byChannel("league:97")[0]["campaigns"].([]any)
	assert.Len(t, campaigns, 2)
}

func TestFlush_EmptyPendingPublishesNothing(t *testing.T) {
	broker := &fakeBroker{}
	p := newTestPublisher(broker, &fakeSeeder{})

	p.Flush(context.Background())
	assert.Empty(t, broker.messages)
}

func TestFlush_ClearsPending(t *testing.T) {
	broker := &fakeBroker{}
	p := newTestPublisher(broker, &fakeSeeder{})

	p.QueuePatch(97, "0xcafe", map[string]any{"votes_all": 1})
	p.Flush(context.Background())
	p.Flush(context.Background())

	assert.Len(t, broker.byChannel("league:97"), 1, "second flush has nothing to send")
}

func TestAddRaised_LazySeedThenDeltas(t *testing.T) {
	broker := &fakeBroker{}
	seeder := &fakeSeeder{sum: 10.5}
	p := newTestPublisher(broker, seeder)

	ctx := context.Background()
	p.AddRaised(ctx, 97, 0.01)
	p.AddRaised(ctx, 97, -0.003)
	assert.Equal(t, 1, seeder.calls, "store is consulted once per chain")

	p.Flush(ctx)
	league := broker.byChannel("league:97")
	require.Len(t, league, 1)
	assert.InDelta(t, 10.5+0.01-0.003, league[0]["raised_total"].(float64), 1e-9)
}

func TestAddRaised_SeedFailureDropsDelta(t *testing.T) {
	broker := &fakeBroker{}
	seeder := &fakeSeeder{err: errors.New("db down")}
	p := newTestPublisher(broker, seeder)

	p.AddRaised(context.Background(), 97, 0.01)
	p.Flush(context.Background())
	assert.Empty(t, broker.messages, "unseeded accumulator publishes nothing")
}

func TestPublishTrade_ImmediateOnCampaignTopic(t *testing.T) {
	broker := &fakeBroker{}
	p := newTestPublisher(broker, &fakeSeeder{})

	price := 0.001
	p.PublishTrade(context.Background(), &model.Trade{
		ChainID:         97,
		CampaignAddress: "0xcafe",
		TxHash:          "0xtx",
		Side:            model.TradeSideBuy,
		TokenAmount:     10,
		NativeAmount:    0.01,
		Price:           &price,
	})

	msgs := broker.byChannel("campaign:97:0xcafe")
	require.Len(t, msgs, 1)
	assert.Equal(t, "trade", msgs[0]["type"])
	assert.Equal(t, "buy", msgs[0]["side"])
}

func TestPublishCandle_ShipsOnlyCloseAndVolume(t *testing.T) {
	broker := &fakeBroker{}
	p := newTestPublisher(broker, &fakeSeeder{})

	p.PublishCandle(context.Background(), &model.Candle{
		ChainID:         97,
		CampaignAddress: "0xcafe",
		Timeframe:       60,
		BucketStart:     1700000100,
		Open:            0.0010,
		High:            0.0016,
		Low:             0.0007,
		Close:           0.0007,
		Volume:          0.035,
		TradeCount:      3,
	})

	msgs := broker.byChannel("campaign:97:0xcafe")
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, "candle_upsert", msg["type"])
	assert.Equal(t, float64(60), msg["timeframe"])
	assert.Equal(t, float64(1700000100), msg["bucket_start"])
	assert.Equal(t, 0.0007, msg["close"])
	assert.InDelta(t, 0.035, msg["volume"].(float64), 1e-9)

	// The bucket update is deliberately thin; the store keeps the full row.
	assert.NotContains(t, msg, "open")
	assert.NotContains(t, msg, "high")
	assert.NotContains(t, msg, "low")
	assert.NotContains(t, msg, "trade_count")
}

func TestPublishStats_ImmediateAndQueued(t *testing.T) {
	broker := &fakeBroker{}
	p := newTestPublisher(broker, &fakeSeeder{})

	price := 0.0011
	p.PublishStats(context.Background(), &model.TokenStats{
		ChainID:         97,
		CampaignAddress: "0xcafe",
		LastPrice:       &price,
		SoldQuantity:    12,
	})

	require.Len(t, broker.byChannel("campaign:97:0xcafe"), 1)

	p.Flush(context.Background())
	league := broker.byChannel("league:97")
	require.Len(t, league, 1)
	patch := league[0]["campaigns"].([]any)[0].(map[string]any)
	assert.Equal(t, 0.0011, patch["last_price"])
}

func TestAnnounceCampaign(t *testing.T) {
	broker := &fakeBroker{}
	p := newTestPublisher(broker, &fakeSeeder{})

	p.AnnounceCampaign(context.Background(), &model.Campaign{
		ChainID: 97,
		Address: "0xcafe",
		Name:    "Moon Cat",
		Symbol:  "MCAT",
	})

	msgs := broker.byChannel("league:97")
	require.Len(t, msgs, 1)
	assert.Equal(t, "campaign_created", msgs[0]["type"])
	assert.Equal(t, "MCAT", msgs[0]["symbol"])
}

func TestPublishErrorsAreSwallowed(t *testing.T) {
	broker := &fakeBroker{err: errors.New("redis down")}
	p := newTestPublisher(broker, &fakeSeeder{})

	assert.NotPanics(t, func() {
		p.PublishTrade(context.Background(), &model.Trade{ChainID: 97, CampaignAddress: "0xcafe"})
		p.QueuePatch(97, "0xcafe", map[string]any{"votes_all": 1})
		p.Flush(context.Background())
	})
}
