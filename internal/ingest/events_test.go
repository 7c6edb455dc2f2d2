package ingest

import (
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
	"github.com/launchkit/campaign-indexer/internal/scan"
)

const (
	addrCampaign = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrToken    = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	addrCreator  = "0xcccccccccccccccccccccccccccccccccccccccc"
	addrWallet   = "0xdddddddddddddddddddddddddddddddddddddddd"
)

func wordUint(v uint64) string {
	return fmt.Sprintf("%064x", v)
}

func wordBig(v *big.Int) string {
	return fmt.Sprintf("%064x", v)
}

func wordAddr(addr string) string {
	return strings.Repeat("0", 24) + strings.TrimPrefix(addr, "0x")
}

func topicAddr(addr string) string {
	return "0x" + wordAddr(addr)
}

// encString encodes a dynamic string tail: length word plus padded content.
func encString(s string) string {
	hexed := fmt.Sprintf("%x", s)
	padded := hexed + strings.Repeat("0", 64-len(hexed)%64)
	if len(hexed)%64 == 0 {
		padded = hexed
	}
	return wordUint(uint64(len(s))) + padded
}

func campaignCreatedLog() scan.Log {
	name := encString("Moon Cat")
	// Head is three words; name tail starts at 0x60, symbol tail follows it.
	symbolOffset := uint64(0x60 + len(name)/2)
	data := "0x" +
		wordUint(42) + // id
		wordUint(0x60) +
		wordUint(symbolOffset) +
		name +
		encString("MCAT")

	return scan.Log{
		Address: "0xfac0fac0fac0fac0fac0fac0fac0fac0fac0fac0",
		Topics: []string{
			TopicCampaignCreated,
			topicAddr(addrCampaign),
			topicAddr(addrToken),
			topicAddr(addrCreator),
		},
		Data:        data,
		TxHash:      "0xtx1",
		BlockNumber: 100,
		LogIndex:    0,
		BlockTime:   time.Unix(1700000000, 0).UTC(),
	}
}

func TestDecodeCampaignCreated(t *testing.T) {
	ev, err := DecodeCampaignCreated(campaignCreatedLog())
	require.NoError(t, err)

	assert.Equal(t, int64(42), ev.ID.Int64())
	assert.Equal(t, addrCampaign, ev.Campaign)
	assert.Equal(t, addrToken, ev.Token)
	assert.Equal(t, addrCreator, ev.Creator)
	assert.Equal(t, "Moon Cat", ev.Name)
	assert.Equal(t, "MCAT", ev.Symbol)
}

func TestDecodeCampaignCreated_TooFewTopics(t *testing.T) {
	log := campaignCreatedLog()
	log.Topics = log.Topics[:2]
	_, err := DecodeCampaignCreated(log)
	require.Error(t, err)
}

func tradeLog(topic0 string, tokenAmount, nativeAmount *big.Int) scan.Log {
	return scan.Log{
		Address:     addrCampaign,
		Topics:      []string{topic0, topicAddr(addrWallet)},
		Data:        "0x" + wordBig(tokenAmount) + wordBig(nativeAmount),
		TxHash:      "0xtx2",
		BlockNumber: 200,
		LogIndex:    1,
		BlockTime:   time.Unix(1700000100, 0).UTC(),
	}
}

func TestDecodeTrade_Buy(t *testing.T) {
	tokens := new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))
	cost := big.NewInt(1e16) // 0.01 native

	ev, err := DecodeTrade(tradeLog(TopicTokensPurchased, tokens, cost))
	require.NoError(t, err)

	assert.Equal(t, model.TradeSideBuy, ev.Side)
	assert.Equal(t, addrWallet, ev.Wallet)
	assert.Equal(t, 0, ev.TokenAmount.Cmp(tokens))
	assert.Equal(t, 0, ev.NativeAmount.Cmp(cost))
}

func TestDecodeTrade_Sell(t *testing.T) {
	tokens := new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18))
	payout := big.NewInt(33e14)

	ev, err := DecodeTrade(tradeLog(TopicTokensSold, tokens, payout))
	require.NoError(t, err)

	assert.Equal(t, model.TradeSideSell, ev.Side)
	assert.Equal(t, 0, ev.TokenAmount.Cmp(tokens))
}

func TestDecodeTrade_WrongTopic(t *testing.T) {
	_, err := DecodeTrade(tradeLog(TopicCampaignCreated, big.NewInt(1), big.NewInt(1)))
	require.Error(t, err)
}

func TestDecodeFinalized(t *testing.T) {
	log := scan.Log{
		Address: addrCampaign,
		Topics:  []string{TopicCampaignFinalized, topicAddr(addrCreator)},
		Data: "0x" +
			wordUint(1000) +
			wordUint(2000) +
			wordUint(30) +
			wordUint(40),
		BlockNumber: 300,
		LogIndex:    2,
	}

	ev, err := DecodeFinalized(log)
	require.NoError(t, err)
	assert.Equal(t, addrCreator, ev.Caller)
	assert.Equal(t, int64(1000), ev.LiquidityTokens.Int64())
	assert.Equal(t, int64(2000), ev.LiquidityNative.Int64())
	assert.Equal(t, int64(30), ev.ProtocolFee.Int64())
	assert.Equal(t, int64(40), ev.CreatorPayout.Int64())
}

func TestDecodeVoteCast(t *testing.T) {
	log := scan.Log{
		Address: "0x9999999999999999999999999999999999999999",
		Topics: []string{
			TopicVoteCast,
			topicAddr(addrCampaign),
			topicAddr(addrWallet),
		},
		Data: "0x" +
			wordAddr(addrToken) +
			wordUint(5e9) +
			wordUint(0x60) +
			encString("league:summer"),
		BlockNumber: 400,
		LogIndex:    3,
	}

	ev, err := DecodeVoteCast(log)
	require.NoError(t, err)
	assert.Equal(t, addrCampaign, ev.Campaign)
	assert.Equal(t, addrWallet, ev.Voter)
	assert.Equal(t, addrToken, ev.Asset)
	assert.Equal(t, int64(5e9), ev.AmountPaid.Int64())
	assert.Equal(t, "league:summer", ev.Meta)
}

func TestSpotPrice(t *testing.T) {
	tokens := new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))
	cost := big.NewInt(1e16)

	price := SpotPrice(tokens, cost)
	require.NotNil(t, price)
	assert.InDelta(t, 0.001, *price, 1e-12)
}

func TestSpotPrice_ZeroTokensIsNil(t *testing.T) {
	assert.Nil(t, SpotPrice(big.NewInt(0), big.NewInt(1e18)))
}

func TestTopicHashesAreDistinct(t *testing.T) {
	topics := []string{
		TopicCampaignCreated,
		TopicTokensPurchased,
		TopicTokensSold,
		TopicCampaignFinalized,
		TopicVoteCast,
	}
	seen := make(map[string]bool)
	for _, topic := range topics {
		assert.Len(t, topic, 66)
		assert.False(t, seen[topic])
		seen[topic] = true
	}
}
