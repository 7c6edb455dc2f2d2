package ingest

import (
	"fmt"
	"math/big"

	"github.com/launchkit/campaign-indexer/internal/chain/abi"
	"github.com/launchkit/campaign-indexer/internal/domain/model"
	"github.com/launchkit/campaign-indexer/internal/scan"
)

// Topic hashes for every consumed event, computed from canonical signatures.
var (
	TopicCampaignCreated   = abi.EventTopic("CampaignCreated(uint256,address,address,address,string,string)")
	TopicTokensPurchased   = abi.EventTopic("TokensPurchased(address,uint256,uint256)")
	TopicTokensSold        = abi.EventTopic("TokensSold(address,uint256,uint256)")
	TopicCampaignFinalized = abi.EventTopic("CampaignFinalized(address,uint256,uint256,uint256,uint256)")
	TopicVoteCast          = abi.EventTopic("VoteCast(address,address,address,uint256,string)")
)

// CampaignTopics selects the per-campaign curve events in one filter.
func CampaignTopics() []string {
	return []string{TopicTokensPurchased, TopicTokensSold, TopicCampaignFinalized}
}

// NativeDecimals is the decimal scale applied to both token and native raw
// amounts when deriving float analytics.
const NativeDecimals = 18

// CampaignCreatedEvent is the factory's discovery event. Campaign, token and
// creator ride as indexed topics; id and the metadata strings sit in data.
type CampaignCreatedEvent struct {
	ID       *big.Int
	Campaign string
	Token    string
	Creator  string
	Name     string
	Symbol   string
}

// TradeEvent is a decoded TokensPurchased or TokensSold log. The emitting
// contract is the campaign itself, so the campaign address is the log address.
type TradeEvent struct {
	Side         model.TradeSide
	Wallet       string
	TokenAmount  *big.Int
	NativeAmount *big.Int
}

// FinalizedEvent marks a campaign's one-time graduation.
type FinalizedEvent struct {
	Caller          string
	LiquidityTokens *big.Int
	LiquidityNative *big.Int
	ProtocolFee     *big.Int
	CreatorPayout   *big.Int
}

// VoteCastEvent is one vote from the treasury contract.
type VoteCastEvent struct {
	Campaign   string
	Voter      string
	Asset      string
	AmountPaid *big.Int
	Meta       string
}

func DecodeCampaignCreated(log scan.Log) (*CampaignCreatedEvent, error) {
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("campaign created log has %d topics, want 4", len(log.Topics))
	}
	campaign, err := abi.TopicAddress(log.Topics[1])
	if err != nil {
		return nil, err
	}
	token, err := abi.TopicAddress(log.Topics[2])
	if err != nil {
		return nil, err
	}
	creator, err := abi.TopicAddress(log.Topics[3])
	if err != nil {
		return nil, err
	}

	data, err := abi.Decode(log.Data)
	if err != nil {
		return nil, err
	}
	id, err := abi.WordBig(data, 0)
	if err != nil {
		return nil, err
	}
	name, err := abi.WordString(data, 1)
	if err != nil {
		return nil, fmt.Errorf("decode campaign name: %w", err)
	}
	symbol, err := abi.WordString(data, 2)
	if err != nil {
		return nil, fmt.Errorf("decode campaign symbol: %w", err)
	}

	return &CampaignCreatedEvent{
		ID:       id,
		Campaign: campaign,
		Token:    token,
		Creator:  creator,
		Name:     name,
		Symbol:   symbol,
	}, nil
}

func DecodeTrade(log scan.Log) (*TradeEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("trade log has %d topics, want 2", len(log.Topics))
	}

	var side model.TradeSide
	switch log.Topics[0] {
	case TopicTokensPurchased:
		side = model.TradeSideBuy
	case TopicTokensSold:
		side = model.TradeSideSell
	default:
		return nil, fmt.Errorf("not a trade topic: %s", log.Topics[0])
	}

	wallet, err := abi.TopicAddress(log.Topics[1])
	if err != nil {
		return nil, err
	}
	data, err := abi.Decode(log.Data)
	if err != nil {
		return nil, err
	}

	// TokensPurchased data is (amountOut, cost); TokensSold is (amountIn,
	// payout). Word 0 is tokens, word 1 is native either way.
	tokenAmount, err := abi.WordBig(data, 0)
	if err != nil {
		return nil, err
	}
	nativeAmount, err := abi.WordBig(data, 1)
	if err != nil {
		return nil, err
	}

	return &TradeEvent{
		Side:         side,
		Wallet:       wallet,
		TokenAmount:  tokenAmount,
		NativeAmount: nativeAmount,
	}, nil
}

func DecodeFinalized(log scan.Log) (*FinalizedEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("finalized log has %d topics, want 2", len(log.Topics))
	}
	caller, err := abi.TopicAddress(log.Topics[1])
	if err != nil {
		return nil, err
	}
	data, err := abi.Decode(log.Data)
	if err != nil {
		return nil, err
	}

	words := make([]*big.Int, 4)
	for i := range words {
		if words[i], err = abi.WordBig(data, i); err != nil {
			return nil, err
		}
	}
	return &FinalizedEvent{
		Caller:          caller,
		LiquidityTokens: words[0],
		LiquidityNative: words[1],
		ProtocolFee:     words[2],
		CreatorPayout:   words[3],
	}, nil
}

func DecodeVoteCast(log scan.Log) (*VoteCastEvent, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("vote log has %d topics, want 3", len(log.Topics))
	}
	campaign, err := abi.TopicAddress(log.Topics[1])
	if err != nil {
		return nil, err
	}
	voter, err := abi.TopicAddress(log.Topics[2])
	if err != nil {
		return nil, err
	}
	data, err := abi.Decode(log.Data)
	if err != nil {
		return nil, err
	}
	asset, err := abi.WordAddress(data, 0)
	if err != nil {
		return nil, err
	}
	amountPaid, err := abi.WordBig(data, 1)
	if err != nil {
		return nil, err
	}
	meta, err := abi.WordString(data, 2)
	if err != nil {
		return nil, fmt.Errorf("decode vote meta: %w", err)
	}

	return &VoteCastEvent{
		Campaign:   campaign,
		Voter:      voter,
		Asset:      asset,
		AmountPaid: amountPaid,
		Meta:       meta,
	}, nil
}

// SpotPrice derives nativeAmount/tokenAmount as floats at the standard
// decimal scale, nil when the trade moved zero tokens.
func SpotPrice(tokenAmount, nativeAmount *big.Int) *float64 {
	tokens := abi.ScaleDecimals(tokenAmount, NativeDecimals)
	if tokens == 0 {
		return nil
	}
	price := abi.ScaleDecimals(nativeAmount, NativeDecimals) / tokens
	return &price
}
