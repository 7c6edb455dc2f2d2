package postgres

import (
	"context"
	"fmt"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
)

type TradeRepo struct {
	db *DB
}

func NewTradeRepo(db *DB) *TradeRepo {
	return &TradeRepo{db: db}
}

// Insert writes the trade once. The (chain_id, tx_hash, log_index) conflict
// target makes replays of any block range safe; the affected-row count tells
// the caller whether this row is novel and downstream aggregates should run.
func (r *TradeRepo) Insert(ctx context.Context, t *model.Trade) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO curve_trades (
			chain_id, tx_hash, log_index, campaign_address,
			block_number, block_time, side, wallet,
			raw_token_amount, raw_native_amount,
			token_amount, native_amount, price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
	`, t.ChainID, t.TxHash, t.LogIndex, t.CampaignAddress,
		t.BlockNumber, t.BlockTime, t.Side, t.Wallet,
		t.RawTokenAmount, t.RawNativeAmount,
		t.TokenAmount, t.NativeAmount, t.Price,
	)
	if err != nil {
		return false, fmt.Errorf("insert trade: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert trade rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *TradeRepo) ListByCampaign(ctx context.Context, chainID int64, campaign string) ([]*model.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT chain_id, tx_hash, log_index, campaign_address,
		       block_number, block_time, side, wallet,
		       raw_token_amount, raw_native_amount,
		       token_amount, native_amount, price, created_at
		FROM curve_trades
		WHERE chain_id = $1 AND campaign_address = $2
		ORDER BY block_number ASC, log_index ASC
	`, chainID, campaign)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var trades []*model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(
			&t.ChainID, &t.TxHash, &t.LogIndex, &t.CampaignAddress,
			&t.BlockNumber, &t.BlockTime, &t.Side, &t.Wallet,
			&t.RawTokenAmount, &t.RawNativeAmount,
			&t.TokenAmount, &t.NativeAmount, &t.Price, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

// SumRaisedNative returns the signed all-time native sum for a chain: buys
// add, sells subtract. Used once per process to seed the realtime raised
// accumulator, which then tracks deltas.
func (r *TradeRepo) SumRaisedNative(ctx context.Context, chainID int64) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var sum float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN side = 'buy' THEN native_amount ELSE -native_amount END), 0)
		FROM curve_trades
		WHERE chain_id = $1
	`, chainID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum raised native: %w", err)
	}
	return sum, nil
}
