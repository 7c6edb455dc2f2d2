package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
)

type CampaignRepo struct {
	db *DB
}

func NewCampaignRepo(db *DB) *CampaignRepo {
	return &CampaignRepo{db: db}
}

// Upsert inserts the campaign or enriches an existing row. COALESCE/NULLIF
// keep existing non-null (and non-empty) values over incoming blanks, so a
// registry-healed row with no block metadata never clobbers a log-discovered
// one.
func (r *CampaignRepo) Upsert(ctx context.Context, c *model.Campaign) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns (
			chain_id, campaign_address, token_address, creator_address,
			fee_recipient_address, name, symbol, logo_uri,
			created_block, created_at_chain_time, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (chain_id, campaign_address) DO UPDATE SET
			token_address = COALESCE(NULLIF(campaigns.token_address, ''), EXCLUDED.token_address),
			creator_address = COALESCE(NULLIF(campaigns.creator_address, ''), EXCLUDED.creator_address),
			fee_recipient_address = COALESCE(campaigns.fee_recipient_address, EXCLUDED.fee_recipient_address),
			name = COALESCE(NULLIF(campaigns.name, ''), EXCLUDED.name),
			symbol = COALESCE(NULLIF(campaigns.symbol, ''), EXCLUDED.symbol),
			logo_uri = COALESCE(campaigns.logo_uri, EXCLUDED.logo_uri),
			created_block = CASE WHEN campaigns.created_block = 0 THEN EXCLUDED.created_block ELSE campaigns.created_block END,
			created_at_chain_time = COALESCE(campaigns.created_at_chain_time, EXCLUDED.created_at_chain_time),
			updated_at = now()
	`, c.ChainID, c.Address, c.TokenAddress, c.CreatorAddress,
		c.FeeRecipientAddress, c.Name, c.Symbol, c.LogoURI,
		c.CreatedBlock, nullableTime(c.CreatedAtChainTime), c.IsActive,
	)
	if err != nil {
		return fmt.Errorf("upsert campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Get(ctx context.Context, chainID int64, address string) (*model.Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT chain_id, campaign_address, token_address, creator_address,
		       fee_recipient_address, name, symbol, logo_uri,
		       created_block, created_at_chain_time,
		       graduated_block, graduated_at_chain_time,
		       is_active, created_at, updated_at
		FROM campaigns
		WHERE chain_id = $1 AND campaign_address = $2
	`, chainID, address)

	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) ListActive(ctx context.Context, chainID int64) ([]*model.Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT chain_id, campaign_address, token_address, creator_address,
		       fee_recipient_address, name, symbol, logo_uri,
		       created_block, created_at_chain_time,
		       graduated_block, graduated_at_chain_time,
		       is_active, created_at, updated_at
		FROM campaigns
		WHERE chain_id = $1 AND is_active = TRUE
		ORDER BY created_block ASC
	`, chainID)
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *CampaignRepo) ListAddresses(ctx context.Context, chainID int64) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT campaign_address FROM campaigns WHERE chain_id = $1`, chainID)
	if err != nil {
		return nil, fmt.Errorf("list campaign addresses: %w", err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan campaign address: %w", err)
		}
		addresses = append(addresses, addr)
	}
	return addresses, rows.Err()
}

// SetGraduated marks the campaign finalized and inactive. Idempotent: a
// second finalize event leaves the first graduation block in place.
func (r *CampaignRepo) SetGraduated(ctx context.Context, chainID int64, address string, block int64, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			graduated_block = COALESCE(graduated_block, $3),
			graduated_at_chain_time = COALESCE(graduated_at_chain_time, $4),
			is_active = FALSE,
			updated_at = now()
		WHERE chain_id = $1 AND campaign_address = $2
	`, chainID, address, block, at)
	if err != nil {
		return fmt.Errorf("set graduated: %w", err)
	}
	return nil
}

func (r *CampaignRepo) SetFeeRecipient(ctx context.Context, chainID int64, address, recipient string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			fee_recipient_address = COALESCE(fee_recipient_address, $3),
			updated_at = now()
		WHERE chain_id = $1 AND campaign_address = $2
	`, chainID, address, recipient)
	if err != nil {
		return fmt.Errorf("set fee recipient: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var createdAtChain sql.NullTime
	var graduatedAtChain sql.NullTime
	var graduatedBlock sql.NullInt64
	err := row.Scan(
		&c.ChainID, &c.Address, &c.TokenAddress, &c.CreatorAddress,
		&c.FeeRecipientAddress, &c.Name, &c.Symbol, &c.LogoURI,
		&c.CreatedBlock, &createdAtChain,
		&graduatedBlock, &graduatedAtChain,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if createdAtChain.Valid {
		c.CreatedAtChainTime = createdAtChain.Time
	}
	if graduatedBlock.Valid {
		c.GraduatedBlock = &graduatedBlock.Int64
	}
	if graduatedAtChain.Valid {
		c.GraduatedAtChain = &graduatedAtChain.Time
	}
	return &c, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
