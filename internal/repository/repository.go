package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/streamlend/lending-service/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertAuthority idempotently stores the authority's public key
func (r *Repository) UpsertAuthority(ctx context.Context, publicKey string) (*models.Authority, error) {
	authority := &models.Authority{PublicKey: publicKey}
	query := `
		INSERT INTO lending.authorities (public_key, created_at, updated_at)
		VALUES ($1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (public_key) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, publicKey).
		Scan(&authority.ID, &authority.CreatedAt, &authority.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert authority: %w", err)
	}
	return authority, nil
}

// FindAuthority retrieves the authority record by public key
func (r *Repository) FindAuthority(ctx context.Context, publicKey string) (*models.Authority, error) {
	authority := &models.Authority{}
	query := `
		SELECT id, public_key, created_at, updated_at
		FROM lending.authorities
		WHERE public_key = $1`
	err := r.db.QueryRowContext(ctx, query, publicKey).
		Scan(&authority.ID, &authority.PublicKey, &authority.CreatedAt, &authority.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find authority: %w", err)
	}
	return authority, nil
}

// CreateToken stores off-chain token metadata
func (r *Repository) CreateToken(ctx context.Context, token *models.Token) error {
	query := `
		INSERT INTO lending.tokens (address, ata_address, decimals, name, authority_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, token.Address, token.AtaAddress, token.Decimals, token.Name, token.AuthorityID).
		Scan(&token.ID, &token.CreatedAt, &token.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// FindTokenByAddress retrieves a token by its on-chain address
func (r *Repository) FindTokenByAddress(ctx context.Context, address string) (*models.Token, error) {
	token := &models.Token{}
	query := `
		SELECT id, address, ata_address, decimals, name, authority_id, created_at, updated_at
		FROM lending.tokens
		WHERE address = $1`
	err := r.db.QueryRowContext(ctx, query, address).
		Scan(&token.ID, &token.Address, &token.AtaAddress, &token.Decimals, &token.Name,
			&token.AuthorityID, &token.CreatedAt, &token.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	return token, nil
}

// TruncateLendingData clears txs, loans and users for a fresh start.
// Authority and token rows are kept, matching the administrative reset
// of the platform without destroying provisioned assets.
func (r *Repository) TruncateLendingData(ctx context.Context) error {
	query := `TRUNCATE lending.txs, lending.loans, lending.users RESTART IDENTITY`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate lending data: %w", err)
	}
	return nil
}
