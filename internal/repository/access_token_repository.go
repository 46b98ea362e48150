package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrAccessTokenNotFound = errors.New("access token not found")
	ErrAccessTokenRevoked  = errors.New("access token has been revoked")
)

// AccessTokenRepository tracks issued bearer tokens by their jti
type AccessTokenRepository interface {
	Create(ctx context.Context, token *domain.AccessToken) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.AccessToken, error)
	Revoke(ctx context.Context, id uuid.UUID) error
}

type accessTokenRepository struct {
	db Querier
}

// NewAccessTokenRepository creates a new instance of AccessTokenRepository
func NewAccessTokenRepository(db Querier) AccessTokenRepository {
	return &accessTokenRepository{db: db}
}

// Create inserts a new access token record using parameterized queries
func (r *accessTokenRepository) Create(ctx context.Context, token *domain.AccessToken) error {
	query := `
		INSERT INTO access_tokens (id, user_id, expires_at, created_at, revoked)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		token.ID,
		token.UserID,
		token.ExpiresAt,
		token.CreatedAt,
		token.Revoked,
	)

	if err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}

	return nil
}

// FindByID retrieves a live token record. Revoked tokens yield ErrAccessTokenRevoked.
func (r *accessTokenRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.AccessToken, error) {
	query := `
		SELECT id, user_id, expires_at, created_at, revoked
		FROM access_tokens
		WHERE id = $1
	`

	token := &domain.AccessToken{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&token.ID,
		&token.UserID,
		&token.ExpiresAt,
		&token.CreatedAt,
		&token.Revoked,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccessTokenNotFound
		}
		return nil, fmt.Errorf("failed to find access token: %w", err)
	}

	if token.Revoked {
		return nil, ErrAccessTokenRevoked
	}

	return token, nil
}

// Revoke marks an access token as revoked using parameterized queries
func (r *accessTokenRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE access_tokens SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}

	return expectOneRow(result, ErrAccessTokenNotFound)
}
