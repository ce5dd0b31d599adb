package repository

import (
	"context"
	"fmt"
	"time"

	"rbac-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// TokenRepository records issued refresh tokens. These rows are an audit
// trail; validity checks always go through the user's refresh slot.
type TokenRepository interface {
	AppendIssued(ctx context.Context, userID int, refreshToken string, expiresAt time.Time) error
	DeactivateByToken(ctx context.Context, refreshToken string) error
	DeactivateAllForUser(ctx context.Context, userID int) error
	ListByUser(ctx context.Context, userID int, limit, offset int) ([]*models.AuthToken, error)
}

type tokenRepository struct {
	db *sqlx.DB
}

func NewTokenRepository(db *sqlx.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) AppendIssued(ctx context.Context, userID int, refreshToken string, expiresAt time.Time) error {
	query := `
		INSERT INTO auth_tokens (user_id, refresh_token, expires_at, is_active, created_at)
		VALUES ($1, $2, $3, TRUE, NOW())
	`

	if _, err := r.db.ExecContext(ctx, query, userID, refreshToken, expiresAt); err != nil {
		return fmt.Errorf("failed to append issued token: %w", err)
	}
	return nil
}

func (r *tokenRepository) DeactivateByToken(ctx context.Context, refreshToken string) error {
	query := `UPDATE auth_tokens SET is_active = FALSE WHERE refresh_token = $1`

	if _, err := r.db.ExecContext(ctx, query, refreshToken); err != nil {
		return fmt.Errorf("failed to deactivate token: %w", err)
	}
	return nil
}

func (r *tokenRepository) DeactivateAllForUser(ctx context.Context, userID int) error {
	query := `UPDATE auth_tokens SET is_active = FALSE WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to deactivate tokens for user: %w", err)
	}
	return nil
}

func (r *tokenRepository) ListByUser(ctx context.Context, userID int, limit, offset int) ([]*models.AuthToken, error) {
	var tokens []*models.AuthToken
	query := `SELECT * FROM auth_tokens WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	if err := r.db.SelectContext(ctx, &tokens, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}
