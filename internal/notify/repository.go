package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hiveride/dispatch/pkg/common"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetDeviceTokens returns all active device tokens registered for a user.
func (r *Repository) GetDeviceTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	query := `
		SELECT token
		FROM device_tokens
		WHERE user_id = $1 AND active = true
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, common.NewInternalError("failed to query device tokens", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, common.NewInternalError("failed to scan device token", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, common.NewInternalError("failed to read device tokens", err)
	}

	return tokens, nil
}

// GetDisplayName returns the user's display name for notification copy.
func (r *Repository) GetDisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	query := `
		SELECT first_name || ' ' || last_name
		FROM users
		WHERE id = $1`

	var name string
	if err := r.db.QueryRow(ctx, query, userID).Scan(&name); err != nil {
		return "", common.NewNotFoundError("user not found", err)
	}

	return name, nil
}
