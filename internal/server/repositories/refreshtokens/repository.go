// Package refreshtokens declares the server-side repository contract for
// refresh tokens and its PostgreSQL implementation.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// Repository stores issued refresh tokens. Implementations are bound to a
// dbx.DBTX, so the caller decides the transaction every call runs in.
type Repository interface {
	// Create stores a new refresh token for userID.
	Create(ctx context.Context, userID, token string, expiresAt time.Time) (*models.RefreshToken, error)

	// FindByToken returns the token record or common.ErrorNotFound.
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// FindValidByToken returns the record only if it is neither revoked nor
	// expired at now, and locks it until the surrounding transaction ends.
	FindValidByToken(ctx context.Context, token string, now time.Time) (*models.RefreshToken, error)

	// Revoke marks the token revoked at now. Revoking an already revoked
	// token keeps the original timestamp. Absent tokens yield common.ErrorNotFound.
	Revoke(ctx context.Context, token string, now time.Time) (*models.RefreshToken, error)

	// RevokeAllForUser revokes every live token of userID and returns them.
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error)

	// DeleteExpired removes tokens that expired before now, revoked or not,
	// and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
