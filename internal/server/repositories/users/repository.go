// Package users declares the user repository contract and its PostgreSQL
// implementation. Soft-deleted users are invisible to every read.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// GetByLogin matches login against email or username in one lookup.
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	SoftDelete(ctx context.Context, id string, now time.Time) error
	// List returns live users, newest first.
	List(ctx context.Context, skip, limit int) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}
