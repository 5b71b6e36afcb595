package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// UserService manages user records on behalf of the account owner and of
// superusers.
type UserService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	hasher          PasswordHasher
	logger          logging.Logger
	now             func() time.Time
	defaultPageSize int
	maxPageSize     int
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher, cfg *config.Config,
	logger logging.Logger, opts ...Option) *UserService {
	o := buildOptions(opts)
	return &UserService{
		db:              db,
		repomanager:     m,
		hasher:          hasher,
		logger:          logger.With("module", "user_service"),
		now:             o.now,
		defaultPageSize: cfg.DefaultPageSize,
		maxPageSize:     cfg.MaxPageSize,
	}
}

// CreateSuperuser stores an active, verified superuser. On top of the
// registration rules the password must pass ValidatePasswordStrength.
func (s *UserService) CreateSuperuser(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := ValidatePasswordStrength(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	var created *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)
		if err := ensureAbsent(users.GetByEmail(ctx, in.Email)); err != nil {
			if errors.Is(err, common.ErrorConflict) {
				return ErrEmailTaken
			}
			return err
		}
		if err := ensureAbsent(users.GetByUsername(ctx, in.Username)); err != nil {
			if errors.Is(err, common.ErrorConflict) {
				return ErrUsernameTaken
			}
			return err
		}

		u, err := users.Create(ctx, &models.User{
			Email:        in.Email,
			Username:     in.Username,
			PasswordHash: hash,
			FullName:     in.FullName,
			IsActive:     true,
			IsSuperuser:  true,
			IsVerified:   true,
		})
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, s.translate(ctx, "create superuser", err)
	}

	s.logger.Info(ctx, "superuser created", "user_id", created.ID)
	return created, nil
}

// Get returns the live user with the given id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	if err := checkUserID(id); err != nil {
		return nil, err
	}
	u, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(ctx, "get user", err)
	}
	return u, nil
}

// UpdateMe applies a self-service patch. Only email, full name and password
// may change.
func (s *UserService) UpdateMe(ctx context.Context, current *models.User, patch models.UserPatch) (*models.User, error) {
	if patch.TouchesPrivileges() {
		return nil, fmt.Errorf("%w: account flags cannot be changed here", common.ErrorValidation)
	}
	return s.update(ctx, current.ID, patch)
}

// Update applies a patch to any user, including account flags.
func (s *UserService) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	return s.update(ctx, id, patch)
}

func (s *UserService) update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	if err := checkUserID(id); err != nil {
		return nil, err
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	var hash string
	if patch.Password != nil {
		h, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
		}
		hash = h
	}

	var updated *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)

		u, err := users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			updated = u
			return nil
		}

		if patch.Email != nil && *patch.Email != u.Email {
			other, err := users.GetByEmail(ctx, *patch.Email)
			switch {
			case err == nil && other.ID != u.ID:
				return ErrEmailTaken
			case err != nil && !errors.Is(err, common.ErrorNotFound):
				return err
			}
		}

		wasActive := u.IsActive
		patch.ApplyTo(u)
		if hash != "" {
			u.PasswordHash = hash
		}

		updated, err = users.Update(ctx, u)
		if err != nil {
			if errors.Is(err, common.ErrorConflict) {
				return ErrEmailTaken
			}
			return err
		}

		if wasActive && !updated.IsActive {
			if _, err := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, id, s.now()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.translate(ctx, "update user", err)
	}
	return updated, nil
}

// Delete soft-deletes the user and revokes all of their refresh tokens.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := checkUserID(id); err != nil {
		return err
	}
	now := s.now()
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).SoftDelete(ctx, id, now); err != nil {
			return err
		}
		_, err := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, id, now)
		return err
	})
	if err != nil {
		return s.translate(ctx, "delete user", err)
	}
	s.logger.Info(ctx, "user deleted", "user_id", id)
	return nil
}

// List returns one page of live users, newest first. A zero limit selects
// the default page size and larger limits are capped at the maximum.
func (s *UserService) List(ctx context.Context, skip, limit int) (*models.Page, error) {
	if skip < 0 {
		return nil, fmt.Errorf("%w: skip must not be negative", common.ErrorValidation)
	}
	switch {
	case limit < 0:
		return nil, fmt.Errorf("%w: limit must not be negative", common.ErrorValidation)
	case limit == 0:
		limit = s.defaultPageSize
	case limit > s.maxPageSize:
		limit = s.maxPageSize
	}

	repo := s.repomanager.Users(s.db)
	total, err := repo.Count(ctx)
	if err != nil {
		return nil, s.translate(ctx, "count users", err)
	}
	items, err := repo.List(ctx, skip, limit)
	if err != nil {
		return nil, s.translate(ctx, "list users", err)
	}
	return models.NewPage(items, total, skip, limit), nil
}

// checkUserID rejects ids that the users table could never hold.
func checkUserID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: user_id must be a UUID", common.ErrorValidation)
	}
	return nil
}

// translate passes classified errors through and hides everything else
// behind common.ErrorInternal.
func (s *UserService) translate(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return ErrUserNotFound
	case errors.Is(err, common.ErrorConflict),
		errors.Is(err, common.ErrorValidation),
		errors.Is(err, common.ErrorUnauthorized):
		return err
	}
	s.logger.Error(ctx, op+" failed", "error", err)
	return common.ErrorInternal
}
