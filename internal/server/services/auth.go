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
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

// AuthService implements the account lifecycle:
//   - Register: create users
//   - Login: verify credentials and mint tokens
//   - Refresh: rotate refresh tokens and mint new access tokens
//   - Logout/LogoutAll: revoke tokens
//   - Identify: resolve an access token to its user
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       TokenCodec
	hasher      PasswordHasher
	denylist    Denylist
	logger      logging.Logger
	now         func() time.Time
}

// NewAuthService wires an AuthService from its collaborators.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, codec TokenCodec, hasher PasswordHasher,
	deny Denylist, logger logging.Logger, opts ...Option) *AuthService {
	o := buildOptions(opts)
	return &AuthService{
		db:          db,
		repomanager: m,
		codec:       codec,
		hasher:      hasher,
		denylist:    deny,
		logger:      logger.With("module", "auth_service"),
		now:         o.now,
	}
}

// Register validates in, checks that email and username are free and stores
// a new active, unverified, non-superuser account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	var created *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		if err := ensureAbsent(repo.GetByEmail(ctx, in.Email)); err != nil {
			if errors.Is(err, common.ErrorConflict) {
				return ErrEmailTaken
			}
			return err
		}
		if err := ensureAbsent(repo.GetByUsername(ctx, in.Username)); err != nil {
			if errors.Is(err, common.ErrorConflict) {
				return ErrUsernameTaken
			}
			return err
		}

		u, err := repo.Create(ctx, &models.User{
			Email:        in.Email,
			Username:     in.Username,
			PasswordHash: hash,
			FullName:     in.FullName,
			IsActive:     true,
		})
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, err
		}
		s.logger.Error(ctx, "register failed", "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user registered", "user_id", created.ID)
	return created, nil
}

// Login authenticates by email or username. Unknown logins and wrong
// passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, login, password string) (*TokenPair, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.DummyVerify(password)
			return nil, ErrInvalidCredentials
		}
		s.logger.Error(ctx, "login lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	pair, err := s.issuePair(ctx, user.ID, s.db)
	if err != nil {
		s.logger.Error(ctx, "issuing tokens failed", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}
	return pair, nil
}

// Refresh rotates refreshToken: the presented token is revoked and a new
// pair is issued in the same transaction.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, ok := s.codec.Decode(refreshToken)
	if !ok || claims.Type != auth.KindRefresh || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	now := s.now()
	var pair *TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tokens := s.repomanager.RefreshTokens(tx)

		stored, err := tokens.FindValidByToken(ctx, refreshToken, now)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return ErrTokenRevoked
			}
			return err
		}
		if stored.UserID != claims.Subject {
			return ErrInvalidToken
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, stored.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		if !user.IsActive {
			return ErrAccountDisabled
		}

		if _, err := tokens.Revoke(ctx, refreshToken, now); err != nil {
			return err
		}

		pair, err = s.issuePair(ctx, user.ID, tx)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, err
		}
		s.logger.Error(ctx, "refresh failed", "error", err)
		return nil, common.ErrorInternal
	}
	return pair, nil
}

// Logout revokes whatever it is given. The access token is denylisted for
// its remaining lifetime and the refresh token is revoked. Tokens that are
// invalid, expired or unknown are ignored, and store failures are logged
// without stopping the other step.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) {
	now := s.now()

	if accessToken != "" {
		if claims, ok := s.codec.Decode(accessToken); ok && claims.Type == auth.KindAccess && claims.ExpiresAt != nil {
			if ttl := claims.ExpiresAt.Sub(now); ttl > 0 {
				if err := s.denylist.Blacklist(ctx, accessToken, ttl); err != nil {
					s.logger.Error(ctx, "denylisting access token failed", "error", err)
				}
			}
		}
	}

	if refreshToken != "" {
		_, err := s.repomanager.RefreshTokens(s.db).Revoke(ctx, refreshToken, now)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "revoking refresh token failed", "error", err)
		}
	}
}

// LogoutAll revokes every live refresh token of userID and reports how many
// were revoked.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int, error) {
	revoked, err := s.repomanager.RefreshTokens(s.db).RevokeAllForUser(ctx, userID, s.now())
	if err != nil {
		s.logger.Error(ctx, "revoking all refresh tokens failed", "user_id", userID, "error", err)
		return 0, common.ErrorInternal
	}
	s.logger.Info(ctx, "user logged out everywhere", "user_id", userID, "revoked", len(revoked))
	return len(revoked), nil
}

// Identify resolves a bearer access token to its live, active user.
func (s *AuthService) Identify(ctx context.Context, accessToken string) (*models.User, error) {
	listed, err := s.denylist.IsBlacklisted(ctx, accessToken)
	if err != nil {
		s.logger.Error(ctx, "denylist lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	if listed {
		return nil, ErrTokenRevoked
	}

	claims, ok := s.codec.Decode(accessToken)
	if !ok || claims.Type != auth.KindAccess || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error(ctx, "identify lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

func (s *AuthService) issuePair(ctx context.Context, userID string, db dbx.DBTX) (*TokenPair, error) {
	access, _, err := s.codec.IssueAccess(userID)
	if err != nil {
		return nil, err
	}
	refresh, exp, err := s.codec.IssueRefresh(userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repomanager.RefreshTokens(db).Create(ctx, userID, refresh, exp); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: common.BearerTokenType}, nil
}

// ensureAbsent turns a lookup result into nil when nothing was found and
// common.ErrorConflict when a record exists.
func ensureAbsent(_ *models.User, err error) error {
	switch {
	case err == nil:
		return common.ErrorConflict
	case errors.Is(err, common.ErrorNotFound):
		return nil
	default:
		return err
	}
}
