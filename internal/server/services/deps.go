// Package services contains the server-side business logic: the
// authentication flows (AuthService), user record management (UserService)
// and the background cleanup of expired refresh tokens (Sweeper).
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
)

// TokenCodec issues and verifies signed bearer tokens.
type TokenCodec interface {
	IssueAccess(subject string) (string, time.Time, error)
	IssueRefresh(subject string) (string, time.Time, error)
	Decode(token string) (*auth.Claims, bool)
}

// PasswordHasher turns plaintext passwords into digests and checks them.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
	DummyVerify(plain string)
}

// Denylist remembers revoked access tokens until their natural expiry.
type Denylist interface {
	Blacklist(ctx context.Context, token string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// Errors returned by the services. Each wraps one of the common sentinels,
// so callers can classify them with errors.Is.
var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", common.ErrorUnauthorized)
	ErrAccountDisabled    = fmt.Errorf("%w: account is disabled", common.ErrorUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", common.ErrorUnauthorized)
	ErrTokenRevoked       = fmt.Errorf("%w: token has been revoked", common.ErrorUnauthorized)
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", common.ErrorConflict)
	ErrUsernameTaken      = fmt.Errorf("%w: username already taken", common.ErrorConflict)
	ErrUserNotFound       = fmt.Errorf("%w: user not found", common.ErrorNotFound)
)

type serviceOptions struct {
	now func() time.Time
}

// Option customises a service.
type Option func(*serviceOptions)

// WithClock replaces time.Now as the source of "now" for revocation and
// expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

func buildOptions(opts []Option) serviceOptions {
	o := serviceOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
