// Package auth implements the cryptographic building blocks of the
// authentication flows: signed bearer tokens and password digests.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes access tokens from refresh tokens. Both are signed
// with the same key, so callers must check the kind after decoding.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims is the payload of every issued token. Subject carries the user ID
// and ID (jti) is random so that two tokens minted in the same second differ.
type Claims struct {
	jwt.RegisteredClaims
	Type TokenKind `json:"type"`
}

// TokenCodec issues and decodes HS256 tokens.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// CodecOption customises a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock replaces time.Now for both issuing and validation.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) { c.now = now }
}

func NewTokenCodec(secret []byte, accessTTL, refreshTTL time.Duration, opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue signs a token of the given kind for subject that expires ttl from now.
func (c *TokenCodec) Issue(subject string, kind TokenKind, ttl time.Duration) (string, error) {
	token, _, err := c.issue(subject, kind, ttl)
	return token, err
}

// IssueAccess issues an access token with the configured lifetime and
// returns its expiry.
func (c *TokenCodec) IssueAccess(subject string) (string, time.Time, error) {
	return c.issue(subject, KindAccess, c.accessTTL)
}

// IssueRefresh issues a refresh token with the configured lifetime and
// returns its expiry, which is what the token store must persist.
func (c *TokenCodec) IssueRefresh(subject string) (string, time.Time, error) {
	return c.issue(subject, KindRefresh, c.refreshTTL)
}

func (c *TokenCodec) issue(subject string, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	now := c.now()
	exp := jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: exp,
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Type: kind,
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, exp.Time, nil
}

// Decode verifies the signature, the algorithm and the expiry of token and
// returns its claims. Every failure yields ok == false; the reason is not
// exposed. A token whose exp equals the current second is already expired.
func (c *TokenCodec) Decode(token string) (*Claims, bool) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return nil, false
	}

	return claims, true
}
