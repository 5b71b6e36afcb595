package models

import "time"

// RefreshToken is a persisted refresh token. All predicates take the
// reference time explicitly.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsExpired is true strictly after ExpiresAt.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}

// Revoke marks the token revoked at now unless it already is.
func (t *RefreshToken) Revoke(now time.Time) {
	if t.RevokedAt == nil {
		at := now
		t.RevokedAt = &at
	}
}
