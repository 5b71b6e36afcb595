package config

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Validate reports the first setting that would make the server unsafe or
// unusable.
func (c *Config) Validate() error {
	if c.AccessTokenValidityDuration <= 0 {
		return fmt.Errorf("access token validity must be > 0")
	}
	if c.RefreshTokenValidityDuration <= 0 {
		return fmt.Errorf("refresh token validity must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be > 0")
	}
	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("health check interval must be > 0")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize <= 0 {
		return fmt.Errorf("page sizes must be > 0")
	}
	if c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("default page size %d exceeds max page size %d", c.DefaultPageSize, c.MaxPageSize)
	}

	switch c.Environment {
	case "development", "testing", "production":
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	if c.IsProduction() {
		secret := strings.TrimSpace(c.SecretKey)
		if secret == "" || secret == DefaultSecretKey {
			return fmt.Errorf("in production SECRET_KEY must be set and not default")
		}
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret key must not be empty")
	}

	return nil
}

// IsProduction reports whether the server runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
