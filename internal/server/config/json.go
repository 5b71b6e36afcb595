package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gatekeeper/internal/flagx"
	"github.com/dmitrijs2005/gatekeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file.
// Durations use timex.Duration so both "30m" and integer nanoseconds are
// accepted. Absent (zero) fields leave the current value untouched.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	RedisAddr                    string         `json:"redis_addr"`
	RedisPassword                string         `json:"redis_password"`
	RedisDB                      *int           `json:"redis_db"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	SweepInterval                timex.Duration `json:"sweep_interval"`
	HealthCheckInterval          timex.Duration `json:"health_check_interval"`
	DefaultPageSize              int            `json:"default_page_size"`
	MaxPageSize                  int            `json:"max_page_size"`
	Environment                  string         `json:"environment"`
	LogLevel                     string         `json:"log_level"`
	LogFormat                    string         `json:"log_format"`
}

// parseJson overlays values from the file named by -c/-config onto config.
// Without the flag nothing happens.
func parseJson(config *Config, args []string) error {
	jsonConfigFile := flagx.ConfigFile(args)

	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", jsonConfigFile, err)
	}

	overlayString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	overlayString(&config.DatabaseDSN, c.DatabaseDSN)
	overlayString(&config.RedisAddr, c.RedisAddr)
	overlayString(&config.RedisPassword, c.RedisPassword)
	overlayString(&config.SecretKey, c.SecretKey)
	overlayString(&config.Environment, c.Environment)
	overlayString(&config.LogLevel, c.LogLevel)
	overlayString(&config.LogFormat, c.LogFormat)

	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.DefaultPageSize != 0 {
		config.DefaultPageSize = c.DefaultPageSize
	}
	if c.MaxPageSize != 0 {
		config.MaxPageSize = c.MaxPageSize
	}
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.SweepInterval.Duration != 0 {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.HealthCheckInterval.Duration != 0 {
		config.HealthCheckInterval = c.HealthCheckInterval.Duration
	}

	return nil
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
