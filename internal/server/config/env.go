package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// parseEnv loads a dotenv file into the process environment (variables that
// are already set win) and then overlays recognised variables onto config.
// A missing default .env file is not an error; an explicitly requested one is.
func parseEnv(config *Config, args []string) error {
	envFile := flagx.EnvFile(args)
	explicit := envFile != ""
	if !explicit {
		envFile = defaultEnvFile
	}

	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	setString(&config.EndpointAddrGRPC, "GRPC_ADDRESS")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.RedisAddr, "REDIS_ADDR")
	setString(&config.RedisPassword, "REDIS_PASSWORD")
	setString(&config.SecretKey, "SECRET_KEY")
	setString(&config.Environment, "ENVIRONMENT")
	setString(&config.LogLevel, "LOG_LEVEL")
	setString(&config.LogFormat, "LOG_FORMAT")

	ints := []struct {
		dst  *int
		name string
	}{
		{&config.RedisDB, "REDIS_DB"},
		{&config.BcryptCost, "PASSWORD_BCRYPT_ROUNDS"},
		{&config.DefaultPageSize, "DEFAULT_PAGE_SIZE"},
		{&config.MaxPageSize, "MAX_PAGE_SIZE"},
	}
	for _, v := range ints {
		if err := setInt(v.dst, v.name); err != nil {
			return err
		}
	}

	var minutes, days int
	if ok, err := lookupInt("ACCESS_TOKEN_EXPIRE_MINUTES", &minutes); err != nil {
		return err
	} else if ok {
		config.AccessTokenValidityDuration = time.Duration(minutes) * time.Minute
	}
	if ok, err := lookupInt("REFRESH_TOKEN_EXPIRE_DAYS", &days); err != nil {
		return err
	} else if ok {
		config.RefreshTokenValidityDuration = time.Duration(days) * 24 * time.Hour
	}

	if v, ok := lookup("SWEEP_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SWEEP_INTERVAL value %q: %w", v, err)
		}
		config.SweepInterval = d
	}
	if v, ok := lookup("HEALTH_CHECK_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid HEALTH_CHECK_INTERVAL value %q: %w", v, err)
		}
		config.HealthCheckInterval = d
	}

	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func setInt(dst *int, name string) error {
	_, err := lookupInt(name, dst)
	return err
}

func lookupInt(name string, dst *int) (bool, error) {
	v, ok := lookup(name)
	if !ok {
		return false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", name, v, err)
	}
	*dst = n
	return true, nil
}
