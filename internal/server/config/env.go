package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// envConfig mirrors Config for environment decoding. Token lifetimes keep
// the units of the original settings: JWT_ACCESS_EXPIRE in minutes and
// JWT_REFRESH_EXPIRE in days.
//
// Every field is tagged with overwrite so that a value set in the
// environment replaces the default, while an unset variable keeps it.
type envConfig struct {
	EndpointAddrHTTP    string        `env:"HTTP_ADDR,overwrite"`
	EndpointAddrGRPC    string        `env:"GRPC_ADDR,overwrite"`
	DatabaseDSN         string        `env:"DB_URL,overwrite"`
	AccessSecret        string        `env:"JWT_ACCESS_SECRET,overwrite"`
	RefreshSecret       string        `env:"JWT_REFRESH_SECRET,overwrite"`
	Algorithm           string        `env:"JWT_ALGORITHM,overwrite"`
	AccessExpireMinutes int           `env:"JWT_ACCESS_EXPIRE,overwrite"`
	RefreshExpireDays   int           `env:"JWT_REFRESH_EXPIRE,overwrite"`
	BcryptCost          int           `env:"BCRYPT_COST,overwrite"`
	CookieSecure        bool          `env:"COOKIE_SECURE,overwrite"`
	AllowedOrigins      []string      `env:"CORS_ALLOWED_ORIGINS,overwrite"`
	RedisAddr           string        `env:"REDIS_ADDR,overwrite"`
	LoginMaxAttempts    int           `env:"LOGIN_MAX_ATTEMPTS,overwrite"`
	LoginLockoutWindow  time.Duration `env:"LOGIN_LOCKOUT_WINDOW,overwrite"`
	NATSURL             string        `env:"NATS_URL,overwrite"`
	NATSSubjectPrefix   string        `env:"NATS_SUBJECT_PREFIX,overwrite"`
	OTLPEndpoint        string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT,overwrite"`
	LogFormat           string        `env:"LOG_FORMAT,overwrite"`
	LogLevel            string        `env:"LOG_LEVEL,overwrite"`
	PurgeInterval       time.Duration `env:"REFRESH_PURGE_INTERVAL,overwrite"`
}

// parseEnv overlays environment variables found through lookuper on config.
func parseEnv(ctx context.Context, config *Config, lookuper envconfig.Lookuper) error {
	e := envConfig{
		EndpointAddrHTTP:    config.EndpointAddrHTTP,
		EndpointAddrGRPC:    config.EndpointAddrGRPC,
		DatabaseDSN:         config.DatabaseDSN,
		AccessSecret:        config.AccessSecret,
		RefreshSecret:       config.RefreshSecret,
		Algorithm:           config.Algorithm,
		AccessExpireMinutes: int(config.AccessTokenValidityDuration / time.Minute),
		RefreshExpireDays:   int(config.RefreshTokenValidityDuration / (24 * time.Hour)),
		BcryptCost:          config.BcryptCost,
		CookieSecure:        config.CookieSecure,
		AllowedOrigins:      config.AllowedOrigins,
		RedisAddr:           config.RedisAddr,
		LoginMaxAttempts:    config.LoginMaxAttempts,
		LoginLockoutWindow:  config.LoginLockoutWindow,
		NATSURL:             config.NATSURL,
		NATSSubjectPrefix:   config.NATSSubjectPrefix,
		OTLPEndpoint:        config.OTLPEndpoint,
		LogFormat:           config.LogFormat,
		LogLevel:            config.LogLevel,
		PurgeInterval:       config.PurgeInterval,
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &e,
		Lookuper: lookuper,
	}); err != nil {
		return err
	}

	config.EndpointAddrHTTP = e.EndpointAddrHTTP
	config.EndpointAddrGRPC = e.EndpointAddrGRPC
	config.DatabaseDSN = e.DatabaseDSN
	config.AccessSecret = e.AccessSecret
	config.RefreshSecret = e.RefreshSecret
	config.Algorithm = e.Algorithm
	config.BcryptCost = e.BcryptCost
	config.CookieSecure = e.CookieSecure
	config.AllowedOrigins = e.AllowedOrigins
	config.RedisAddr = e.RedisAddr
	config.LoginMaxAttempts = e.LoginMaxAttempts
	config.LoginLockoutWindow = e.LoginLockoutWindow
	config.NATSURL = e.NATSURL
	config.NATSSubjectPrefix = e.NATSSubjectPrefix
	config.OTLPEndpoint = e.OTLPEndpoint
	config.LogFormat = e.LogFormat
	config.LogLevel = e.LogLevel
	config.PurgeInterval = e.PurgeInterval

	// Only replace lifetimes that were actually given, so sub-unit defaults
	// (e.g. 90s) survive the minutes/days round trip.
	if v, ok := lookuper.Lookup("JWT_ACCESS_EXPIRE"); ok && v != "" {
		config.AccessTokenValidityDuration = time.Duration(e.AccessExpireMinutes) * time.Minute
	}
	if v, ok := lookuper.Lookup("JWT_REFRESH_EXPIRE"); ok && v != "" {
		config.RefreshTokenValidityDuration = time.Duration(e.RefreshExpireDays) * 24 * time.Hour
	}

	return nil
}
