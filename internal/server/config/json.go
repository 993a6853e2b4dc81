package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON configuration file.
// Durations accept Go duration strings ("15m") or integer nanoseconds.
// Fields left out of the file keep their previous value.
type JsonConfig struct {
	EndpointAddrHTTP             string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string          `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string          `json:"database_dsn"`
	AccessSecret                 string          `json:"jwt_access_secret"`
	RefreshSecret                string          `json:"jwt_refresh_secret"`
	Algorithm                    string          `json:"jwt_algorithm"`
	AccessTokenValidityDuration  timex.Duration  `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration  `json:"refresh_token_validity_duration"`
	BcryptCost                   int             `json:"bcrypt_cost"`
	CookieSecure                 *bool           `json:"cookie_secure"`
	AllowedOrigins               []string        `json:"cors_allowed_origins"`
	RedisAddr                    string          `json:"redis_addr"`
	LoginMaxAttempts             int             `json:"login_max_attempts"`
	LoginLockoutWindow           timex.Duration  `json:"login_lockout_window"`
	NATSURL                      string          `json:"nats_url"`
	NATSSubjectPrefix            string          `json:"nats_subject_prefix"`
	OTLPEndpoint                 string          `json:"otlp_endpoint"`
	LogFormat                    string          `json:"log_format"`
	LogLevel                     string          `json:"log_level"`
	PurgeInterval                *timex.Duration `json:"refresh_purge_interval"`
}

// parseJson loads path (if non-empty) and copies every field present in the
// file onto config.
func parseJson(config *Config, path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessSecret, c.AccessSecret)
	setString(&config.RefreshSecret, c.RefreshSecret)
	setString(&config.Algorithm, c.Algorithm)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.NATSURL, c.NATSURL)
	setString(&config.NATSSubjectPrefix, c.NATSSubjectPrefix)
	setString(&config.OTLPEndpoint, c.OTLPEndpoint)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.LoginLockoutWindow.Duration != 0 {
		config.LoginLockoutWindow = c.LoginLockoutWindow.Duration
	}
	if c.PurgeInterval != nil {
		config.PurgeInterval = c.PurgeInterval.Duration
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.LoginMaxAttempts != 0 {
		config.LoginMaxAttempts = c.LoginMaxAttempts
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
