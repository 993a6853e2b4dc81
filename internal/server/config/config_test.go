package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, ":8000", c.EndpointAddrHTTP)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, "HS256", c.Algorithm)
	assert.Equal(t, 30*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenValidityDuration)
	assert.NotEqual(t, c.AccessSecret, c.RefreshSecret)
	assert.NoError(t, c.Validate())
}

func TestLoad_Precedence(t *testing.T) {
	path := writeTempJSON(t, `{
		"endpoint_addr_http": ":9000",
		"endpoint_addr_grpc": ":9001",
		"jwt_access_secret": "json-access",
		"access_token_validity_duration": "5m",
		"refresh_purge_interval": "0s"
	}`)

	env := envconfig.MapLookuper(map[string]string{
		"HTTP_ADDR":          ":9100",
		"JWT_ALGORITHM":      "hs512",
		"JWT_REFRESH_EXPIRE": "3",
		"COOKIE_SECURE":      "true",
		"BCRYPT_COST":        "4",
	})

	args := []string{"-c", path, "-a", ":9200", "-t", "10", "-unknown", "x"}

	cfg, err := load(context.Background(), args, env, true)
	require.NoError(t, err)

	// flag beats env beats json
	assert.Equal(t, ":9200", cfg.EndpointAddrHTTP)
	// json only
	assert.Equal(t, ":9001", cfg.EndpointAddrGRPC)
	assert.Equal(t, "json-access", cfg.AccessSecret)
	assert.Equal(t, time.Duration(0), cfg.PurgeInterval)
	// flag over json
	assert.Equal(t, 10*time.Minute, cfg.AccessTokenValidityDuration)
	// env only
	assert.Equal(t, "HS512", cfg.Algorithm)
	assert.Equal(t, 3*24*time.Hour, cfg.RefreshTokenValidityDuration)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, 4, cfg.BcryptCost)
	// default
	assert.Equal(t, "refresh-secret", cfg.RefreshSecret)
}

func TestLoad_WithoutFlagsIgnoresArgs(t *testing.T) {
	cfg, err := load(context.Background(), []string{"-a", ":1"}, envconfig.MapLookuper(nil), false)
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.EndpointAddrHTTP)
}

func TestLoad_InvalidJSONFile(t *testing.T) {
	path := writeTempJSON(t, `{not json`)
	_, err := load(context.Background(), []string{"-c", path}, envconfig.MapLookuper(nil), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json config")
}

func TestLoad_MissingJSONFile(t *testing.T) {
	_, err := load(context.Background(), []string{"-config", filepath.Join(t.TempDir(), "nope.json")}, envconfig.MapLookuper(nil), true)
	require.Error(t, err)
}

func TestParseEnv_UnsetKeepsValues(t *testing.T) {
	c := defaults()
	c.AccessTokenValidityDuration = 90 * time.Second
	want := *c

	require.NoError(t, parseEnv(context.Background(), c, envconfig.MapLookuper(map[string]string{})))

	if diff := cmp.Diff(want, *c); diff != "" {
		t.Errorf("config changed (-want +got):\n%s", diff)
	}
}

func TestParseEnv_AllFields(t *testing.T) {
	c := defaults()
	env := envconfig.MapLookuper(map[string]string{
		"HTTP_ADDR":                   ":1",
		"GRPC_ADDR":                   ":2",
		"DB_URL":                      "memory://",
		"JWT_ACCESS_SECRET":           "a",
		"JWT_REFRESH_SECRET":          "b",
		"JWT_ALGORITHM":               "HS384",
		"JWT_ACCESS_EXPIRE":           "1",
		"JWT_REFRESH_EXPIRE":          "2",
		"BCRYPT_COST":                 "5",
		"COOKIE_SECURE":               "true",
		"CORS_ALLOWED_ORIGINS":        "https://a.example,https://b.example",
		"REDIS_ADDR":                  "localhost:6379",
		"LOGIN_MAX_ATTEMPTS":          "3",
		"LOGIN_LOCKOUT_WINDOW":        "1m",
		"NATS_URL":                    "nats://localhost:4222",
		"NATS_SUBJECT_PREFIX":         "auth",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4318",
		"LOG_FORMAT":                  "console",
		"LOG_LEVEL":                   "debug",
		"REFRESH_PURGE_INTERVAL":      "10m",
	})

	require.NoError(t, parseEnv(context.Background(), c, env))

	want := Config{
		EndpointAddrHTTP:             ":1",
		EndpointAddrGRPC:             ":2",
		DatabaseDSN:                  "memory://",
		AccessSecret:                 "a",
		RefreshSecret:                "b",
		Algorithm:                    "HS384",
		AccessTokenValidityDuration:  time.Minute,
		RefreshTokenValidityDuration: 48 * time.Hour,
		BcryptCost:                   5,
		CookieSecure:                 true,
		AllowedOrigins:               []string{"https://a.example", "https://b.example"},
		RedisAddr:                    "localhost:6379",
		LoginMaxAttempts:             3,
		LoginLockoutWindow:           time.Minute,
		NATSURL:                      "nats://localhost:4222",
		NATSSubjectPrefix:            "auth",
		OTLPEndpoint:                 "localhost:4318",
		LogFormat:                    "console",
		LogLevel:                     "debug",
		PurgeInterval:                10 * time.Minute,
	}
	if diff := cmp.Diff(want, *c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEnv_BadValue(t *testing.T) {
	c := defaults()
	err := parseEnv(context.Background(), c, envconfig.MapLookuper(map[string]string{"JWT_ACCESS_EXPIRE": "soon"}))
	require.Error(t, err)
}

func TestParseFlags(t *testing.T) {
	c := defaults()
	err := parseFlags(c, []string{"-a", ":1", "-g", ":2", "-d", "postgres://x", "-t", "0", "-r", "14", "-c", "cfg.json"})
	require.NoError(t, err)

	assert.Equal(t, ":1", c.EndpointAddrHTTP)
	assert.Equal(t, ":2", c.EndpointAddrGRPC)
	assert.Equal(t, "postgres://x", c.DatabaseDSN)
	assert.Equal(t, time.Duration(0), c.AccessTokenValidityDuration)
	assert.Equal(t, 14*24*time.Hour, c.RefreshTokenValidityDuration)
}

func TestParseFlags_Unset(t *testing.T) {
	c := defaults()
	require.NoError(t, parseFlags(c, nil))
	if diff := cmp.Diff(defaults(), c); diff != "" {
		t.Errorf("config changed (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"empty dsn", func(c *Config) { c.DatabaseDSN = " " }, "DB_URL"},
		{"missing secret", func(c *Config) { c.AccessSecret = "" }, "required"},
		{"same secrets", func(c *Config) { c.RefreshSecret = c.AccessSecret }, "must differ"},
		{"bad algorithm", func(c *Config) { c.Algorithm = "RS256" }, "JWT_ALGORITHM"},
		{"zero access ttl", func(c *Config) { c.AccessTokenValidityDuration = 0 }, "access token validity"},
		{"negative refresh ttl", func(c *Config) { c.RefreshTokenValidityDuration = -time.Hour }, "refresh token validity"},
		{"bcrypt cost", func(c *Config) { c.BcryptCost = 1 }, "BCRYPT_COST"},
		{"throttle without attempts", func(c *Config) { c.RedisAddr = "r:6379"; c.LoginMaxAttempts = 0 }, "LOGIN_MAX_ATTEMPTS"},
		{"negative purge", func(c *Config) { c.PurgeInterval = -1 }, "REFRESH_PURGE_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_NormalizesAlgorithm(t *testing.T) {
	c := defaults()
	c.Algorithm = " hs384 "
	require.NoError(t, c.Validate())
	assert.Equal(t, "HS384", c.Algorithm)
}
