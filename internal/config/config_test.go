package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if !had {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "BM_API_URL", "")
	setEnv(t, "BM_ENVIRONMENT", "")
	setEnv(t, "BM_LIST_TTL", "")
	setEnv(t, "BM_DETAIL_TTL", "")
	setEnv(t, "BM_RESPONSE_SPELLING", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, "test", cfg.Environment)
	assert.False(t, cfg.IsLive())
	assert.Equal(t, 5*time.Minute, cfg.ListTTL)
	assert.Equal(t, 10*time.Minute, cfg.DetailTTL)
	assert.Equal(t, DefaultRetryAttempts, cfg.RetryAttempts)
	assert.Equal(t, "snake", cfg.Spelling)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "BM_API_URL", "https://api.example.com")
	setEnv(t, "BM_TENANT_ID", "t_42")
	setEnv(t, "BM_ENVIRONMENT", "live")
	setEnv(t, "BM_LIST_TTL", "30s")
	setEnv(t, "BM_HTTP_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, "t_42", cfg.TenantID)
	assert.True(t, cfg.IsLive())
	assert.Equal(t, 30*time.Second, cfg.ListTTL)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout, "unparseable durations fall back to the default")
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	setEnv(t, "BM_ENVIRONMENT", "staging")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BM_ENVIRONMENT")
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		APIURL:        "http://localhost:8080",
		Environment:   "test",
		ListTTL:       time.Minute,
		DetailTTL:     time.Minute,
		RetryAttempts: 1,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"relative url", func(c *Config) { c.APIURL = "/api" }, "absolute URL"},
		{"bad environment", func(c *Config) { c.Environment = "prod" }, "BM_ENVIRONMENT"},
		{"zero ttl", func(c *Config) { c.ListTTL = 0 }, "TTLs"},
		{"no attempts", func(c *Config) { c.RetryAttempts = 0 }, "BM_RETRY_ATTEMPTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
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

func TestConfig_EnvHelpers(t *testing.T) {
	c := &Config{Env: "production"}
	assert.True(t, c.IsProduction())
	assert.False(t, c.IsDevelopment())
}
