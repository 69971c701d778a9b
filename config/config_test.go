package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, ":8080", cfg.App.ListenAddr)
	assert.True(t, cfg.App.IsDevelopment())
	assert.Equal(t, 8, cfg.Shortener.CodeLength)
	assert.Equal(t, 12, cfg.Shortener.MaxCodeLength)
	assert.Equal(t, 10*time.Millisecond, cfg.Shortener.BaseDelay)
	assert.Equal(t, 2048, cfg.Shortener.MaxURLLength)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 30*24*time.Hour, cfg.App.TokenTTL)

	loc, err := cfg.App.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	gen := cfg.Shortener.GeneratorConfig()
	assert.Equal(t, 8, gen.Length)
	assert.Equal(t, 64, gen.MaxAttempts)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_SECRET", "s3cret")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SHORT_CODE_LENGTH", "6")
	t.Setenv("SHORT_CODE_BASE_DELAY", "5ms")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("PG_PORT", "6543")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.App.IsDevelopment())
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 6, cfg.Shortener.CodeLength)
	assert.Equal(t, 5*time.Millisecond, cfg.Shortener.BaseDelay)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 6543, cfg.Postgres.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.App.CORSOrigins)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := "shortener:\n  top_n: 3\n  code_length: 5\napp:\n  base_url: https://lp.example\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Shortener.TopN)
	assert.Equal(t, 5, cfg.Shortener.CodeLength)
	assert.Equal(t, "https://lp.example", cfg.App.BaseURL)
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]string{
		"STORE_DRIVER":      "mongo",
		"SHORT_CODE_LENGTH": "2",
		"APP_TIMEZONE":      "Mars/Olympus_Mons",
		"APP_ENV":           "production",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(key, value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
