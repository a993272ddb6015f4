package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STRIPE_CURRENCY", "")
	t.Setenv("PUBLISH_CRON", "")
	t.Setenv("ADDRESS_DEBOUNCE_MS", "")
	t.Setenv("ADDRESS_CACHE_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "aud", cfg.Stripe.Currency)
	assert.Equal(t, "*/5 * * * *", cfg.Scheduler.PublishCron)
	assert.Equal(t, 300*time.Millisecond, cfg.Address.Debounce)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("ADDRESS_DEBOUNCE_MS", "150")
	t.Setenv("ADDRESS_CACHE_TTL", "2h")
	t.Setenv("OBJECT_BACKEND", "s3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://abc.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, 150*time.Millisecond, cfg.Address.Debounce)
	assert.Equal(t, 2*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "s3", cfg.ObjectBackend)
}

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "soon")
	assert.Equal(t, 7, getEnvInt("X_INT", 7))
	assert.Equal(t, time.Minute, getEnvDuration("X_DUR", time.Minute))
}
