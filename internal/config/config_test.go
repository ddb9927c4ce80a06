package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 168*time.Hour, cfg.AvailabilityTTL)
	assert.Equal(t, 12*time.Hour, cfg.ProbeInterval)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5.0, cfg.Thresholds.Temperature)
	assert.Equal(t, 20.0, cfg.Thresholds.Wind)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("PORT", "9090")
	t.Setenv("THRESHOLD_TEMPERATURE", "2.5")
	t.Setenv("THRESHOLD_WIND", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2.5, cfg.Thresholds.Temperature)
	assert.Equal(t, 20.0, cfg.Thresholds.Wind, "unparsable overrides fall back to the default")
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_TIMEOUT")
}
