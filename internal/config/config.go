package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/trailwx/segment-weather/internal/weather"
)

type AppConfig struct {
	// HTTPTimeout bounds each outbound model call.
	HTTPTimeout time.Duration

	// UserAgent identifies us to providers that require it (MET Norway).
	UserAgent string

	// CacheTTL is the freshness window for cached segment results.
	CacheTTL time.Duration

	// AvailabilityTTL is how long probe results stay valid.
	AvailabilityTTL time.Duration

	// ProbeInterval is how often the scheduler re-checks probe staleness.
	ProbeInterval time.Duration

	// DataDir holds the snapshot and availability files.
	DataDir string

	// Thresholds are the default change-detection thresholds; requests may
	// override them per trip.
	Thresholds weather.Thresholds

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", "3600s"); err != nil {
		return nil, err
	}
	if cfg.AvailabilityTTL, err = getenvDuration("AVAILABILITY_TTL", "168h"); err != nil {
		return nil, err
	}
	if cfg.ProbeInterval, err = getenvDuration("PROBE_INTERVAL", "12h"); err != nil {
		return nil, err
	}

	cfg.UserAgent = getenvDefault("PROVIDER_USER_AGENT", "segment-weather/1.0")
	cfg.DataDir = getenvDefault("DATA_DIR", "./data")
	cfg.Port = getenvDefault("PORT", "8080")

	th := weather.DefaultThresholds()
	th.Temperature = getenvFloat("THRESHOLD_TEMPERATURE", th.Temperature)
	th.Wind = getenvFloat("THRESHOLD_WIND", th.Wind)
	th.Gust = getenvFloat("THRESHOLD_GUST", th.Gust)
	th.Precipitation = getenvFloat("THRESHOLD_PRECIPITATION", th.Precipitation)
	cfg.Thresholds = th

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}
