// Package config loads process configuration from the environment.
//
// Values resolve from the OS environment, then an optional .env file,
// then the defaults in the struct tags below.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// placeholderWeatherKey ships in .env.example and counts as no key
const placeholderWeatherKey = "your_key_here"

// Config holds all runtime settings
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	Env      string `envconfig:"GO_ENV" default:"development" validate:"oneof=development test staging production"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	Heatmap HeatmapConfig
	Weather WeatherConfig
}

// HeatmapConfig tunes prediction generation and caching
type HeatmapConfig struct {
	MLServiceURL string `envconfig:"ML_SERVICE_URL" default:"http://localhost:5001" validate:"required,url"`
	// CacheTTLSeconds is also echoed to clients as cacheTTL
	CacheTTLSeconds int           `envconfig:"HEATMAP_CACHE_TTL" default:"21600" validate:"gt=0"`
	MaxConcurrency  int           `envconfig:"HEATMAP_MAX_CONCURRENCY" default:"8" validate:"gt=0"`
	SweepInterval   time.Duration `envconfig:"CACHE_SWEEP_INTERVAL" default:"600s" validate:"gt=0"`
}

// CacheTTL returns the heatmap cache lifetime
func (h HeatmapConfig) CacheTTL() time.Duration {
	return time.Duration(h.CacheTTLSeconds) * time.Second
}

// WeatherConfig configures the forecast source
type WeatherConfig struct {
	APIKey          string  `envconfig:"OPENWEATHER_API_KEY"`
	BaseURL         string  `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org/data/3.0/onecall" validate:"required,url"`
	CacheTTLSeconds int     `envconfig:"WEATHER_CACHE_TTL" default:"3600" validate:"gt=0"`
	DefaultLat      float64 `envconfig:"DEFAULT_LAT" default:"7.8731" validate:"gte=-90,lte=90"`
	DefaultLon      float64 `envconfig:"DEFAULT_LON" default:"80.7718" validate:"gte=-180,lte=180"`
}

// CacheTTL returns the weather cache lifetime
func (w WeatherConfig) CacheTTL() time.Duration {
	return time.Duration(w.CacheTTLSeconds) * time.Second
}

// HasAPIKey reports whether live weather can be requested
func (w WeatherConfig) HasAPIKey() bool {
	key := strings.TrimSpace(w.APIKey)
	return key != "" && key != placeholderWeatherKey
}

// Load reads .env (if present) and the environment into a validated Config
func Load() (*Config, error) {
	_ = godotenv.Load()
	return process()
}

func process() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to process environment: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// SlogLevel maps LogLevel to a slog level
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
