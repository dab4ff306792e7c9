package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/ecoshore/backend/internal/cache"
	"github.com/ecoshore/backend/internal/config"
	"github.com/ecoshore/backend/internal/domain"
	"github.com/ecoshore/backend/pkg/utils"
)

const weatherTimeout = 10 * time.Second

// WeatherService fetches 7-day forecasts per coordinate, caching each
// rounded coordinate for the configured TTL
type WeatherService struct {
	cfg        config.WeatherConfig
	httpClient *http.Client
	cache      *cache.TTL[[]domain.WeatherDay]
	clock      cache.Clock
	logger     *slog.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

// WeatherOption configures a WeatherService
type WeatherOption func(*WeatherService)

// WithWeatherHTTPClient overrides the HTTP client
func WithWeatherHTTPClient(c *http.Client) WeatherOption {
	return func(s *WeatherService) {
		s.httpClient = c
	}
}

// WithWeatherRand fixes the synthetic forecast source
func WithWeatherRand(r *rand.Rand) WeatherOption {
	return func(s *WeatherService) {
		s.rand = r
	}
}

// WithWeatherClock overrides the clock for cache expiry and synthetic dates
func WithWeatherClock(c cache.Clock) WeatherOption {
	return func(s *WeatherService) {
		s.clock = c
	}
}

// WithWeatherLogger sets the logger
func WithWeatherLogger(l *slog.Logger) WeatherOption {
	return func(s *WeatherService) {
		s.logger = l
	}
}

// NewWeatherService creates a new weather service
func NewWeatherService(cfg config.WeatherConfig, opts ...WeatherOption) *WeatherService {
	s := &WeatherService{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: weatherTimeout,
		},
		clock:  cache.RealClock{},
		logger: slog.Default(),
		rand:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = cache.New[[]domain.WeatherDay](cfg.CacheTTL(), cache.WithClock(s.clock))
	return s
}

// OneCallResponse is the daily part of the OpenWeatherMap One Call API
type OneCallResponse struct {
	Daily []OneCallDay `json:"daily"`
}

// OneCallDay is one daily record. Pointers distinguish absent fields.
type OneCallDay struct {
	Dt   int64 `json:"dt"`
	Temp *struct {
		Day *float64 `json:"day"`
	} `json:"temp"`
	Humidity  *float64 `json:"humidity"`
	WindSpeed *float64 `json:"wind_speed"`
	Pop       *float64 `json:"pop"`
	UVI       *float64 `json:"uvi"`
	Clouds    *float64 `json:"clouds"`
	Weather   []struct {
		ID int `json:"id"`
	} `json:"weather"`
}

// WeatherCacheKey rounds coordinates to 3 decimals
func WeatherCacheKey(lat, lon float64) string {
	return fmt.Sprintf("weather:%.3f:%.3f", lat, lon)
}

// DefaultLocation returns the coordinates used for ungeocoded beaches
func (s *WeatherService) DefaultLocation() (lat, lon float64) {
	return s.cfg.DefaultLat, s.cfg.DefaultLon
}

// GetForecastFor resolves the beach's coordinates, substituting the
// default location when geocoding is missing or malformed
func (s *WeatherService) GetForecastFor(ctx context.Context, beach domain.BeachSnapshot) []domain.WeatherDay {
	lat, lon, ok := beach.Location.LatLon()
	if !ok {
		lat, lon = s.DefaultLocation()
	}
	return s.GetForecast(ctx, lat, lon)
}

// GetForecast returns 7 days of weather. It never fails: upstream
// errors degrade to a synthetic forecast that is cached like a real one.
func (s *WeatherService) GetForecast(ctx context.Context, lat, lon float64) []domain.WeatherDay {
	key := WeatherCacheKey(lat, lon)
	if cached, ok := s.cache.Get(key); ok {
		return slices.Clone(cached)
	}

	if !s.cfg.HasAPIKey() {
		forecast := s.syntheticForecast()
		s.cache.Set(key, forecast)
		return slices.Clone(forecast)
	}

	forecast, err := s.fetchForecast(ctx, lat, lon)
	if err != nil {
		s.logger.Warn("weather upstream unavailable, using synthetic forecast",
			"lat", lat, "lon", lon, "reason", err.Error())
		forecast = s.syntheticForecast()
	}

	s.cache.Set(key, forecast)
	return slices.Clone(forecast)
}

// fetchForecast calls the One Call endpoint for daily data only
func (s *WeatherService) fetchForecast(ctx context.Context, lat, lon float64) ([]domain.WeatherDay, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("appid", s.cfg.APIKey)
	params.Set("units", "metric")
	params.Set("exclude", "current,minutely,hourly,alerts")

	ctx, cancel := context.WithTimeout(ctx, weatherTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather: failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather: upstream returned status %d", resp.StatusCode)
	}

	var ocResp OneCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&ocResp); err != nil {
		return nil, fmt.Errorf("weather: failed to decode response: %w", err)
	}

	if len(ocResp.Daily) < domain.ForecastDays {
		return nil, fmt.Errorf("weather: expected %d daily records, got %d", domain.ForecastDays, len(ocResp.Daily))
	}

	return FormatDaily(ocResp.Daily[:domain.ForecastDays]), nil
}

// FormatDaily maps raw daily records into WeatherDay values.
// Missing fields take typical coastal defaults; pop (0-1) becomes an
// estimated precipitation of pop*20 mm.
func FormatDaily(daily []OneCallDay) []domain.WeatherDay {
	days := make([]domain.WeatherDay, 0, len(daily))
	for _, d := range daily {
		temp := 28.0
		if d.Temp != nil && d.Temp.Day != nil {
			temp = *d.Temp.Day
		}

		code := 0
		if len(d.Weather) > 0 {
			code = d.Weather[0].ID
		}

		days = append(days, domain.WeatherDay{
			Date:          time.Unix(d.Dt, 0).UTC().Format(time.DateOnly),
			Temp:          temp,
			Humidity:      valueOr(d.Humidity, 75),
			WindSpeed:     valueOr(d.WindSpeed, 4),
			Precipitation: valueOr(d.Pop, 0) * 20,
			UVIndex:       valueOr(d.UVI, 5),
			Clouds:        valueOr(d.Clouds, 50),
			Condition:     domain.ConditionFromCode(code),
		})
	}
	return days
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// syntheticForecast generates plausible tropical coastal weather
func (s *WeatherService) syntheticForecast() []domain.WeatherDay {
	today := s.clock.Now().UTC()

	s.randMu.Lock()
	defer s.randMu.Unlock()

	days := make([]domain.WeatherDay, domain.ForecastDays)
	for i := range days {
		days[i] = domain.WeatherDay{
			Date:          today.AddDate(0, 0, i).Format(time.DateOnly),
			Temp:          utils.RandRange(s.rand.Float64(), 27, 32),
			Humidity:      utils.RandRange(s.rand.Float64(), 70, 90),
			WindSpeed:     utils.RandRange(s.rand.Float64(), 3, 9),
			Precipitation: utils.RandRange(s.rand.Float64(), 0, 15),
			UVIndex:       utils.RandRange(s.rand.Float64(), 8, 11),
			Clouds:        utils.RandRange(s.rand.Float64(), 20, 80),
			Condition:     domain.ConditionClear,
		}
	}
	return days
}

// InvalidateCache drops the cached forecast for one rounded coordinate
func (s *WeatherService) InvalidateCache(lat, lon float64) bool {
	return s.cache.Delete(WeatherCacheKey(lat, lon))
}

// CacheStats exposes weather cache counters
func (s *WeatherService) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Cache exposes the underlying store for sweeping
func (s *WeatherService) Cache() *cache.TTL[[]domain.WeatherDay] {
	return s.cache
}
