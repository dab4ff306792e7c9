package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ecoshore/backend/internal/cache"
	"github.com/ecoshore/backend/internal/domain"
)

// allBeachesKey caches the batch for every active beach
const allBeachesKey = "all"

const defaultMaxConcurrency = 8

// WeatherProvider supplies a 7-day forecast for a beach
type WeatherProvider interface {
	GetForecastFor(ctx context.Context, beach domain.BeachSnapshot) []domain.WeatherDay
	CacheStats() cache.Stats
}

// Predictor produces a 7-day risk forecast and never fails
type Predictor interface {
	Predict(ctx context.Context, beach domain.BeachSnapshot, weather []domain.WeatherDay) PredictionOutcome
	CheckHealth(ctx context.Context) domain.MLHealth
}

// CacheStats merges heatmap and weather cache counters
type CacheStats struct {
	HeatmapCache cache.Stats `json:"heatmapCache"`
	WeatherCache cache.Stats `json:"weatherCache"`
}

// HeatmapCacheKey derives the cache key for one beach or all beaches
func HeatmapCacheKey(beachID string) string {
	if beachID == "" {
		return allBeachesKey
	}
	return "beach:" + beachID
}

// HeatmapService generates and caches pollution-risk heatmaps
type HeatmapService struct {
	beaches   BeachDataProvider
	weather   WeatherProvider
	predictor Predictor
	cache     *cache.TTL[domain.HeatmapResult]

	maxConcurrency int
	clock          cache.Clock
	logger         *slog.Logger
	inflight       singleflight.Group

	// epochs advance on refresh and invalidation; a generation that
	// started under an older epoch does not write its result back
	epochMu sync.Mutex
	epochs  map[string]uint64
}

// HeatmapOption configures a HeatmapService
type HeatmapOption func(*HeatmapService)

// WithMaxConcurrency bounds simultaneous per-beach assemblies
func WithMaxConcurrency(n int) HeatmapOption {
	return func(s *HeatmapService) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// WithHeatmapClock overrides the clock used for generatedAt
func WithHeatmapClock(c cache.Clock) HeatmapOption {
	return func(s *HeatmapService) {
		s.clock = c
	}
}

// WithHeatmapLogger sets the logger
func WithHeatmapLogger(l *slog.Logger) HeatmapOption {
	return func(s *HeatmapService) {
		s.logger = l
	}
}

// NewHeatmapService creates a heatmap service around a shared prediction cache
func NewHeatmapService(
	beaches BeachDataProvider,
	weather WeatherProvider,
	predictor Predictor,
	predictions *cache.TTL[domain.HeatmapResult],
	opts ...HeatmapOption,
) *HeatmapService {
	s := &HeatmapService{
		beaches:        beaches,
		weather:        weather,
		predictor:      predictor,
		cache:          predictions,
		maxConcurrency: defaultMaxConcurrency,
		clock:          cache.RealClock{},
		logger:         slog.Default(),
		epochs:         make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateHeatmapData returns the forecast for one beach, or for every
// active beach when beachID is empty. Fresh results are cached; a cache
// hit is returned as-is with FromCache set.
func (s *HeatmapService) GenerateHeatmapData(ctx context.Context, beachID string) (domain.HeatmapResult, error) {
	key := HeatmapCacheKey(beachID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.WithFromCache(true), nil
	}
	return s.compute(ctx, beachID, key)
}

// RefreshCache drops the cached entry and recomputes it
func (s *HeatmapService) RefreshCache(ctx context.Context, beachID string) (domain.HeatmapResult, error) {
	key := HeatmapCacheKey(beachID)
	s.expire(key)
	s.inflight.Forget(key)

	s.logger.Info("heatmap cache refresh", "key", key)
	return s.compute(ctx, beachID, key)
}

// InvalidateBeach drops every cached heatmap that includes the beach.
// Call it when the beach's severity score changes.
func (s *HeatmapService) InvalidateBeach(beachID string) {
	s.expire(HeatmapCacheKey(beachID), allBeachesKey)
}

// CheckBeachStoreHealth reports whether the beach store is reachable
func (s *HeatmapService) CheckBeachStoreHealth(ctx context.Context) error {
	return s.beaches.Health(ctx)
}

// expire drops the keys and advances their epochs in one step
func (s *HeatmapService) expire(keys ...string) {
	s.epochMu.Lock()
	defer s.epochMu.Unlock()
	for _, key := range keys {
		s.epochs[key]++
		s.cache.Delete(key)
	}
}

func (s *HeatmapService) epoch(key string) uint64 {
	s.epochMu.Lock()
	defer s.epochMu.Unlock()
	return s.epochs[key]
}

// store caches the result unless the key expired after the generation began
func (s *HeatmapService) store(key string, epoch uint64, result domain.HeatmapResult) bool {
	s.epochMu.Lock()
	defer s.epochMu.Unlock()
	if s.epochs[key] != epoch {
		return false
	}
	s.cache.Set(key, result)
	return true
}

// GetCacheStats reports both cache layers
func (s *HeatmapService) GetCacheStats() CacheStats {
	return CacheStats{
		HeatmapCache: s.cache.Stats(),
		WeatherCache: s.weather.CacheStats(),
	}
}

// CheckMLServiceHealth probes the predictor service
func (s *HeatmapService) CheckMLServiceHealth(ctx context.Context) domain.MLHealth {
	return s.predictor.CheckHealth(ctx)
}

// compute runs one generation per key at a time; concurrent callers
// share its result
func (s *HeatmapService) compute(ctx context.Context, beachID, key string) (domain.HeatmapResult, error) {
	// Generation runs to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	v, err, _ := s.inflight.Do(key, func() (any, error) {
		return s.generate(ctx, beachID, key)
	})
	if err != nil {
		return domain.HeatmapResult{}, err
	}
	return v.(domain.HeatmapResult).WithFromCache(false), nil
}

func (s *HeatmapService) generate(ctx context.Context, beachID, key string) (domain.HeatmapResult, error) {
	start := time.Now()
	generationID := uuid.NewString()
	logger := s.logger.With("generation_id", generationID, "key", key)
	epoch := s.epoch(key)

	beaches, err := s.resolveBeaches(ctx, beachID)
	if err != nil {
		return domain.HeatmapResult{}, err
	}

	cacheTTL := int(s.cache.TTL() / time.Second)

	if len(beaches) == 0 {
		// Not cached, so a newly activated beach shows up on the next request
		logger.Info("no active beaches to forecast")
		return domain.HeatmapResult{
			Predictions: []domain.BeachForecast{},
			BeachCount:  0,
			GeneratedAt: s.clock.Now().UTC(),
			CacheTTL:    cacheTTL,
		}, nil
	}

	predictions := make([]domain.BeachForecast, len(beaches))
	var fallbacks atomic.Int32

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for i, beach := range beaches {
		g.Go(func() error {
			forecast, usedFallback := s.assembleForecast(gCtx, beach)
			if usedFallback {
				fallbacks.Add(1)
			}
			predictions[i] = forecast
			return nil
		})
	}

	// Per-beach work degrades instead of failing
	_ = g.Wait()

	result := domain.HeatmapResult{
		Predictions: predictions,
		BeachCount:  len(predictions),
		GeneratedAt: s.clock.Now().UTC(),
		CacheTTL:    cacheTTL,
	}
	stored := s.store(key, epoch, result)

	logger.Info("heatmap generated",
		"beaches", len(predictions),
		"fallbacks", fallbacks.Load(),
		"cached", stored,
		"duration", time.Since(start))

	return result, nil
}

func (s *HeatmapService) resolveBeaches(ctx context.Context, beachID string) ([]domain.BeachSnapshot, error) {
	if beachID == "" {
		beaches, err := s.beaches.FindActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("heatmap: failed to load active beaches: %w", err)
		}
		return beaches, nil
	}

	beach, err := s.beaches.FindByID(ctx, beachID)
	if err != nil {
		return nil, fmt.Errorf("heatmap: failed to load beach %s: %w", beachID, err)
	}
	if beach == nil {
		return nil, fmt.Errorf("heatmap: beach %s: %w", beachID, domain.ErrBeachNotFound)
	}
	return []domain.BeachSnapshot{*beach}, nil
}

// assembleForecast builds the map bundle of one beach
func (s *HeatmapService) assembleForecast(ctx context.Context, beach domain.BeachSnapshot) (domain.BeachForecast, bool) {
	weather := s.weather.GetForecastFor(ctx, beach)
	outcome := s.predictor.Predict(ctx, beach, weather)

	forecast := outcome.Days
	if forecast == nil {
		forecast = []domain.PredictionDay{}
	}

	var todayRisk *domain.PredictionDay
	if len(forecast) > 0 {
		today := forecast[0]
		todayRisk = &today
	}

	return domain.BeachForecast{
		BeachID:              beach.ID,
		BeachName:            beach.Name,
		Location:             beach.Location,
		CurrentSeverityScore: beach.Score(),
		CurrentSeverityLevel: beach.Level(),
		TodayRisk:            todayRisk,
		Forecast:             forecast,
	}, outcome.UsedFallback()
}
