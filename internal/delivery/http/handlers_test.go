package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoshore/backend/internal/cache"
	"github.com/ecoshore/backend/internal/config"
	"github.com/ecoshore/backend/internal/domain"
	"github.com/ecoshore/backend/internal/repository/postgres"
	"github.com/ecoshore/backend/internal/service"
)

const (
	galleFaceID = "64abc1234def5678901234ab"
	negomboID   = "64abc1234def5678901234ad"
	unknownID   = "ffffffffffffffffffffffff"
	// 24 characters, but hex only after the 0x prefix
	prefixedID = "0x64abc1234def5678901234"
)

type envelope struct {
	Success bool   `json:"success"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Data    struct {
		Heatmap   domain.HeatmapResult `json:"heatmap"`
		MLService domain.MLHealth      `json:"mlService"`
		Database  domain.StoreHealth   `json:"database"`
		Cache     service.CacheStats   `json:"cache"`
	} `json:"data"`
}

type testServer struct {
	app       *fiber.App
	mlPredict atomic.Int32
}

// newTestServer wires the real services against an ML stub that fails
// every prediction, so all forecasts come from the rules-based fallback.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}

	ml := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.URL.Path {
		case "/health":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"success":true,"data":{"status":"ok","fallbackMode":false}}`)
		case "/predict":
			ts.mlPredict.Add(1)
			w.WriteHeader(nethttp.StatusInternalServerError)
		default:
			w.WriteHeader(nethttp.StatusNotFound)
		}
	}))
	t.Cleanup(ml.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var beaches []domain.BeachSnapshot
	for _, b := range postgres.DemoBeaches() {
		if b.ID == galleFaceID || b.ID == negomboID {
			beaches = append(beaches, b)
		}
	}
	repo := postgres.NewMockRepository(beaches...)

	weather := service.NewWeatherService(config.WeatherConfig{
		BaseURL:         "http://weather.invalid",
		CacheTTLSeconds: 3600,
		DefaultLat:      domain.DefaultLat,
		DefaultLon:      domain.DefaultLon,
	}, service.WithWeatherLogger(logger))

	bridge := service.NewMLBridge(ml.URL, service.NewFallbackPredictor(),
		service.WithMLLogger(logger),
		service.WithMLTimeouts(2*time.Second, 2*time.Second),
	)

	heatmapSvc := service.NewHeatmapService(repo, weather, bridge,
		cache.New[domain.HeatmapResult](time.Hour),
		service.WithHeatmapLogger(logger),
	)

	ts.app = fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	SetupRoutes(ts.app, heatmapSvc)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestObjectIDValidation(t *testing.T) {
	v := newValidator()

	tests := []struct {
		id    string
		valid bool
	}{
		{galleFaceID, true},
		{"64ABC1234DEF5678901234AB", true},
		{prefixedID, false},
		{"0X64abc1234def5678901234", false},
		{"64abc1234def5678901234a", false},
		{"64abc1234def5678901234abc", false},
		{"64abc1234def5678901234ag", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := v.Struct(beachParams{BeachID: tt.id})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	assert.NoError(t, v.Struct(RefreshRequest{}), "beachId is optional on refresh")
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.app.Test(httptest.NewRequest(nethttp.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetHeatmap(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.do(t, nethttp.MethodGet, "/api/v1/heatmap", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)
	assert.Equal(t, "Heatmap predictions retrieved successfully", env.Message)

	hm := env.Data.Heatmap
	assert.Equal(t, 2, hm.BeachCount)
	assert.Len(t, hm.Predictions, 2)
	assert.Equal(t, 3600, hm.CacheTTL)
	assert.False(t, hm.FromCache)
	for _, p := range hm.Predictions {
		require.Len(t, p.Forecast, domain.ForecastDays)
		require.NotNil(t, p.TodayRisk)
		assert.Equal(t, p.Forecast[0], *p.TodayRisk)
		for _, d := range p.Forecast {
			assert.Equal(t, domain.SourceRules, d.Source)
		}
	}

	status, env = ts.do(t, nethttp.MethodGet, "/api/v1/heatmap", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Data.Heatmap.FromCache)
	assert.Equal(t, int32(2), ts.mlPredict.Load(), "cached response must not call the ML service")
}

func TestGetBeachHeatmap(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.do(t, nethttp.MethodGet, "/api/v1/heatmap/"+negomboID, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)
	require.Len(t, env.Data.Heatmap.Predictions, 1)
	assert.Equal(t, negomboID, env.Data.Heatmap.Predictions[0].BeachID)
	assert.Equal(t, 81.7, env.Data.Heatmap.Predictions[0].CurrentSeverityScore)
}

func TestGetBeachHeatmap_InvalidID(t *testing.T) {
	ts := newTestServer(t)

	for _, id := range []string{"abc", "zzzzzzzzzzzzzzzzzzzzzzzz", galleFaceID + "00", prefixedID} {
		status, env := ts.do(t, nethttp.MethodGet, "/api/v1/heatmap/"+id, "")
		assert.Equal(t, fiber.StatusBadRequest, status, id)
		assert.False(t, env.Success)
		assert.True(t, env.Error)
	}
	assert.Zero(t, ts.mlPredict.Load())
}

func TestGetBeachHeatmap_NotFound(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.do(t, nethttp.MethodGet, "/api/v1/heatmap/"+unknownID, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.False(t, env.Success)
	assert.Equal(t, "Beach not found", env.Message)
}

func TestGetHeatmapHealth(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, nethttp.MethodGet, "/api/v1/heatmap", "")

	status, env := ts.do(t, nethttp.MethodGet, "/api/v1/heatmap/health", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Data.MLService.Reachable)
	assert.False(t, env.Data.MLService.FallbackMode)
	assert.Equal(t, "ok", env.Data.MLService.Status["status"])
	assert.Equal(t, "closed", env.Data.MLService.Breaker)
	assert.True(t, env.Data.Database.Reachable)
	assert.Empty(t, env.Data.Database.Error)
	assert.Equal(t, 1, env.Data.Cache.HeatmapCache.Keys)
	assert.Equal(t, 2, env.Data.Cache.WeatherCache.Keys)
}

type downStore struct {
	*postgres.MockRepository
}

func (downStore) Health(context.Context) error {
	return errors.New("postgres: health check failed: connection refused")
}

func TestGetHeatmapHealth_StoreDown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	heatmapSvc := service.NewHeatmapService(
		downStore{postgres.NewMockRepository()},
		service.NewWeatherService(config.WeatherConfig{CacheTTLSeconds: 3600}, service.WithWeatherLogger(logger)),
		service.NewMLBridge("http://127.0.0.1:1", service.NewFallbackPredictor(),
			service.WithMLLogger(logger),
			service.WithMLTimeouts(time.Second, time.Second),
		),
		cache.New[domain.HeatmapResult](time.Hour),
		service.WithHeatmapLogger(logger),
	)
	ts := &testServer{app: fiber.New(fiber.Config{ErrorHandler: ErrorHandler})}
	SetupRoutes(ts.app, heatmapSvc)

	status, env := ts.do(t, nethttp.MethodGet, "/api/v1/heatmap/health", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.False(t, env.Data.Database.Reachable)
	assert.Contains(t, env.Data.Database.Error, "connection refused")
	assert.False(t, env.Data.MLService.Reachable)
	assert.True(t, env.Data.MLService.FallbackMode)
}

func TestRefreshHeatmap_All(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, nethttp.MethodGet, "/api/v1/heatmap", "")

	status, env := ts.do(t, nethttp.MethodPost, "/api/v1/heatmap/refresh", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Heatmap cache refreshed for all beaches", env.Message)
	assert.False(t, env.Data.Heatmap.FromCache)
	assert.Equal(t, 2, env.Data.Heatmap.BeachCount)
	assert.Equal(t, int32(4), ts.mlPredict.Load())
}

func TestRefreshHeatmap_SingleBeach(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.do(t, nethttp.MethodPost, "/api/v1/heatmap/refresh", `{"beachId":"`+galleFaceID+`"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Cache refreshed for beach "+galleFaceID, env.Message)
	require.Len(t, env.Data.Heatmap.Predictions, 1)
	assert.Equal(t, galleFaceID, env.Data.Heatmap.Predictions[0].BeachID)
}

func TestRefreshHeatmap_Errors(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, nethttp.MethodPost, "/api/v1/heatmap/refresh", `{"beachId":"nope"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = ts.do(t, nethttp.MethodPost, "/api/v1/heatmap/refresh", `{"beachId":"`+prefixedID+`"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = ts.do(t, nethttp.MethodPost, "/api/v1/heatmap/refresh", `{"beachId":`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env := ts.do(t, nethttp.MethodPost, "/api/v1/heatmap/refresh", `{"beachId":"`+unknownID+`"}`)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.False(t, env.Success)
}
