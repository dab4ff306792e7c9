package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/ecoshore/backend/internal/domain"
)

const (
	predictTimeout = 15 * time.Second
	healthTimeout  = 5 * time.Second
)

// PredictBeach is the beach part of the predictor request
type PredictBeach struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	SeverityScore       float64         `json:"severityScore"`
	TotalWasteCollected float64         `json:"totalWasteCollected"`
	TotalCleanups       int             `json:"totalCleanups"`
	Location            domain.Location `json:"location"`
}

// PredictRequest is the body of POST /predict
type PredictRequest struct {
	Beach   PredictBeach        `json:"beach"`
	Weather []domain.WeatherDay `json:"weather"`
}

// predictResponse accepts both the bare shape and the Flask envelope
type predictResponse struct {
	Predictions []domain.PredictionDay `json:"predictions"`
	Data        *struct {
		Predictions []domain.PredictionDay `json:"predictions"`
	} `json:"data"`
}

func (r predictResponse) days() []domain.PredictionDay {
	if len(r.Predictions) > 0 {
		return r.Predictions
	}
	if r.Data != nil {
		return r.Data.Predictions
	}
	return nil
}

// PredictionOutcome is the result of a prediction attempt. Days is
// always a full forecast; FallbackReason is set when the rules-based
// predictor produced it.
type PredictionOutcome struct {
	Days           []domain.PredictionDay
	Source         string
	FallbackReason string
}

// UsedFallback reports whether the predictor service was bypassed
func (o PredictionOutcome) UsedFallback() bool {
	return o.FallbackReason != ""
}

// MLBridge handles communication with the Python ML service
type MLBridge struct {
	serviceURL     string
	httpClient     *http.Client
	breaker        *gobreaker.CircuitBreaker[[]domain.PredictionDay]
	fallback       FallbackPredictor
	logger         *slog.Logger
	predictTimeout time.Duration
	healthTimeout  time.Duration
}

// MLOption configures an MLBridge
type MLOption func(*MLBridge)

// WithMLHTTPClient overrides the HTTP client
func WithMLHTTPClient(c *http.Client) MLOption {
	return func(b *MLBridge) {
		b.httpClient = c
	}
}

// WithMLBreaker replaces the default circuit breaker
func WithMLBreaker(cb *gobreaker.CircuitBreaker[[]domain.PredictionDay]) MLOption {
	return func(b *MLBridge) {
		b.breaker = cb
	}
}

// WithMLTimeouts overrides the predict and health timeouts
func WithMLTimeouts(predict, health time.Duration) MLOption {
	return func(b *MLBridge) {
		b.predictTimeout = predict
		b.healthTimeout = health
	}
}

// WithMLLogger sets the logger
func WithMLLogger(l *slog.Logger) MLOption {
	return func(b *MLBridge) {
		b.logger = l
	}
}

// NewMLBreaker builds the default predictor breaker: it opens after
// five consecutive failures and probes again after 30s
func NewMLBreaker() *gobreaker.CircuitBreaker[[]domain.PredictionDay] {
	return gobreaker.NewCircuitBreaker[[]domain.PredictionDay](gobreaker.Settings{
		Name:        "ml-predictor",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// NewMLBridge creates a new ML bridge
func NewMLBridge(serviceURL string, fallback FallbackPredictor, opts ...MLOption) *MLBridge {
	b := &MLBridge{
		serviceURL:     strings.TrimRight(serviceURL, "/"),
		httpClient:     &http.Client{},
		fallback:       fallback,
		logger:         slog.Default(),
		predictTimeout: predictTimeout,
		healthTimeout:  healthTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.breaker == nil {
		b.breaker = NewMLBreaker()
	}
	return b
}

// Predict asks the ML service for a 7-day forecast. Any failure is
// logged and answered by the rules-based predictor; no retry is made.
func (b *MLBridge) Predict(ctx context.Context, beach domain.BeachSnapshot, weather []domain.WeatherDay) PredictionOutcome {
	days, err := b.breaker.Execute(func() ([]domain.PredictionDay, error) {
		return b.requestPrediction(ctx, beach, weather)
	})
	if err != nil {
		reason := err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			reason = "circuit open: " + reason
		}
		b.logger.Warn("ML service unavailable, using rules-based fallback",
			"beach_id", beach.ID, "reason", reason)

		return PredictionOutcome{
			Days:           b.fallback.Predict(beach.SeverityScore, weather),
			Source:         domain.SourceRules,
			FallbackReason: reason,
		}
	}

	return PredictionOutcome{Days: days, Source: domain.SourceML}
}

func (b *MLBridge) requestPrediction(ctx context.Context, beach domain.BeachSnapshot, weather []domain.WeatherDay) ([]domain.PredictionDay, error) {
	body, err := json.Marshal(PredictRequest{
		Beach: PredictBeach{
			ID:                  beach.ID,
			Name:                beach.Name,
			SeverityScore:       beach.Score(),
			TotalWasteCollected: beach.TotalWasteCollected,
			TotalCleanups:       beach.TotalCleanups,
			Location:            beach.Location,
		},
		Weather: weather,
	})
	if err != nil {
		return nil, fmt.Errorf("ml_bridge: failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.predictTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/predict", b.serviceURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ml_bridge: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ml_bridge: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ml_bridge: service returned status %d", resp.StatusCode)
	}

	var prediction predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("ml_bridge: failed to decode response: %w", err)
	}

	days := prediction.days()
	if len(days) != domain.ForecastDays {
		return nil, fmt.Errorf("ml_bridge: expected %d predictions, got %d", domain.ForecastDays, len(days))
	}
	for i := range days {
		if days[i].Source == "" {
			days[i].Source = domain.SourceML
		}
	}

	return days, nil
}

// CheckHealth probes the ML service independently of predictions
func (b *MLBridge) CheckHealth(ctx context.Context) domain.MLHealth {
	status, err := b.health(ctx)
	if err != nil {
		return domain.MLHealth{
			Reachable:    false,
			FallbackMode: true,
			Error:        err.Error(),
			Message:      "Using rules-based predictions",
			Breaker:      b.BreakerState(),
		}
	}

	h := domain.MLHealth{Reachable: true, Status: status, Breaker: b.BreakerState()}
	if fallback, ok := status["fallbackMode"].(bool); ok {
		h.FallbackMode = fallback
	}
	return h
}

func (b *MLBridge) health(ctx context.Context) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, b.healthTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/health", b.serviceURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ml_bridge: failed to create health request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ml_bridge: health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ml_bridge: health check returned status %d", resp.StatusCode)
	}

	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("ml_bridge: failed to decode health response: %w", err)
	}

	// Flask wraps the payload as {success, message, data}
	if data, ok := status["data"].(map[string]any); ok {
		return data, nil
	}
	if status == nil {
		status = map[string]any{}
	}
	return status, nil
}

// BreakerState reports the circuit breaker state for diagnostics
func (b *MLBridge) BreakerState() string {
	return b.breaker.State().String()
}
