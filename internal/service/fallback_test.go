package service

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoshore/backend/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func weatherWeek(day domain.WeatherDay) []domain.WeatherDay {
	week := make([]domain.WeatherDay, domain.ForecastDays)
	for i := range week {
		d := day
		d.Date = fmt.Sprintf("2026-02-%02d", 21+i)
		week[i] = d
	}
	return week
}

func TestFallbackPredictor_Scenario(t *testing.T) {
	week := weatherWeek(domain.WeatherDay{Precipitation: 10, WindSpeed: 3, Humidity: 85, Temp: 29})

	days := NewFallbackPredictor().Predict(ptr(40), week)
	require.Len(t, days, domain.ForecastDays)

	first := days[0]
	assert.Equal(t, 50.5, first.RiskScore)
	assert.Equal(t, domain.RiskHigh, first.RiskLevel)
	assert.Equal(t, domain.ColorHigh, first.Color)
	assert.Equal(t, 0.6, first.Confidence)
	assert.Equal(t, domain.SourceRules, first.Source)
	assert.Equal(t, domain.WeatherSnapshot{Temp: 29, Humidity: 85, Precipitation: 10, WindSpeed: 3}, first.WeatherSnapshot)
}

func TestFallbackPredictor_PreservesOrder(t *testing.T) {
	week := weatherWeek(domain.WeatherDay{Humidity: 70, WindSpeed: 5})
	days := NewFallbackPredictor().Predict(ptr(20), week)

	require.Len(t, days, len(week))
	for i := range week {
		assert.Equal(t, week[i].Date, days[i].Date)
	}
}

func TestFallbackPredictor_DefaultBaseline(t *testing.T) {
	week := weatherWeek(domain.WeatherDay{Humidity: 70, WindSpeed: 5})
	days := NewFallbackPredictor().Predict(nil, week)

	for _, d := range days {
		assert.Equal(t, 30.0, d.RiskScore)
		assert.Equal(t, domain.RiskModerate, d.RiskLevel)
	}
}

func TestFallbackPredictor_NonFiniteBaselineUsesDefault(t *testing.T) {
	week := weatherWeek(domain.WeatherDay{Humidity: 70, WindSpeed: 5})

	for _, baseline := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		days := NewFallbackPredictor().Predict(ptr(baseline), week)
		for _, d := range days {
			assert.Equal(t, 30.0, d.RiskScore, "baseline %v", baseline)
		}
	}
}

func TestPredictScore_Factors(t *testing.T) {
	tests := []struct {
		name     string
		baseline float64
		day      domain.WeatherDay
		want     float64
	}{
		{
			name:     "rain capped at 15",
			baseline: 40,
			day:      domain.WeatherDay{Precipitation: 100, WindSpeed: 5, Humidity: 70},
			want:     55,
		},
		{
			name:     "strong wind contributes nothing",
			baseline: 40,
			day:      domain.WeatherDay{WindSpeed: 20, Humidity: 70},
			want:     40,
		},
		{
			name:     "dry air lowers risk",
			baseline: 40,
			day:      domain.WeatherDay{WindSpeed: 5, Humidity: 50},
			want:     38,
		},
		{
			name:     "clamped at 100",
			baseline: 99,
			day:      domain.WeatherDay{Precipitation: 20, WindSpeed: 0, Humidity: 100},
			want:     100,
		},
		{
			name:     "clamped at 0",
			baseline: 0,
			day:      domain.WeatherDay{WindSpeed: 5, Humidity: 0},
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PredictScore(tt.baseline, tt.day), 1e-9)
		})
	}
}

func TestFallbackPredictor_ScoresBounded(t *testing.T) {
	predictor := NewFallbackPredictor()
	for _, baseline := range []float64{-50, 0, 30, 75, 100, 250} {
		for _, precip := range []float64{0, 5, 15, 80} {
			for _, humidity := range []float64{0, 50, 70, 100} {
				week := weatherWeek(domain.WeatherDay{Precipitation: precip, WindSpeed: 1, Humidity: humidity})
				days := predictor.Predict(ptr(baseline), week)
				require.Len(t, days, domain.ForecastDays)
				for _, d := range days {
					assert.GreaterOrEqual(t, d.RiskScore, 0.0)
					assert.LessOrEqual(t, d.RiskScore, 100.0)
				}
			}
		}
	}
}
