package service

import (
	"math"

	"github.com/ecoshore/backend/internal/domain"
	"github.com/ecoshore/backend/pkg/utils"
)

const (
	// defaultBaseline is used when a beach has never been scored
	defaultBaseline = 30.0

	fallbackConfidence = 0.6
)

// FallbackPredictor produces rules-based forecasts from a severity
// baseline and the weather. It is deterministic and has no state.
type FallbackPredictor struct{}

// NewFallbackPredictor creates a rules-based predictor
func NewFallbackPredictor() FallbackPredictor {
	return FallbackPredictor{}
}

// Predict returns one prediction per weather day, in input order.
// A nil baseline means the beach has no stored score.
func (FallbackPredictor) Predict(baseline *float64, weather []domain.WeatherDay) []domain.PredictionDay {
	base := defaultBaseline
	if baseline != nil && !math.IsNaN(*baseline) && !math.IsInf(*baseline, 0) {
		base = *baseline
	}

	days := make([]domain.PredictionDay, 0, len(weather))
	for _, day := range weather {
		score := utils.RoundTo(PredictScore(base, day), 2)
		band := ClassifyRisk(score)

		days = append(days, domain.PredictionDay{
			Date:            day.Date,
			RiskScore:       score,
			RiskLevel:       band.Level,
			Color:           band.Color,
			Confidence:      fallbackConfidence,
			Source:          domain.SourceRules,
			WeatherSnapshot: day.Snapshot(),
		})
	}

	return days
}

// PredictScore applies the weather adjustments to a baseline:
// rain adds up to 15, calm wind below 5 adds risk while stronger wind
// contributes nothing, and humidity moves risk around a 70% reference.
func PredictScore(baseline float64, day domain.WeatherDay) float64 {
	rainFactor := math.Min(day.Precipitation*0.8, 15)
	windFactor := math.Max(0, (day.WindSpeed-5)*-0.5)
	humidityFactor := (day.Humidity - 70) * 0.1

	return utils.Clamp(baseline+rainFactor+windFactor+humidityFactor, 0, 100)
}
