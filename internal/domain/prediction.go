package domain

import "time"

// RiskLevel is the discrete band derived from a 0-100 score
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Map pin colors per risk level
const (
	ColorLow      = "#22c55e"
	ColorModerate = "#eab308"
	ColorHigh     = "#f97316"
	ColorCritical = "#ef4444"
)

// RiskBand pairs a level with its display color
type RiskBand struct {
	Level RiskLevel `json:"level"`
	Color string    `json:"color"`
}

// Prediction sources
const (
	SourceML    = "ml"
	SourceRules = "rules-based"
)

// WeatherSnapshot is the weather subset echoed back with each prediction
type WeatherSnapshot struct {
	Temp          float64 `json:"temp"`
	Humidity      float64 `json:"humidity"`
	Precipitation float64 `json:"precipitation"`
	WindSpeed     float64 `json:"windSpeed"`
}

// PredictionDay is a single day of a beach pollution forecast
type PredictionDay struct {
	Date            string          `json:"date"`
	RiskScore       float64         `json:"riskScore"`
	RiskLevel       RiskLevel       `json:"riskLevel"`
	Color           string          `json:"color"`
	Confidence      float64         `json:"confidence"`
	Source          string          `json:"source"`
	WeatherSnapshot WeatherSnapshot `json:"weatherSnapshot"`
}

// BeachForecast bundles the 7-day forecast of one beach for the map
type BeachForecast struct {
	BeachID              string          `json:"beachId"`
	BeachName            string          `json:"beachName"`
	Location             Location        `json:"location"`
	CurrentSeverityScore float64         `json:"currentSeverityScore"`
	CurrentSeverityLevel string          `json:"currentSeverityLevel"`
	TodayRisk            *PredictionDay  `json:"todayRisk"`
	Forecast             []PredictionDay `json:"forecast"`
}

// HeatmapResult is the payload served to the map. A cached result is
// never modified; FromCache is set on copies.
type HeatmapResult struct {
	Predictions []BeachForecast `json:"predictions"`
	BeachCount  int             `json:"beachCount"`
	GeneratedAt time.Time       `json:"generatedAt"`
	CacheTTL    int             `json:"cacheTTL"`
	FromCache   bool            `json:"fromCache"`
}

// WithFromCache returns a shallow copy carrying the given flag
func (r HeatmapResult) WithFromCache(fromCache bool) HeatmapResult {
	r.FromCache = fromCache
	return r
}

// MLHealth reports predictor reachability
type MLHealth struct {
	Reachable    bool           `json:"reachable"`
	FallbackMode bool           `json:"fallbackMode"`
	Error        string         `json:"error,omitempty"`
	Message      string         `json:"message,omitempty"`
	Status       map[string]any `json:"status,omitempty"`
	// Breaker is the client-side circuit state: closed, half-open or open
	Breaker string `json:"breaker,omitempty"`
}
