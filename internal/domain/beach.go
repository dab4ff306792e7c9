package domain

import "math"

// Location is the postal and geographic position of a beach
type Location struct {
	City    string `json:"city"`
	Address string `json:"address"`
	Country string `json:"country,omitempty"`
	// Coordinates follows GeoJSON order: [longitude, latitude]
	Coordinates []float64 `json:"coordinates"`
}

// LatLon extracts the coordinate pair. ok is false unless exactly two
// finite values are present; an empty slice is not a position.
func (l Location) LatLon() (lat, lon float64, ok bool) {
	if len(l.Coordinates) != 2 {
		return 0, 0, false
	}
	lon, lat = l.Coordinates[0], l.Coordinates[1]
	if !finite(lat) || !finite(lon) {
		return 0, 0, false
	}
	return lat, lon, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// BeachSnapshot is a read-only projection of a beach's analytics state.
// It is fetched fresh for every generation and never mutated.
type BeachSnapshot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// SeverityScore is nil when the batch job has not scored the beach yet
	SeverityScore       *float64 `json:"severityScore"`
	SeverityLevel       string   `json:"severityLevel"`
	TotalWasteCollected float64  `json:"totalWasteCollected"`
	TotalCleanups       int      `json:"totalCleanups"`
	Location            Location `json:"location"`
	IsActive            bool     `json:"isActive"`
}

// Scored reports whether the beach carries a usable severity score.
// NaN and infinite scores count as unscored.
func (b BeachSnapshot) Scored() bool {
	return b.SeverityScore != nil && finite(*b.SeverityScore)
}

// Score returns the severity score, or 0 when unscored
func (b BeachSnapshot) Score() float64 {
	if !b.Scored() {
		return 0
	}
	return *b.SeverityScore
}

// Level returns the stored severity level, LOW when unset
func (b BeachSnapshot) Level() string {
	if b.SeverityLevel == "" {
		return string(RiskLow)
	}
	return b.SeverityLevel
}
