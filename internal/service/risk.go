package service

import (
	"github.com/ecoshore/backend/internal/domain"
)

// ClassifyRisk maps a 0-100 score to its band. Thresholds are checked
// top-down so a score on a boundary lands in the higher band.
func ClassifyRisk(score float64) domain.RiskBand {
	switch {
	case score >= 75:
		return domain.RiskBand{Level: domain.RiskCritical, Color: domain.ColorCritical}
	case score >= 50:
		return domain.RiskBand{Level: domain.RiskHigh, Color: domain.ColorHigh}
	case score >= 25:
		return domain.RiskBand{Level: domain.RiskModerate, Color: domain.ColorModerate}
	default:
		return domain.RiskBand{Level: domain.RiskLow, Color: domain.ColorLow}
	}
}
