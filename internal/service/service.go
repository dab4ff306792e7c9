package service

import (
	"github.com/ecoshore/backend/internal/domain"
)

// BeachDataProvider is re-exported from domain for convenience
type BeachDataProvider = domain.BeachDataProvider
