package domain

import (
	"context"
	"errors"
)

// ErrBeachNotFound is returned when a requested beach id does not resolve
var ErrBeachNotFound = errors.New("beach not found")

// BeachDataProvider defines read access to beach snapshots.
// Persistence of beaches is owned elsewhere; this core only reads.
type BeachDataProvider interface {
	// FindByID returns nil, nil when no beach has the id
	FindByID(ctx context.Context, id string) (*BeachSnapshot, error)

	// FindActive returns all beaches flagged active
	FindActive(ctx context.Context) ([]BeachSnapshot, error)

	// Health checks storage connectivity
	Health(ctx context.Context) error
}

// StoreHealth reports beach store reachability
type StoreHealth struct {
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}
