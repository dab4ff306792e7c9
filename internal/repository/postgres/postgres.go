package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecoshore/backend/internal/domain"
)

const beachColumns = `
	id, name, city, address, country, longitude, latitude,
	severity_score, severity_level, total_waste_collected, total_cleanups, is_active
`

// beachRow mirrors the beaches table; nullable columns are pointers
type beachRow struct {
	ID                  string   `db:"id"`
	Name                string   `db:"name"`
	City                string   `db:"city"`
	Address             string   `db:"address"`
	Country             *string  `db:"country"`
	Longitude           *float64 `db:"longitude"`
	Latitude            *float64 `db:"latitude"`
	SeverityScore       *float64 `db:"severity_score"`
	SeverityLevel       *string  `db:"severity_level"`
	TotalWasteCollected float64  `db:"total_waste_collected"`
	TotalCleanups       int      `db:"total_cleanups"`
	IsActive            bool     `db:"is_active"`
}

func (r beachRow) snapshot() domain.BeachSnapshot {
	b := domain.BeachSnapshot{
		ID:                  r.ID,
		Name:                r.Name,
		SeverityScore:       r.SeverityScore,
		TotalWasteCollected: r.TotalWasteCollected,
		TotalCleanups:       r.TotalCleanups,
		IsActive:            r.IsActive,
		Location: domain.Location{
			City:    r.City,
			Address: r.Address,
		},
	}
	if r.Country != nil {
		b.Location.Country = *r.Country
	}
	if r.SeverityLevel != nil {
		b.SeverityLevel = *r.SeverityLevel
	}
	if r.Longitude != nil && r.Latitude != nil {
		b.Location.Coordinates = []float64{*r.Longitude, *r.Latitude}
	}
	return b
}

// BeachRepository implements domain.BeachDataProvider on PostgreSQL
type BeachRepository struct {
	pool *pgxpool.Pool
}

// NewBeachRepository creates a new PostgreSQL beach repository
func NewBeachRepository(pool *pgxpool.Pool) *BeachRepository {
	return &BeachRepository{pool: pool}
}

// FindByID loads one beach snapshot; nil when the id is unknown
func (r *BeachRepository) FindByID(ctx context.Context, id string) (*domain.BeachSnapshot, error) {
	query := `SELECT ` + beachColumns + ` FROM beaches WHERE id = $1`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query beach: %w", err)
	}

	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[beachRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to scan beach row: %w", err)
	}

	snapshot := row.snapshot()
	return &snapshot, nil
}

// FindActive loads every active beach, most polluted first
func (r *BeachRepository) FindActive(ctx context.Context) ([]domain.BeachSnapshot, error) {
	query := `
		SELECT ` + beachColumns + `
		FROM beaches
		WHERE is_active = TRUE
		ORDER BY severity_score DESC NULLS LAST, id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query active beaches: %w", err)
	}

	beachRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[beachRow])
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to scan beach rows: %w", err)
	}

	results := make([]domain.BeachSnapshot, 0, len(beachRows))
	for _, row := range beachRows {
		results = append(results, row.snapshot())
	}
	return results, nil
}

// Health checks database connectivity
func (r *BeachRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
