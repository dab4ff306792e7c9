package postgres

import (
	"context"
	"sort"
	"sync"

	"github.com/ecoshore/backend/internal/domain"
)

// MockRepository implements domain.BeachDataProvider in memory for demo mode
type MockRepository struct {
	mu      sync.RWMutex
	beaches map[string]domain.BeachSnapshot
}

// NewMockRepository creates a mock repository holding the given beaches
func NewMockRepository(beaches ...domain.BeachSnapshot) *MockRepository {
	r := &MockRepository{beaches: make(map[string]domain.BeachSnapshot, len(beaches))}
	for _, b := range beaches {
		r.beaches[b.ID] = b
	}
	return r
}

// NewDemoRepository creates a mock repository seeded with sample beaches
func NewDemoRepository() *MockRepository {
	return NewMockRepository(DemoBeaches()...)
}

// DemoBeaches returns sample Sri Lankan beaches
func DemoBeaches() []domain.BeachSnapshot {
	score := func(v float64) *float64 { return &v }
	return []domain.BeachSnapshot{
		{
			ID:                  "64abc1234def5678901234ab",
			Name:                "Galle Face",
			SeverityScore:       score(62.4),
			SeverityLevel:       "HIGH",
			TotalWasteCollected: 1200,
			TotalCleanups:       34,
			Location: domain.Location{
				City: "Colombo", Address: "Galle Road", Country: "Sri Lanka",
				Coordinates: []float64{79.8458, 6.9249},
			},
			IsActive: true,
		},
		{
			ID:                  "64abc1234def5678901234ac",
			Name:                "Unawatuna",
			SeverityScore:       score(28.1),
			SeverityLevel:       "MODERATE",
			TotalWasteCollected: 430,
			TotalCleanups:       12,
			Location: domain.Location{
				City: "Galle", Address: "Unawatuna Beach Road", Country: "Sri Lanka",
				Coordinates: []float64{80.2489, 6.0097},
			},
			IsActive: true,
		},
		{
			ID:                  "64abc1234def5678901234ad",
			Name:                "Negombo",
			SeverityScore:       score(81.7),
			SeverityLevel:       "CRITICAL",
			TotalWasteCollected: 2875,
			TotalCleanups:       51,
			Location: domain.Location{
				City: "Negombo", Address: "Lewis Place", Country: "Sri Lanka",
				Coordinates: []float64{79.8358, 7.2152},
			},
			IsActive: true,
		},
		{
			ID:   "64abc1234def5678901234ae",
			Name: "Arugam Bay",
			Location: domain.Location{
				City: "Pottuvil", Address: "Main Street", Country: "Sri Lanka",
				Coordinates: []float64{},
			},
			IsActive: true,
		},
	}
}

// Put adds or replaces a beach
func (r *MockRepository) Put(beach domain.BeachSnapshot) {
	r.mu.Lock()
	r.beaches[beach.ID] = beach
	r.mu.Unlock()
}

// FindByID returns the beach with the id, or nil
func (r *MockRepository) FindByID(ctx context.Context, id string) (*domain.BeachSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.beaches[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// FindActive returns active beaches ordered by id
func (r *MockRepository) FindActive(ctx context.Context) ([]domain.BeachSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]domain.BeachSnapshot, 0, len(r.beaches))
	for _, b := range r.beaches {
		if b.IsActive {
			results = append(results, b)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
