package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/menu-core/internal/domain/entities"
)

// SemanticIndex is a mock implementation of ports.SemanticIndex.
type SemanticIndex struct {
	mu sync.Mutex

	Points     map[int64]entities.SemanticPoint
	SearchHits []entities.SemanticHit
	Err        error
	SearchErr  error

	// Call tracking
	SearchCallCount int
	DeletedIDs      []int64
}

// NewSemanticIndex creates a new mock SemanticIndex.
func NewSemanticIndex() *SemanticIndex {
	return &SemanticIndex{Points: make(map[int64]entities.SemanticPoint)}
}

// UpsertEntries stores the points.
func (m *SemanticIndex) UpsertEntries(_ context.Context, points []entities.SemanticPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	for _, p := range points {
		m.Points[p.StandardMenuID] = p
	}
	return nil
}

// Search returns the configured hits, capped at limit.
func (m *SemanticIndex) Search(_ context.Context, _ []float32, limit int) ([]entities.SemanticHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SearchCallCount++
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if m.Err != nil {
		return nil, m.Err
	}
	hits := m.SearchHits
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// DeleteEntry removes a single point.
func (m *SemanticIndex) DeleteEntry(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	delete(m.Points, id)
	m.DeletedIDs = append(m.DeletedIDs, id)
	return nil
}

// DeleteAll removes every point.
func (m *SemanticIndex) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.Points = make(map[int64]entities.SemanticPoint)
	return nil
}
