package testutils

import (
	"context"
	"errors"
	"sort"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papercomputeco/cortex/pkg/vector"
)

// MockCentroidIndex is an in-process vector.CentroidIndex with a linear scan.
type MockCentroidIndex struct {
	mu        sync.Mutex
	centroids map[string]vector.Centroid

	// FailUpsert causes Upsert to return an error.
	FailUpsert bool
}

func NewMockCentroidIndex() *MockCentroidIndex {
	return &MockCentroidIndex{centroids: map[string]vector.Centroid{}}
}

func (m *MockCentroidIndex) Upsert(_ context.Context, centroids []vector.Centroid) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpsert {
		return errors.New("mock upsert failure")
	}
	for _, c := range centroids {
		m.centroids[c.ID] = c
	}
	return nil
}

func (m *MockCentroidIndex) Nearest(_ context.Context, p r3.Vec, k int) ([]vector.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if k <= 0 {
		k = vector.DefaultK
	}

	matches := make([]vector.Match, 0, len(m.centroids))
	for _, c := range m.centroids {
		matches = append(matches, vector.Match{Centroid: c, Distance: r3.Norm(r3.Sub(c.Point, p))})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *MockCentroidIndex) Get(_ context.Context, ids []string) ([]vector.Centroid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []vector.Centroid{}
	for _, id := range ids {
		if c, ok := m.centroids[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Len returns the number of stored centroids.
func (m *MockCentroidIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.centroids)
}

func (m *MockCentroidIndex) Close() error {
	return nil
}
