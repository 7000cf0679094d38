package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process brute-force cosine index. Entries keep the
// position of their first insertion, which breaks score ties.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	entries   []Entry
	pos       map[string]int
}

// NewMemoryStore creates an empty store for vectors of dimension dim.
func NewMemoryStore(dim int) *MemoryStore {
	return &MemoryStore{dimension: dim, pos: make(map[string]int)}
}

// Upsert inserts or overwrites entries by product id.
func (s *MemoryStore) Upsert(_ context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := checkDimension(e.Vector, s.dimension); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if i, ok := s.pos[e.ID()]; ok {
			s.entries[i] = e
			continue
		}
		s.pos[e.ID()] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return nil
}

// Search ranks all entries by cosine similarity.
func (s *MemoryStore) Search(_ context.Context, vector []float32, topK int) ([]Match, error) {
	if err := checkDimension(vector, s.dimension); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, len(s.entries))
	for i, e := range s.entries {
		matches[i] = Match{Product: e.Product, Score: cosine(e.Vector, vector)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error { return nil }

// cosine returns 0 when either vector is all zeros.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
