// Package vectorstore keeps one embedding per catalog product and answers
// top-K similarity queries.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/nidhogg/makers-assistant/internal/catalog"
)

// Entry is an indexed product: id, vector and product metadata.
type Entry struct {
	Product catalog.Product
	Vector  []float32
}

// ID returns the product id the entry is keyed by.
func (e Entry) ID() string { return e.Product.ID }

// Match is one query hit, ordered by descending Score.
type Match struct {
	Product catalog.Product
	Score   float32
}

// Store is a vector index backend.
type Store interface {
	Upsert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Close() error
}

func checkDimension(vector []float32, dim int) error {
	if dim > 0 && len(vector) != dim {
		return fmt.Errorf("vector length %d does not match dimension %d", len(vector), dim)
	}
	return nil
}
