// Package catalog reads the product catalog and reports changes to it.
package catalog

import (
	"context"
	"errors"
	"fmt"
)

// Product is one catalog record as seen by the assistant.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Brand       string  `json:"brand"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Stock       int     `json:"stock"`
}

// Validate rejects records that cannot be indexed.
func (p Product) Validate() error {
	if p.ID == "" {
		return errors.New("product id is required")
	}
	if p.Price < 0 {
		return fmt.Errorf("product %s: negative price %v", p.ID, p.Price)
	}
	if p.Stock < 0 {
		return fmt.Errorf("product %s: negative stock %d", p.ID, p.Stock)
	}
	return nil
}

// Source returns the full current product set.
type Source interface {
	ListProducts(ctx context.Context) ([]Product, error)
}

// Change is a catalog change notification. Granularity is loose: consumers
// re-sync the whole catalog on any change.
type Change struct {
	Op        string `json:"op"` // INSERT, UPDATE, DELETE
	ProductID string `json:"id"`
	Source    string `json:"source,omitempty"`
}

// Watcher emits catalog changes until ctx is cancelled.
type Watcher interface {
	Watch(ctx context.Context) <-chan Change
}
