package vectorstore

import (
	"context"
	"fmt"

	"github.com/nidhogg/makers-assistant/internal/backend"
	"go.uber.org/zap"
)

// UpsertResult reports how many entries were written.
type UpsertResult struct {
	Written  int
	Degraded bool
}

// QueryResult carries matches; Degraded marks an empty answer caused by an
// unavailable backend rather than an empty index.
type QueryResult struct {
	Matches  []Match
	Degraded bool
}

// Index wraps a Store so that failures degrade to no-ops and empty results.
type Index struct {
	store  backend.State[Store]
	logger *zap.Logger
}

// NewIndex creates an Index over a backend state.
func NewIndex(store backend.State[Store], logger *zap.Logger) *Index {
	return &Index{store: store, logger: logger}
}

// Available reports whether a backend is configured.
func (ix *Index) Available() bool { return backend.IsConfigured[Store](ix.store) }

// Upsert writes entries keyed by product id. Callers must not assume
// persistence succeeded.
func (ix *Index) Upsert(ctx context.Context, entries []Entry) UpsertResult {
	if len(entries) == 0 {
		return UpsertResult{}
	}
	switch s := ix.store.(type) {
	case backend.Configured[Store]:
		if err := s.Handle.Upsert(ctx, entries); err != nil {
			backend.LogFallback(ix.logger, "index upsert skipped",
				fmt.Errorf("%w: %v", backend.ErrBackendUnavailable, err),
				zap.Int("entries", len(entries)))
			return UpsertResult{Degraded: true}
		}
		ix.logger.Info("index upserted", zap.Int("entries", len(entries)))
		return UpsertResult{Written: len(entries)}
	case backend.Unconfigured[Store]:
		backend.LogFallback(ix.logger, "index upsert skipped",
			fmt.Errorf("%w: %s", backend.ErrConfigurationMissing, s.Reason))
	}
	return UpsertResult{Degraded: true}
}

// Query returns up to topK matches. It never fails.
func (ix *Index) Query(ctx context.Context, vector []float32, topK int) QueryResult {
	if topK <= 0 {
		topK = 1
	}
	switch s := ix.store.(type) {
	case backend.Configured[Store]:
		matches, err := s.Handle.Search(ctx, vector, topK)
		if err != nil {
			backend.LogFallback(ix.logger, "index query returned nothing",
				fmt.Errorf("%w: %v", backend.ErrBackendUnavailable, err))
			return QueryResult{Matches: []Match{}, Degraded: true}
		}
		if len(matches) > topK {
			matches = matches[:topK]
		}
		if matches == nil {
			matches = []Match{}
		}
		return QueryResult{Matches: matches}
	case backend.Unconfigured[Store]:
		backend.LogFallback(ix.logger, "index query returned nothing",
			fmt.Errorf("%w: %s", backend.ErrConfigurationMissing, s.Reason))
	}
	return QueryResult{Matches: []Match{}, Degraded: true}
}

// Close releases the backend.
func (ix *Index) Close() error {
	if s, ok := ix.store.(backend.Configured[Store]); ok {
		return s.Handle.Close()
	}
	return nil
}
