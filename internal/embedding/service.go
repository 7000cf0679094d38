package embedding

import (
	"context"
	"fmt"

	"github.com/nidhogg/makers-assistant/internal/backend"
	"go.uber.org/zap"
)

// Source names the backend that produced a vector.
type Source string

const (
	SourceHosted Source = "hosted"
	SourceHash   Source = "hash"
)

// Result is an embedding plus how it was produced.
type Result struct {
	Vector   Vector
	Source   Source
	Degraded bool
}

// Service produces embeddings of a fixed dimension and never fails: when
// the hosted backend is missing or misbehaves it falls back to HashEmbed.
type Service struct {
	backend   backend.State[Provider]
	dimension int
	logger    *zap.Logger
}

// NewService wraps a backend state. dimension <= 0 selects DefaultDimension.
func NewService(state backend.State[Provider], dimension int, logger *zap.Logger) *Service {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Service{backend: state, dimension: dimension, logger: logger}
}

// NewServiceFromConfig decides the backend state from cfg.
func NewServiceFromConfig(cfg Config, logger *zap.Logger) *Service {
	ok, reason := cfg.Configured()
	var p Provider
	if ok {
		p = NewProvider(cfg)
	}
	return NewService(backend.Use[Provider](p, ok, reason), cfg.Dimension, logger)
}

// Dimension returns the pipeline-wide vector dimension.
func (s *Service) Dimension() int { return s.dimension }

// Available reports whether a hosted backend is configured.
func (s *Service) Available() bool { return backend.IsConfigured[Provider](s.backend) }

// Embed returns a vector for text.
func (s *Service) Embed(ctx context.Context, text string) Result {
	vec, err := s.hosted(ctx, text)
	if err == nil {
		return Result{Vector: vec, Source: SourceHosted}
	}
	backend.LogFallback(s.logger, "embedding fell back to hash", err)
	return Result{Vector: HashEmbed(text, s.dimension), Source: SourceHash, Degraded: true}
}

func (s *Service) hosted(ctx context.Context, text string) (Vector, error) {
	switch b := s.backend.(type) {
	case backend.Configured[Provider]:
		vecs, err := b.Handle.Embed(ctx, []string{text})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", backend.ErrBackendUnavailable, err)
		}
		if len(vecs) == 0 || len(vecs[0]) == 0 {
			return nil, fmt.Errorf("%w: no embedding data", backend.ErrMalformedResponse)
		}
		if len(vecs[0]) != s.dimension {
			return nil, fmt.Errorf("%w: got dimension %d, want %d",
				backend.ErrMalformedResponse, len(vecs[0]), s.dimension)
		}
		return vecs[0], nil
	case backend.Unconfigured[Provider]:
		return nil, fmt.Errorf("%w: %s", backend.ErrConfigurationMissing, b.Reason)
	default:
		return nil, backend.ErrConfigurationMissing
	}
}
