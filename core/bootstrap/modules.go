package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/guidebot/core/knowledge"
	"github.com/m3rciful/guidebot/core/logger"
)

// Seeder stores a knowledge base in some persistent backend.
type Seeder interface {
	Seed(ctx context.Context, store *knowledge.Store) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc func(ctx context.Context, store *knowledge.Store) error

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context, store *knowledge.Store) error {
	return f(ctx, store)
}

// Seed loads from and hands the result to every seeder in order, stopping at
// the first failure.
func Seed(ctx context.Context, from knowledge.Source, seeders ...Seeder) (*knowledge.Store, error) {
	store, err := from.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	for i, s := range seeders {
		if s == nil {
			continue
		}
		if err := s.Seed(ctx, store); err != nil {
			return nil, fmt.Errorf("seed step %d: %w", i+1, err)
		}
	}
	stats := store.Stats()
	logger.Info(ctx, logger.CompKB, "kb.seed",
		slog.String("status", "ok"),
		slog.Int("count", len(seeders)),
		slog.Int("topics", stats.Topics),
		slog.Int("subtopics", stats.Subtopics),
	)
	return store, nil
}
