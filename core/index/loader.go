package index

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/guidebot/core/knowledge"
	"github.com/m3rciful/guidebot/core/logger"
)

// Origin tells where the index in use came from.
type Origin string

const (
	// OriginCache means the persisted index was reused verbatim.
	OriginCache Origin = "cache"
	// OriginBuilt means nothing usable was persisted and the index was built.
	OriginBuilt Origin = "built"
	// OriginRebuilt means a persisted index existed but was malformed or stale.
	OriginRebuilt Origin = "rebuilt"
)

// LoadOrBuild returns the persisted index when it covers store, otherwise it
// builds a fresh one and persists it. Cache failures never fail startup: a
// failed save is logged and the built index is still returned.
func LoadOrBuild(ctx context.Context, cache Cache, store *knowledge.Store) (*Index, Origin) {
	if cache == nil {
		cache = NopCache{}
	}
	start := time.Now()
	backend := slog.String("backend", cache.Describe())

	loaded, err := cache.Load(ctx)
	origin := OriginRebuilt
	reason := ""
	switch {
	case err == nil && loaded.Covers(store):
		logger.Info(ctx, logger.CompIndex, "index.load",
			slog.String("status", "ok"),
			slog.String("cache", "hit"),
			backend,
			slog.Int("count", loaded.Len()),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
		return loaded, OriginCache
	case err == nil:
		reason = "stale"
	case errors.Is(err, ErrAbsent):
		origin = OriginBuilt
		reason = "absent"
	case errors.Is(err, ErrMalformed):
		reason = "malformed"
	default:
		reason = "load_error"
	}

	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("cache", "miss"),
		backend,
		slog.String("reason", reason),
	}
	if err != nil && !errors.Is(err, ErrAbsent) {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	logger.Warn(ctx, logger.CompIndex, "index.load", attrs...)

	idx := Build(store)
	if err := cache.Save(ctx, idx); err != nil {
		logger.Warn(ctx, logger.CompIndex, "index.save",
			slog.String("status", "fail"),
			backend,
			slog.String("err", err.Error()),
		)
	} else {
		logger.Info(ctx, logger.CompIndex, "index.save",
			slog.String("status", "ok"),
			backend,
			slog.Int("count", idx.Len()),
		)
	}
	logger.Info(ctx, logger.CompIndex, "index.build",
		slog.String("status", "ok"),
		slog.String("origin", string(origin)),
		slog.Int("count", idx.Len()),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return idx, origin
}
