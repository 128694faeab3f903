package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/guidebot/core/config"
	coredatabase "github.com/m3rciful/guidebot/core/database"
	"github.com/m3rciful/guidebot/core/index"
	"github.com/m3rciful/guidebot/core/knowledge"
	"github.com/m3rciful/guidebot/core/logger"
)

// Options control the startup pipeline. Nil hooks use the real
// implementations.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, *sqlx.DB) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// Store and Index are immutable and safe for concurrent reads.
type Result struct {
	DB     *sqlx.DB
	Source knowledge.Source
	Cache  index.Cache
	Store  *knowledge.Store
	Index  *index.Index
	Origin index.Origin

	closers []io.Closer
}

// Close releases the database pool and cache clients.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Run initializes the logger, loads the knowledge base and loads or builds
// the identifier index.
func Run(ctx context.Context, opts Options) (*Result, error) {
	res, err := Open(ctx, opts)
	if err != nil {
		return nil, err
	}

	store, err := res.Source.Load(ctx)
	if err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("bootstrap: knowledge load failed: %w", err)
	}
	res.Store = store
	res.Index, res.Origin = index.LoadOrBuild(ctx, res.Cache, store)

	stats := store.Stats()
	logger.Info(ctx, logger.CompApp, "bootstrap",
		slog.String("status", "ok"),
		slog.String("source", opts.Config.Knowledge.Source),
		slog.String("origin", string(res.Origin)),
		slog.Int("topics", stats.Topics),
		slog.Int("subtopics", stats.Subtopics),
		slog.Int("count", res.Index.Len()),
	)
	return res, nil
}

// Open initializes the logger and opens the configured knowledge source and
// index cache without loading anything.
func Open(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	cfg := opts.Config

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}
	switch cfg.Knowledge.Source {
	case coreconfig.SourcePostgres:
		db, err := OpenDatabase(ctx, cfg.Database, opts)
		if err != nil {
			return nil, err
		}
		res.DB = db
		res.closers = append(res.closers, db)
		res.Source = coredatabase.NewKnowledgeRepository(db)
	default:
		res.Source = knowledge.FileSource{Path: cfg.Knowledge.Path}
	}

	cache, err := OpenCache(cfg.Index)
	if err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("bootstrap: index cache: %w", err)
	}
	res.Cache = cache
	if c, ok := cache.(io.Closer); ok {
		res.closers = append(res.closers, c)
	}
	return res, nil
}

// OpenDatabase connects to Postgres and applies the embedded migrations.
func OpenDatabase(ctx context.Context, cfg coredatabase.Config, opts Options) (*sqlx.DB, error) {
	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	return db, nil
}

// OpenCache returns the index cache selected by cfg.Backend.
func OpenCache(cfg coreconfig.IndexConfig) (index.Cache, error) {
	switch cfg.Backend {
	case coreconfig.BackendRedis:
		return index.NewRedisCache(cfg.RedisURL, cfg.RedisKey)
	case coreconfig.BackendNone:
		return index.NopCache{}, nil
	default:
		return index.FileCache{Path: cfg.Path}, nil
	}
}
