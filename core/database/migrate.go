package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/guidebot/core/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationsDir = "migrations"

// RunMigrations applies the embedded up migrations to db.
func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	files := listMigrationFiles(migrationFS, migrationsDir)
	logger.Debug(ctx, logger.CompMIG, "migrate.resolve",
		slog.Int("count", len(files)),
		slog.String("path", strings.Join(files, ",")),
	)

	src, err := iofs.New(migrationFS, migrationsDir)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	drv, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		logger.Error(ctx, logger.CompMIG, "migrate.init", slog.String("err", err.Error()))
		return fmt.Errorf("init migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		logger.Error(ctx, logger.CompMIG, "migrate.init", slog.String("err", err.Error()))
		return fmt.Errorf("init migrations: %w", err)
	}

	fromVer, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.Took(start)

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.Error(ctx, logger.CompMIG, "migrate.apply",
			slog.String("status", "fail"),
			slog.Duration("duration", took),
			slog.String("err", upErr.Error()),
		)
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	toVer := fromVer
	if upErr == nil {
		toVer, _, _ = m.Version()
	}
	logger.Info(ctx, logger.CompMIG, "migrate.summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("count", countApplied(files, uint64(fromVer), uint64(toVer))),
		slog.Duration("duration", took),
	)
	return nil
}

func listMigrationFiles(fsys fs.FS, dir string) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	head, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(head, 10, 64)
	return v
}

func countApplied(files []string, from, to uint64) int {
	c := 0
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			c++
		}
	}
	return c
}
