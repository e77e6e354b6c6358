package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"graphreap/internal/config"
	"graphreap/internal/graph"
	"graphreap/internal/store"
	"graphreap/internal/store/postgres"
	"graphreap/internal/store/sqlite"
)

func openDB(ctx context.Context, cfg *config.ProjectConfig) (store.Store, error) {
	dsn := strings.TrimSpace(cfg.Database.DSN)
	if strings.HasPrefix(dsn, "sqlite://") {
		return sqlite.New(ctx, dsn)
	}
	return postgres.New(ctx, dsn)
}

// project is everything a command needs once the config is loaded.
type project struct {
	cfg      *config.ProjectConfig
	registry *graph.Registry
	logger   *slog.Logger
}

func loadProject(stderr io.Writer) (*project, error) {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return nil, err
	}

	specPath := cfg.Spec
	if !filepath.IsAbs(specPath) {
		specPath = filepath.Join(filepath.Dir(configPath), specPath)
	}
	file, err := config.LoadSpecFile(specPath)
	if err != nil {
		return nil, err
	}
	reg, err := graph.FromSpecFile(file)
	if err != nil {
		return nil, err
	}

	return &project{cfg: cfg, registry: reg, logger: newLogger(cfg.Log, stderr)}, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func closeDB(ctx context.Context, db store.Store, logger *slog.Logger) {
	if err := db.Close(ctx); err != nil {
		logger.Warn("closing database", "error", err)
	}
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}
