package migrate

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Conn is the subset of pgxpool.Pool used by the runner.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Options configures Run.
type Options struct {
	Logger *slog.Logger
	// FS overrides the embedded migrations; files are read from its "migrations" directory.
	FS fs.FS
}

// Result reports which versions were applied by a run.
type Result struct {
	Applied []string
	Skipped []string
}

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// Run applies all SQL migrations in version order. It is safe to call multiple times.
func Run(ctx context.Context, db Conn, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "migrations")

	src := opts.FS
	if src == nil {
		src = migrationsFS
	}

	if _, err := db.Exec(ctx, createTableSQL); err != nil {
		return Result{}, fmt.Errorf("create schema_migrations table: %w", err)
	}

	versions, err := Versions(src)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, v := range versions {
		applied, err := applyMigration(ctx, db, src, v, logger)
		if err != nil {
			return res, err
		}
		if applied {
			res.Applied = append(res.Applied, v)
		} else {
			res.Skipped = append(res.Skipped, v)
		}
	}
	return res, nil
}

// Versions lists migration versions (file names without .sql) in apply order.
func Versions(src fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(src, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var versions []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			versions = append(versions, strings.TrimSuffix(e.Name(), ".sql"))
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS { return migrationsFS }

func applyMigration(ctx context.Context, db Conn, src fs.FS, version string, logger *slog.Logger) (bool, error) {
	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	if exists {
		return false, nil
	}

	sqlBytes, err := fs.ReadFile(src, "migrations/"+version+".sql")
	if err != nil {
		return false, fmt.Errorf("read migration %s: %w", version, err)
	}

	logger.InfoContext(ctx, "applying migration", "version", version)

	tx, err := db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logger.ErrorContext(ctx, "failed to rollback transaction", "err", rbErr, "version", version)
		}
	}()

	if _, err := tx.Exec(ctx, string(sqlBytes)); err != nil {
		return false, fmt.Errorf("exec migration %s: %w", version, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
		return false, fmt.Errorf("record migration %s: %w", version, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", version, err)
	}
	committed = true
	return true, nil
}
