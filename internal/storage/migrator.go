package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

const createMigrationsTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
)`

// Migrator applies embedded .up.sql migrations in lexical order, recording
// each applied file so reruns are no-ops.
type Migrator struct {
	db      *sql.DB
	dialect Dialect
	log     *slog.Logger
	fsys    fs.FS
	root    string
}

// NewMigrator constructs a Migrator over the bundled registrations schema.
func NewMigrator(db *sql.DB, dialect Dialect, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}

	return &Migrator{
		db:      db,
		dialect: dialect,
		log:     log.With(slog.String("component", "migrator")),
		fsys:    migrationFiles,
		root:    "migrations",
	}
}

// Apply runs every pending migration.
func (m *Migrator) Apply(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createMigrationsTableSQL); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := ListMigrations(m.fsys, m.root)
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	if len(names) == 0 {
		m.log.Info("no .up.sql migrations found")
		return nil
	}

	for _, name := range names {
		applied, err := m.applied(ctx, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		if err := m.applyFile(ctx, name); err != nil {
			return err
		}
	}

	return nil
}

func (m *Migrator) applied(ctx context.Context, name string) (bool, error) {
	var found string
	err := m.db.QueryRowContext(ctx,
		m.dialect.rebind(`SELECT name FROM schema_migrations WHERE name = $1`), name).Scan(&found)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check migration %q: %w", name, err)
	default:
		return true, nil
	}
}

func (m *Migrator) applyFile(ctx context.Context, name string) error {
	log := m.log.With(slog.String("file", name))
	log.Info("applying migration")

	data, err := fs.ReadFile(m.fsys, path.Join(m.root, name))
	if err != nil {
		return fmt.Errorf("read migration %q: %w", name, err)
	}

	statement := strings.TrimSpace(string(data))
	if statement == "" {
		log.Warn("migration is empty, skipping")
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for migration %q: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, statement); err != nil {
		rollback(log, tx)
		return fmt.Errorf("execute migration %q: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx,
		m.dialect.rebind(`INSERT INTO schema_migrations (name, applied_at) VALUES ($1, $2)`),
		name, time.Now().UTC()); err != nil {
		rollback(log, tx)
		return fmt.Errorf("record migration %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %q: %w", name, err)
	}

	return nil
}

func rollback(log *slog.Logger, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Error("rollback error", slog.Any("error", err))
	}
}

// ListMigrations returns all .up.sql files under root in lexical order.
func ListMigrations(fsys fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		names = append(names, e.Name())
	}

	sort.Strings(names)
	return names, nil
}
