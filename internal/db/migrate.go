package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockKey identifies the ledger's schema in pg_advisory_lock. Every
// replica migrating the same database contends on it.
const migrationLockKey int64 = 0x6c6564676572

// Migrate brings the ledger schema up to date. It holds a session advisory
// lock for the whole run so replicas starting together apply each version
// once, and applies every pending version in its own transaction in file
// name order.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open postgres connection: %w", err)
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockKey); err != nil {
			zap.L().Warn("release migration lock failed", zap.Error(err))
		}
	}()

	if _, err := conn.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	files, err := migrationFiles()
	if err != nil {
		return err
	}
	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	todo := pending(files, applied)
	zap.L().Info("schema check",
		zap.Int("known", len(files)),
		zap.Int("applied", len(files)-len(todo)),
		zap.Int("pending", len(todo)))

	for _, version := range todo {
		if err := apply(ctx, conn, version); err != nil {
			return err
		}
		zap.L().Info("migration applied", zap.String("version", version))
	}
	return nil
}

const schemaMigrationsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func apply(ctx context.Context, conn *sql.Conn, version string) error {
	body, err := fs.ReadFile(migrationFS, "migrations/"+version)
	if err != nil {
		return fmt.Errorf("read migration %q: %w", version, err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %q: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return fmt.Errorf("execute migration %q: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, version); err != nil {
		return fmt.Errorf("record migration %q: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %q: %w", version, err)
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[string]struct{}, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return applied, nil
}

// pending returns the versions in files that are not in applied, keeping
// file order. Applied versions with no embedded file are logged; a binary
// older than its database keeps running against the newer schema.
func pending(files []string, applied map[string]struct{}) []string {
	known := make(map[string]struct{}, len(files))
	var todo []string
	for _, f := range files {
		known[f] = struct{}{}
		if _, ok := applied[f]; ok {
			zap.L().Debug("migration already applied", zap.String("version", f))
			continue
		}
		todo = append(todo, f)
	}
	for version := range applied {
		if _, ok := known[version]; !ok {
			zap.L().Warn("database has a migration this build does not know", zap.String("version", version))
		}
	}
	return todo
}

func migrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".sql") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	return files, nil
}
