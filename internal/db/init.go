// Package db establishes the Postgres connection and runs the SQL scripts in
// ./migrations at startup. A pg advisory lock guards the migration pass so
// multiple instances starting at once do not race on DDL.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/lib/pq"
)

const (
	migrationsDir   = "./migrations"
	migrationLockID = 4217
)

func Connect(postgresURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// Migrate executes every *.sql script in migrationsDir, in name order, under
// an advisory lock. Scripts are idempotent (CREATE TABLE IF NOT EXISTS), so a
// re-run is harmless.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := acquireLock(ctx, db, migrationLockID); err != nil {
		return err
	}
	defer releaseLock(db, migrationLockID)

	scripts, err := readSQLScripts()
	if err != nil {
		return err
	}
	for _, script := range scripts {
		if _, err := db.ExecContext(ctx, script.content); err != nil {
			return fmt.Errorf("migration %s failed: %w", script.name, err)
		}
		log.Printf("[DB] Applied migration %s", script.name)
	}
	return nil
}

type sqlScript struct {
	name    string
	content string
}

func readSQLScripts() ([]sqlScript, error) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	scripts := make([]sqlScript, 0, len(names))
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(migrationsDir, name))
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, sqlScript{name: name, content: string(content)})
	}
	return scripts, nil
}

func acquireLock(ctx context.Context, db *sql.DB, lockID int) error {
	lockCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	return nil
}

func releaseLock(db *sql.DB, lockID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", lockID); err != nil {
		log.Printf("[DB] Failed to release migration lock: %v", err)
	}
}
