package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// migrationLockKey is the advisory lock held while migrating.
const migrationLockKey = 7462839

// ErrMigratorBusy is returned when another migrator holds the advisory lock.
var ErrMigratorBusy = errors.New("another migrator is currently running")

// Migration is one NNN_description.sql file.
type Migration struct {
	Version  string
	Filename string
	Checksum string
	SQL      string
}

// Migrator applies ordered SQL files once each, recording a checksum per
// version in schema_migrations. A changed file that was already applied is an error.
type Migrator struct {
	pool *pgxpool.Pool
	src  fs.FS
	log  zerolog.Logger
}

func NewMigrator(pool *pgxpool.Pool, src fs.FS, log zerolog.Logger) *Migrator {
	return &Migrator{pool: pool, src: src, log: log}
}

// Up applies every pending migration and returns the filenames it applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for lock: %w", err)
	}
	defer conn.Release()

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", migrationLockKey).Scan(&locked); err != nil {
		return nil, fmt.Errorf("failed to query advisory lock: %w", err)
	}
	if !locked {
		return nil, ErrMigratorBusy
	}
	defer conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	m.log.Debug().Msg("migration lock acquired")

	if _, err := conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	migrations, err := Discover(m.src)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, mig := range migrations {
		ok, err := m.apply(ctx, conn.Conn(), mig)
		if err != nil {
			return applied, err
		}
		if ok {
			applied = append(applied, mig.Filename)
		}
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, conn *pgx.Conn, mig Migration) (bool, error) {
	var existing string
	err := conn.QueryRow(ctx, "SELECT checksum FROM schema_migrations WHERE version = $1", mig.Version).Scan(&existing)
	switch {
	case err == nil:
		if existing != mig.Checksum {
			return false, fmt.Errorf("checksum mismatch for %s: recorded %s, file %s", mig.Filename, existing, mig.Checksum)
		}
		m.log.Debug().Str("migration", mig.Filename).Msg("skip")
		return false, nil
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return false, fmt.Errorf("failed to query schema_migrations for %s: %w", mig.Filename, err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction for %s: %w", mig.Filename, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, mig.SQL); err != nil {
		return false, fmt.Errorf("failed to execute migration %s: %w", mig.Filename, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, filename, checksum) VALUES ($1, $2, $3)",
		mig.Version, mig.Filename, mig.Checksum,
	); err != nil {
		return false, fmt.Errorf("failed to insert migration record for %s: %w", mig.Filename, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction for %s: %w", mig.Filename, err)
	}

	m.log.Info().Str("migration", mig.Filename).Msg("applied")
	return true, nil
}

// Discover reads every *.sql file in src, sorted by name, rejecting
// malformed names and duplicate versions.
func Discover(src fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(src, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	seen := make(map[string]string)
	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		name := entry.Name()
		version, err := extractVersion(name)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %s: %s and %s", version, prev, name)
		}
		seen[version] = name

		body, err := fs.ReadFile(src, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		sum := sha256.Sum256(body)
		out = append(out, Migration{
			Version:  version,
			Filename: name,
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(body),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

func extractVersion(filename string) (string, error) {
	parts := strings.SplitN(filename, "_", 2)
	if len(parts) < 2 || parts[0] == "" {
		return "", fmt.Errorf("invalid migration filename %s: expected NNN_description.sql", filename)
	}
	for _, r := range parts[0] {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("invalid migration filename %s: version must be numeric", filename)
		}
	}
	return parts[0], nil
}
