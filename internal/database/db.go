// Package database provides the SQLite connection, migrations, and the
// data access layer (Store) for sessions and module load history.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/ion/internal/errs"
	"github.com/edgard/ion/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// Pragmas applied to every connection opened from a plain file path.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

// Open opens the SQLite database at path, creating its directory if
// needed, and brings the schema up to date. path is either a file path or
// a "file:" DSN, which is used unchanged.
func Open(ctx context.Context, path string, logger *slog.Logger) (*sqlx.DB, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log := logger.With("component", "database")

	file := FilePath(path)
	if file == "" {
		return nil, errs.NewConfigError("database path is empty", nil)
	}
	if file != ":memory:" {
		if dir := filepath.Dir(file); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, errs.NewDatabaseError(fmt.Sprintf("failed to create database directory %s", dir), err)
			}
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", DSN(path))
	if err != nil {
		return nil, errs.NewDatabaseError("failed to connect to database", err)
	}

	// One writer at a time; a single connection also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	version, err := migrateUp(db.DB, file, log)
	if err != nil {
		Close(db, log)
		return nil, err
	}

	log.InfoContext(ctx, "Database ready", "path", file, "schema_version", version)
	return db, nil
}

// Close closes the connection pool. A nil db is ignored.
func Close(db *sqlx.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	if err := db.Close(); err != nil {
		logger.Error("Error closing database", "error", err)
		return
	}
	logger.Debug("Database closed", "duration", time.Since(start))
}

// migrateUp applies the embedded migrations and returns the resulting
// schema version.
func migrateUp(db *sql.DB, name string, log *slog.Logger) (uint, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return 0, errs.NewDatabaseError("failed to read embedded migrations", err)
	}

	target, err := sqlite3.WithInstance(db, &sqlite3.Config{DatabaseName: name})
	if err != nil {
		return 0, errs.NewDatabaseError("failed to prepare migration driver", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", target)
	if err != nil {
		return 0, errs.NewDatabaseError("failed to create migrator", err)
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug("Schema is up to date")
	case err != nil:
		return 0, errs.NewDatabaseError("failed to apply migrations", err)
	default:
		log.Info("Migrations applied")
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, errs.NewDatabaseError("failed to read schema version", err)
	}
	if dirty {
		return version, errs.NewDatabaseError(fmt.Sprintf("schema version %d is dirty", version), nil)
	}
	return version, nil
}

// DSN returns the driver data source for path. Plain file paths get the
// connection pragmas; "file:" DSNs are returned unchanged.
func DSN(path string) string {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return path
	}
	q := url.Values{"_pragma": pragmas}
	return "file:" + path + "?" + q.Encode()
}

// FilePath returns the database file named by a file path or "file:" DSN.
func FilePath(path string) string {
	path = strings.TrimPrefix(path, "file:")

	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}

	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}

	return path
}
