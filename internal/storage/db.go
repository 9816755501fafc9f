// Package storage holds the on-disk scan cache at .blendlink/scan.db. The
// cache only ever holds engine output that can be regenerated, so schema
// changes drop and recreate it rather than migrate.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"blendlink/internal/config"
	"blendlink/internal/logging"
)

// DBName is the cache database file name inside the .blendlink directory.
const DBName = "scan.db"

// schemaVersion is stored in PRAGMA user_version. A mismatch rebuilds the
// cache from scratch.
const schemaVersion = 1

const createScanCacheSQL = `
CREATE TABLE IF NOT EXISTS scan_cache (
	path        TEXT PRIMARY KEY,
	size        INTEGER NOT NULL,
	mtime_ns    INTEGER NOT NULL,
	payload     BLOB NOT NULL,
	compression TEXT NOT NULL DEFAULT 'zstd',
	created_at  INTEGER NOT NULL
)`

// DB represents a database connection with transaction helpers
type DB struct {
	conn   *sql.DB
	logger *logging.Logger
	dbPath string
}

// Open opens or creates the SQLite cache database at .blendlink/scan.db.
func Open(rootDir string, logger *logging.Logger) (*DB, error) {
	metaDir := filepath.Join(rootDir, config.DirName)
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", config.DirName, err)
	}

	dbPath := filepath.Join(metaDir, DBName)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",   // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous=NORMAL", // Balance between safety and performance
		"PRAGMA busy_timeout=5000",  // Wait up to 5 seconds on lock
		"PRAGMA temp_store=MEMORY",  // Use memory for temp tables
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	db := &DB{
		conn:   conn,
		logger: logger,
		dbPath: dbPath,
	}

	if err := db.ensureSchema(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// ensureSchema creates the scan_cache table, dropping any cache written by
// a different schema version first.
func (db *DB) ensureSchema() error {
	var version int
	if err := db.conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version != 0 && version != schemaVersion {
		db.logger.Info("Rebuilding scan cache for new schema", map[string]interface{}{
			"found": version,
			"want":  schemaVersion,
		})
		if _, err := db.conn.Exec("DROP TABLE IF EXISTS scan_cache"); err != nil {
			return fmt.Errorf("failed to drop stale cache: %w", err)
		}
	}

	if _, err := db.conn.Exec(createScanCacheSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.conn.Exec(fmt.Sprintf("PRAGMA user_version=%d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.dbPath
}

// WithTx executes a function within a transaction
// If the function returns an error, the transaction is rolled back
// Otherwise, the transaction is committed
func (db *DB) WithTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-throw panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("failed to rollback transaction", map[string]interface{}{
				"error":          err.Error(),
				"rollback_error": rbErr.Error(),
			})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Exec executes a query without returning rows
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}
