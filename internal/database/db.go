package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode so a serving process can read while training writes
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)

	return &DB{
		conn: conn,
		path: dbPath,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Migrate creates the ingest tables if they do not exist
func (db *DB) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS policy_actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			target_type TEXT NOT NULL DEFAULT '',
			geography TEXT NOT NULL DEFAULT '',
			target TEXT NOT NULL DEFAULT '',
			sector TEXT NOT NULL DEFAULT '',
			authority TEXT NOT NULL DEFAULT '',
			announced_date TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS trade_series (
			entity TEXT NOT NULL,
			month TEXT NOT NULL,
			imports REAL,
			exports REAL,
			PRIMARY KEY (entity, month)
		)`,
		`CREATE TABLE IF NOT EXISTS global_series (
			series TEXT NOT NULL,
			month TEXT NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (series, month)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_policy_actions_geography ON policy_actions(geography)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// Begin starts a new transaction
func (db *DB) Begin() (*sql.Tx, error) {
	return db.conn.Begin()
}
