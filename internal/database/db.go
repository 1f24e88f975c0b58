package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// Open opens a connection to the SQLite database at the specified path and
// ensures the schema exists
func Open(path string) (*DB, error) {
	// Open the database with appropriate pragmas
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(1) // SQLite works best with a single writer
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	// Test the connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (redundant with DSN but ensures it's set)
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.Init(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// Init initializes the database schema by creating all tables and indexes
func (db *DB) Init() error {
	_, err := db.conn.Exec(Schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
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

// Conn returns the underlying *sql.DB connection for direct use
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Health checks if the database connection is healthy
func (db *DB) Health() error {
	return db.conn.Ping()
}

// querier is satisfied by both *sql.DB and *sql.Tx so dimension resolution
// can run inside a composite get-or-create transaction
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}
