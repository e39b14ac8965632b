// Package storage persists published events in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

const memoryPath = ":memory:"

// DB wraps a SQLite database with separate writer and reader pools.
// SQLite allows a single writer, so the writer pool holds one connection.
type DB struct {
	writer *sql.DB
	reader *sql.DB
	path   string
}

// New opens (or creates) the database at dbPath and initializes the schema.
// ":memory:" yields a private in-memory database on a single connection.
func New(ctx context.Context, dbPath string) (*DB, error) {
	if dbPath == memoryPath {
		conn, err := open(ctx, memoryPath, 1)
		if err != nil {
			return nil, err
		}
		// The database lives only as long as its one connection.
		conn.SetConnMaxLifetime(0)
		db := &DB{writer: conn, reader: conn, path: dbPath}
		if err := InitSchema(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		return db, nil
	}

	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := "file:" + dbPath + "?" + url.Values{
		"_pragma": {
			"journal_mode(WAL)",
			"busy_timeout(30000)",
			"synchronous(NORMAL)",
			"foreign_keys(ON)",
		},
		"_txlock": {"immediate"},
	}.Encode()

	writer, err := open(ctx, dsn, 1)
	if err != nil {
		return nil, err
	}
	if err := InitSchema(ctx, writer); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	reader, err := open(ctx, dsn, 4)
	if err != nil {
		_ = writer.Close()
		return nil, err
	}

	return &DB{writer: writer, reader: reader, path: dbPath}, nil
}

func open(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// Ping verifies both pools are reachable. Used by /readyz.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.writer.PingContext(ctx); err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	if db.reader != db.writer {
		if err := db.reader.PingContext(ctx); err != nil {
			return fmt.Errorf("reader: %w", err)
		}
	}
	return nil
}

// Close closes the database connections
func (db *DB) Close() error {
	var err error
	if db.reader != nil && db.reader != db.writer {
		err = db.reader.Close()
	}
	if db.writer != nil {
		if werr := db.writer.Close(); werr != nil {
			err = werr
		}
	}
	return err
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// NewTestDB creates an in-memory database for testing.
func NewTestDB() (*DB, error) {
	return New(context.Background(), memoryPath)
}
