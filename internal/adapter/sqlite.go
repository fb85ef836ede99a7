package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteAdapter runs queries against a SQLite file through the pure-Go
// modernc driver.
type SQLiteAdapter struct {
	db     *sql.DB
	config *SQLiteConfig
}

// SQLiteConfig holds the SQLite connection settings.
type SQLiteConfig struct {
	FilePath string // DB file path, ":memory:" for in-memory
	ReadOnly bool   // open with mode=ro; ignored for in-memory databases
}

// NewSQLiteAdapter creates a SQLite adapter.
func NewSQLiteAdapter(config *SQLiteConfig) *SQLiteAdapter {
	return &SQLiteAdapter{config: config}
}

// Connect opens the database file.
func (a *SQLiteAdapter) Connect(ctx context.Context) error {
	dsn := a.config.FilePath
	if a.config.ReadOnly && dsn != ":memory:" && !strings.Contains(dsn, "mode=memory") {
		dsn = fmt.Sprintf("file:%s?mode=ro", strings.TrimPrefix(dsn, "file:"))
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	return nil
}

// Close closes the connection.
func (a *SQLiteAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Query executes a statement and fetches at most limit rows.
func (a *SQLiteAdapter) Query(ctx context.Context, query string, limit int) (*QueryResult, error) {
	return collectRows(ctx, a.db, query, limit, time.Now())
}

// DatabaseType returns the engine name.
func (a *SQLiteAdapter) DatabaseType() string {
	return "SQLite"
}

// DB exposes the raw handle for test seeding.
func (a *SQLiteAdapter) DB() *sql.DB {
	return a.db
}
