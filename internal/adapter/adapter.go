package adapter

import (
	"context"
)

// DBAdapter is the narrow database surface the pipeline consumes: open,
// run a query with a row cap, close. No ORM, no writes.
type DBAdapter interface {
	// Connect opens the underlying connection.
	Connect(ctx context.Context) error

	// Close releases the connection.
	Close() error

	// Query executes a statement and fetches at most limit rows
	// (limit <= 0 means no cap). Rows are uniform column to value maps.
	Query(ctx context.Context, sql string, limit int) (*QueryResult, error)

	// DryRun compiles the statement through the engine's planner
	// without executing it.
	DryRun(ctx context.Context, sql string) error

	// DatabaseType returns "SQLite", "MySQL" or "PostgreSQL".
	DatabaseType() string
}

// QueryResult is the uniform result shape across engines.
type QueryResult struct {
	Columns       []string
	Rows          []map[string]any
	RowCount      int
	ExecutionTime int64 // milliseconds
}

// Config selects and configures an engine.
type Config struct {
	Type     string // "sqlite", "mysql", "postgresql"
	Host     string
	Port     int
	Database string
	User     string
	Password string

	// SQLite only.
	FilePath string
	ReadOnly bool
}

// New builds the adapter for the configured engine.
func New(config *Config) (DBAdapter, error) {
	switch config.Type {
	case "sqlite", "":
		return NewSQLiteAdapter(&SQLiteConfig{
			FilePath: config.FilePath,
			ReadOnly: config.ReadOnly,
		}), nil
	case "mysql":
		return NewMySQLAdapter(&MySQLConfig{
			Host:     config.Host,
			Port:     config.Port,
			Database: config.Database,
			User:     config.User,
			Password: config.Password,
		}), nil
	case "postgresql":
		return NewPostgreSQLAdapter(&PostgreSQLConfig{
			Host:     config.Host,
			Port:     config.Port,
			Database: config.Database,
			User:     config.User,
			Password: config.Password,
		}), nil
	default:
		return nil, &UnsupportedDatabaseError{Type: config.Type}
	}
}

// UnsupportedDatabaseError reports an unknown engine type.
type UnsupportedDatabaseError struct {
	Type string
}

func (e *UnsupportedDatabaseError) Error() string {
	return "unsupported database type: " + e.Type
}
