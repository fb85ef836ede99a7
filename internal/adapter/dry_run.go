package adapter

import "context"

// DryRun compiles the statement with EXPLAIN QUERY PLAN without reading
// table data.
func (a *SQLiteAdapter) DryRun(ctx context.Context, query string) error {
	_, err := a.Query(ctx, "EXPLAIN QUERY PLAN "+query, 1)
	return err
}

// DryRun compiles the statement through the MySQL planner.
func (a *MySQLAdapter) DryRun(ctx context.Context, query string) error {
	_, err := a.Query(ctx, "EXPLAIN "+query, 1)
	return err
}

// DryRun compiles the statement through the PostgreSQL planner.
func (a *PostgreSQLAdapter) DryRun(ctx context.Context, query string) error {
	_, err := a.Query(ctx, "EXPLAIN "+query, 1)
	return err
}
