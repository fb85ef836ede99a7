package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"nl2sql/internal/adapter"
)

// Result is the execution outcome handed to the summarizer.
type Result struct {
	Success       bool             `json:"success"`
	Columns       []string         `json:"columns"`
	Rows          []map[string]any `json:"rows"`
	RowCount      int              `json:"row_count"`
	Message       string           `json:"message,omitempty"`
	Error         string           `json:"error,omitempty"`
	ExecutionTime int64            `json:"execution_time_ms"`
}

// ConnFactory opens a fresh database connection. The executor opens one
// per call and closes it when done, so a poisoned session cannot leak
// across requests.
type ConnFactory func() adapter.DBAdapter

// Agent executes validated SQL with a hard row cap.
type Agent struct {
	newConn ConnFactory
	rowCap  int
	log     *zap.Logger
}

var limitRe = regexp.MustCompile(`(?i)\bLIMIT\b`)

// New creates an executor. rowCap <= 0 means unlimited.
func New(newConn ConnFactory, rowCap int, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{newConn: newConn, rowCap: rowCap, log: log}
}

// Run executes sql against a fresh connection. validated must be true;
// the executor refuses statements that have not passed the validator.
func (a *Agent) Run(ctx context.Context, sql string, validated bool) *Result {
	if !validated {
		return &Result{Success: false, Error: "query failed validation and was not executed"}
	}

	conn := a.newConn()
	if err := conn.Connect(ctx); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("database connection failed: %v", err)}
	}
	defer conn.Close()

	capped := a.applyRowCap(sql)
	qr, err := conn.Query(ctx, capped, a.rowCap)
	if err != nil {
		a.log.Debug("execution failed", zap.String("sql", capped), zap.Error(err))
		return &Result{Success: false, Error: err.Error()}
	}

	res := &Result{
		Success:       true,
		Columns:       qr.Columns,
		Rows:          qr.Rows,
		RowCount:      qr.RowCount,
		ExecutionTime: qr.ExecutionTime,
	}
	if res.RowCount == 0 {
		res.Message = "No results found"
	}
	return res
}

// Smoke runs sql with a LIMIT 1 cap to check it against the live engine.
// Satisfies validator.SmokeRunner.
func (a *Agent) Smoke(ctx context.Context, sql string) error {
	conn := a.newConn()
	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer conn.Close()

	probe := strings.TrimRight(strings.TrimSpace(sql), ";")
	if !limitRe.MatchString(probe) {
		probe += " LIMIT 1"
	}
	_, err := conn.Query(ctx, probe, 1)
	return err
}

// DryRun compiles sql through the engine's planner without reading any
// table data.
func (a *Agent) DryRun(ctx context.Context, sql string) error {
	conn := a.newConn()
	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer conn.Close()

	return conn.DryRun(ctx, strings.TrimRight(strings.TrimSpace(sql), ";"))
}

// applyRowCap appends LIMIT rowCap when the statement has no LIMIT of its
// own. Statements that already carry one keep it; the scan loop in the
// adapter still enforces the cap.
func (a *Agent) applyRowCap(sql string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(sql), ";")
	if a.rowCap <= 0 || limitRe.MatchString(trimmed) {
		return trimmed
	}
	return fmt.Sprintf("%s LIMIT %d", trimmed, a.rowCap)
}
