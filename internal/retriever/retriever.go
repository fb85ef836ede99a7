package retriever

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"nl2sql/internal/metadata"
	"nl2sql/internal/schemaindex"
)

// Bundle is the schema context handed to the prompt builder.
type Bundle struct {
	SchemaContext []string `json:"schema_context"`
	TablesFound   []string `json:"tables_found"`
}

// Agent fetches schema context for a query: semantic chunks from the
// vector index, enriched with enum domains from the metadata store. It
// never fails; when the index is unavailable it falls back to rendering
// the full metadata.
type Agent struct {
	index schemaindex.Index
	store *metadata.Store
	topK  int
	log   *zap.Logger
}

// New creates a retriever. index may be nil, which forces the metadata
// fallback on every call.
func New(index schemaindex.Index, store *metadata.Store, topK int, log *zap.Logger) *Agent {
	if topK <= 0 {
		topK = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{index: index, store: store, topK: topK, log: log}
}

// Fetch returns schema context for the query.
func (a *Agent) Fetch(ctx context.Context, query string) *Bundle {
	if a.index == nil {
		return a.fallback()
	}

	chunks, err := a.index.Query(ctx, query, a.topK)
	if err != nil || len(chunks) == 0 {
		if err != nil {
			a.log.Warn("schema index query failed, using metadata fallback", zap.Error(err))
		}
		return a.fallback()
	}

	var context []string
	tableSet := map[string]bool{}
	for _, c := range chunks {
		context = append(context, c.Text)
		if c.Table != "" {
			tableSet[c.Table] = true
		}
	}

	tables := make([]string, 0, len(tableSet))
	for t := range tableSet {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	for _, table := range tables {
		if hints := a.valueHints(table); len(hints) > 0 {
			context = append(context, "\nTable '"+table+"' metadata:")
			context = append(context, hints...)
		}
	}

	a.log.Debug("schema context retrieved",
		zap.Strings("tables", tables),
		zap.Int("chunks", len(chunks)))

	return &Bundle{SchemaContext: context, TablesFound: tables}
}

// fallback renders every table from the metadata store.
func (a *Agent) fallback() *Bundle {
	var context []string
	var tables []string
	for _, table := range a.store.Tables() {
		tables = append(tables, table)
		context = append(context, "Table '"+table+"': "+a.store.Description(table))
		context = append(context, a.valueHints(table)...)
	}
	return &Bundle{SchemaContext: context, TablesFound: tables}
}

// valueHints lists the enum domain of each constrained column, one line
// per column.
func (a *Agent) valueHints(table string) []string {
	var hints []string
	for _, col := range a.store.Columns(table) {
		if values := a.store.DistinctValues(table, col); len(values) > 0 {
			hints = append(hints, "- "+col+": Valid values = "+strings.Join(values, ", "))
		}
	}
	return hints
}

// TableColumns returns the column names of a table, empty when unknown.
func (a *Agent) TableColumns(table string) []string {
	return a.store.Columns(table)
}

// ForeignKeys returns the declared foreign keys of a table.
func (a *Agent) ForeignKeys(table string) []metadata.ForeignKeyRef {
	return a.store.ForeignKeys(table)
}

// ColumnValues returns the enum domain of a column.
func (a *Agent) ColumnValues(table, column string) []string {
	return a.store.DistinctValues(table, column)
}

// ValidateValue reports whether value is inside the column's domain.
// Columns without a declared domain accept anything.
func (a *Agent) ValidateValue(table, column, value string) bool {
	return a.store.ValidateValue(table, column, value)
}
