package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ColumnMeta describes one column as declared in the metadata file.
type ColumnMeta struct {
	Type           string   `json:"type"`
	PrimaryKey     bool     `json:"primary_key,omitempty"`
	Required       bool     `json:"required,omitempty"`
	Default        any      `json:"default,omitempty"`
	Pattern        string   `json:"pattern,omitempty"`
	DistinctValues []string `json:"distinct_values,omitempty"`
	SampleValues   []any    `json:"sample_values,omitempty"`

	// TypicalHigh is an optional hint for "high value" clarifications
	// (e.g. what balance counts as wealthy).
	TypicalHigh *float64 `json:"typical_high,omitempty"`
}

// ForeignKeyRef is the on-disk form of a foreign key: a local column plus
// a "table.column" reference string.
type ForeignKeyRef struct {
	Column     string `json:"column"`
	References string `json:"references"`
}

// TableMeta describes one table.
type TableMeta struct {
	Description string                 `json:"description"`
	Columns     map[string]*ColumnMeta `json:"columns"`
	ForeignKeys []ForeignKeyRef        `json:"foreign_keys,omitempty"`
}

type metadataFile struct {
	Tables map[string]*TableMeta `json:"tables"`
}

// Store is the process-wide, read-only source of schema metadata.
// It is loaded once at startup and never mutated afterwards, so it is
// safe for concurrent readers.
type Store struct {
	tables map[string]*TableMeta
	order  []string // table names, sorted
}

// Load reads the metadata JSON file. A missing or malformed file is a
// fatal configuration error: the pipeline cannot run without a schema.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Store from raw metadata JSON.
func Parse(data []byte) (*Store, error) {
	var file metadataFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	if len(file.Tables) == 0 {
		return nil, fmt.Errorf("metadata contains no tables")
	}

	order := make([]string, 0, len(file.Tables))
	for name, table := range file.Tables {
		if table == nil || len(table.Columns) == 0 {
			return nil, fmt.Errorf("table %q has no columns", name)
		}
		order = append(order, name)
	}
	sort.Strings(order)

	return &Store{tables: file.Tables, order: order}, nil
}

// Tables returns all table names in sorted order.
func (s *Store) Tables() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Table returns the metadata for a table.
func (s *Store) Table(name string) (*TableMeta, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// HasTable reports whether the table exists in the schema.
func (s *Store) HasTable(name string) bool {
	_, ok := s.tables[name]
	return ok
}

// Column returns the metadata for a column.
func (s *Store) Column(table, column string) (*ColumnMeta, bool) {
	t, ok := s.tables[table]
	if !ok {
		return nil, false
	}
	c, ok := t.Columns[column]
	return c, ok
}

// HasColumn reports whether table.column exists. An empty table name
// searches every table, which is how unqualified SQL identifiers are
// checked.
func (s *Store) HasColumn(table, column string) bool {
	if table != "" {
		_, ok := s.Column(table, column)
		return ok
	}
	for _, t := range s.tables {
		if _, ok := t.Columns[column]; ok {
			return true
		}
	}
	return false
}

// Columns returns the column names of a table in sorted order.
func (s *Store) Columns(table string) []string {
	t, ok := s.tables[table]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(t.Columns))
	for name := range t.Columns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SchemaMap returns the flat table → column-names view consumed by the
// planner and validator.
func (s *Store) SchemaMap() map[string][]string {
	out := make(map[string][]string, len(s.tables))
	for name := range s.tables {
		out[name] = s.Columns(name)
	}
	return out
}

// DistinctValues returns the enumerated domain of a column, or nil when
// the column has none.
func (s *Store) DistinctValues(table, column string) []string {
	c, ok := s.Column(table, column)
	if !ok {
		return nil
	}
	return c.DistinctValues
}

// ValidateValue reports whether a literal is legal for a column. Columns
// without an enumerated domain accept anything.
func (s *Store) ValidateValue(table, column, value string) bool {
	values := s.DistinctValues(table, column)
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// Description returns the table description, or "".
func (s *Store) Description(table string) string {
	t, ok := s.tables[table]
	if !ok {
		return ""
	}
	return t.Description
}

// ForeignKeys returns the declared foreign keys of a table.
func (s *Store) ForeignKeys(table string) []ForeignKeyRef {
	t, ok := s.tables[table]
	if !ok {
		return nil
	}
	return t.ForeignKeys
}

// TableContext renders a one-table schema chunk, used by the retriever
// fallback when the vector index is degraded.
func (s *Store) TableContext(table string) string {
	t, ok := s.tables[table]
	if !ok {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Table '%s': %s\n", table, t.Description)
	for _, col := range s.Columns(table) {
		info := t.Columns[col]
		parts := []string{fmt.Sprintf("- %s (%s)", col, info.Type)}
		if info.PrimaryKey {
			parts = append(parts, "primary key")
		}
		if info.Required {
			parts = append(parts, "required")
		}
		if len(info.DistinctValues) > 0 {
			parts = append(parts, "values: "+strings.Join(info.DistinctValues, ", "))
		}
		if info.Default != nil {
			parts = append(parts, fmt.Sprintf("default: %v", info.Default))
		}
		sb.WriteString(strings.Join(parts, " "))
		sb.WriteString("\n")
	}
	return sb.String()
}

// LLMContext renders the whole schema as a compact text block.
func (s *Store) LLMContext() string {
	var sb strings.Builder
	for _, table := range s.order {
		sb.WriteString(s.TableContext(table))
	}
	return sb.String()
}
