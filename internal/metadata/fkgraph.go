package metadata

import (
	"fmt"
	"sort"
	"strings"
)

// ForeignKey is one directed edge of the foreign-key graph.
type ForeignKey struct {
	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
}

// FKGraph holds the metadata-declared foreign-key relationships and
// answers join-discovery questions. Like the Store it is built once at
// startup and read-only afterwards.
type FKGraph struct {
	edges     map[string][]ForeignKey // keyed by FromTable
	adjacency map[string][]string     // undirected, for path search
}

// BuildGraph derives the graph from the store's declared foreign keys.
// Every edge endpoint must exist in the schema.
func BuildGraph(store *Store) (*FKGraph, error) {
	g := &FKGraph{
		edges:     make(map[string][]ForeignKey),
		adjacency: make(map[string][]string),
	}

	for _, table := range store.Tables() {
		g.adjacency[table] = nil
		for _, ref := range store.ForeignKeys(table) {
			toTable, toColumn, ok := strings.Cut(ref.References, ".")
			if !ok {
				return nil, fmt.Errorf("table %s: malformed reference %q", table, ref.References)
			}
			if !store.HasColumn(table, ref.Column) {
				return nil, fmt.Errorf("foreign key references unknown column %s.%s", table, ref.Column)
			}
			if !store.HasTable(toTable) || !store.HasColumn(toTable, toColumn) {
				return nil, fmt.Errorf("foreign key references unknown column %s.%s", toTable, toColumn)
			}
			g.edges[table] = append(g.edges[table], ForeignKey{
				FromTable:  table,
				FromColumn: ref.Column,
				ToTable:    toTable,
				ToColumn:   toColumn,
			})
		}
	}

	// Joins work both ways.
	for from, fks := range g.edges {
		for _, fk := range fks {
			g.adjacency[from] = append(g.adjacency[from], fk.ToTable)
			g.adjacency[fk.ToTable] = append(g.adjacency[fk.ToTable], from)
		}
	}
	for table := range g.adjacency {
		sort.Strings(g.adjacency[table])
	}

	return g, nil
}

// Edges returns the outgoing foreign keys of a table.
func (g *FKGraph) Edges(table string) []ForeignKey {
	return g.edges[table]
}

// JoinCondition builds the ON condition between two directly related
// tables, checking both directions. Returns false when no declared
// relationship exists.
func (g *FKGraph) JoinCondition(t1, t2 string) (string, bool) {
	for _, fk := range g.edges[t1] {
		if fk.ToTable == t2 {
			return fmt.Sprintf("%s.%s = %s.%s", t1, fk.FromColumn, t2, fk.ToColumn), true
		}
	}
	for _, fk := range g.edges[t2] {
		if fk.ToTable == t1 {
			return fmt.Sprintf("%s.%s = %s.%s", t2, fk.FromColumn, t1, fk.ToColumn), true
		}
	}
	return "", false
}

// JoinPath finds the shortest join path between two tables with BFS over
// the undirected graph. Returns nil when the tables are not connected.
func (g *FKGraph) JoinPath(from, to string) []string {
	if from == to {
		return []string{from}
	}

	visited := map[string]bool{from: true}
	queue := [][]string{{from}}

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		current := path[len(path)-1]

		for _, neighbor := range g.adjacency[current] {
			if neighbor == to {
				return append(path, neighbor)
			}
			if !visited[neighbor] {
				visited[neighbor] = true
				next := make([]string, len(path), len(path)+1)
				copy(next, path)
				queue = append(queue, append(next, neighbor))
			}
		}
	}
	return nil
}
