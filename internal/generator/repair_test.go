package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nl2sql/internal/prompt"
	"nl2sql/internal/testkit"
	"nl2sql/internal/validator"
)

func newFallbackAgent(t *testing.T) *Agent {
	t.Helper()
	store := testkit.NewStore(t)
	graph := testkit.NewGraph(t, store)
	builder := prompt.NewBuilder(store, graph, 0, nil)
	v := validator.New(store, nil, nil)
	return New(&testkit.FakeLLM{}, builder, v, store, 0, nil)
}

func TestExtractProblematicColumns(t *testing.T) {
	cols := extractProblematicColumns("no such column: wealth")
	assert.Equal(t, []string{"wealth"}, cols)

	cols = extractProblematicColumns("ERROR: column salary does not exist; ambiguous column name: id")
	assert.ElementsMatch(t, []string{"salary", "id"}, cols)

	assert.Empty(t, extractProblematicColumns("syntax error"))
}

func TestHeuristicRepairStripsColumn(t *testing.T) {
	sql := "SELECT name, wealth, balance FROM accounts"
	repaired := heuristicRepair(sql, "no such column: wealth")
	assert.NotContains(t, repaired, "wealth")
	assert.Contains(t, repaired, "name")
	assert.Contains(t, repaired, "balance")
	assert.Contains(t, repaired, "FROM accounts")
}

func TestHeuristicRepairNoopWithoutColumnHint(t *testing.T) {
	sql := "SELECT name FROM accounts"
	assert.Equal(t, sql, heuristicRepair(sql, "syntax error near FROM"))
}

func TestStripSelectColumnsCleansCommas(t *testing.T) {
	got := stripSelectColumns("SELECT wealth, name FROM accounts", []string{"wealth"})
	assert.NotContains(t, got, "wealth")
	assert.NotContains(t, got, "SELECT ,")
	assert.Contains(t, got, "name")
}

func TestPatternFallbackBranchManagers(t *testing.T) {
	g := newFallbackAgent(t)
	sql, suggestion := g.patternFallback("List all branches and their managers")
	require.Contains(t, sql, "LEFT JOIN employees e")
	assert.Contains(t, sql, "e.position = 'Branch Manager'")
	assert.Contains(t, sql, "ORDER BY b.name")
	assert.NotEmpty(t, suggestion)
}

func TestPatternFallbackBothAccountTypes(t *testing.T) {
	g := newFallbackAgent(t)
	sql, suggestion := g.patternFallback("Which customers have both checking and savings accounts?")
	require.Contains(t, sql, "JOIN accounts a1")
	assert.Contains(t, sql, "JOIN accounts a2")
	assert.Contains(t, sql, "a1.type = 'checking'")
	assert.Contains(t, sql, "a2.type = 'savings'")
	assert.Contains(t, sql, "status = 'active'")
	assert.Contains(t, sql, "DISTINCT")
	assert.NotEmpty(t, suggestion)
}

func TestPatternFallbackBothWithoutTwoTypes(t *testing.T) {
	g := newFallbackAgent(t)
	sql, suggestion := g.patternFallback("customers with both accounts")
	assert.Equal(t, "SELECT 1;", sql)
	assert.Equal(t, "Default fallback query", suggestion)
}

func TestPatternFallbackDefault(t *testing.T) {
	g := newFallbackAgent(t)
	sql, _ := g.patternFallback("what is the meaning of life")
	assert.Equal(t, "SELECT 1;", sql)
}
