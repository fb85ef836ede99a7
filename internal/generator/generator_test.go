package generator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nl2sql/internal/adapter"
	"nl2sql/internal/executor"
	"nl2sql/internal/prompt"
	"nl2sql/internal/testkit"
	"nl2sql/internal/validator"
)

func newLiveAgent(t *testing.T, fake *testkit.FakeLLM) (*Agent, *prompt.Builder) {
	t.Helper()
	store := testkit.NewStore(t)
	graph := testkit.NewGraph(t, store)
	builder := prompt.NewBuilder(store, graph, 0, nil)

	path := testkit.SeedSQLite(t)
	factory := func() adapter.DBAdapter {
		return adapter.NewSQLiteAdapter(&adapter.SQLiteConfig{FilePath: path, ReadOnly: true})
	}
	exec := executor.New(factory, 200, nil)
	v := validator.New(store, exec, nil)

	return New(fake, builder, v, store, 0, nil), builder
}

func genContext(tables ...string) *Context {
	return &Context{DetectedTables: tables, Capabilities: []string{}}
}

func TestGenerateFirstAttemptSuccess(t *testing.T) {
	fake := &testkit.FakeLLM{Responses: []string{
		`{"SQLQuery": "SELECT name FROM branches ORDER BY id", "Suggestion": "all branch names"}`,
	}}
	g, builder := newLiveAgent(t, fake)

	out, err := g.Generate(context.Background(), "show me all branches", genContext("branches"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM branches ORDER BY id", out.SQL)
	assert.Equal(t, "all branch names", out.Suggestion)
	assert.Equal(t, 1, out.Attempts)
	assert.False(t, out.UsedFallback)

	history := builder.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].WasSuccessful)
}

func TestGenerateRetriesAfterBadColumn(t *testing.T) {
	fake := &testkit.FakeLLM{Responses: []string{
		`{"SQLQuery": "SELECT wealth FROM branches", "Suggestion": "bad"}`,
		`{"SQLQuery": "SELECT name FROM branches", "Suggestion": "fixed"}`,
	}}
	g, _ := newLiveAgent(t, fake)

	out, err := g.Generate(context.Background(), "branch names", genContext("branches"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM branches", out.SQL)
	assert.Equal(t, 2, out.Attempts)

	// The retry prompt must carry the failure context.
	require.Len(t, fake.Prompts, 2)
	assert.Contains(t, fake.Prompts[1], "previous_error")
	assert.Contains(t, fake.Prompts[1], "no such column")
}

func TestGenerateUnparseableFallsBackToPattern(t *testing.T) {
	fake := &testkit.FakeLLM{Responses: []string{"not json at all"}}
	g, _ := newLiveAgent(t, fake)

	out, err := g.Generate(context.Background(),
		"List all branches and their managers", genContext("branches", "employees"))
	require.NoError(t, err)
	assert.True(t, out.UsedFallback)
	assert.Contains(t, out.SQL, "LEFT JOIN employees")
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, fake.Calls)
}

func TestGenerateHeuristicColumnElimination(t *testing.T) {
	fake := &testkit.FakeLLM{Responses: []string{
		`{"SQLQuery": "SELECT name, wealth FROM branches", "Suggestion": "x"}`,
	}}
	g, _ := newLiveAgent(t, fake)

	out, err := g.Generate(context.Background(), "branch names please", genContext("branches"))
	require.NoError(t, err)
	assert.False(t, out.UsedFallback)
	assert.NotContains(t, out.SQL, "wealth")
	assert.Contains(t, out.SQL, "FROM branches")
	assert.Equal(t, "Simplified query with problematic columns excluded", out.Suggestion)
}

func TestGenerateDefaultFallback(t *testing.T) {
	fake := &testkit.FakeLLM{Responses: []string{"garbage"}}
	g, _ := newLiveAgent(t, fake)

	out, err := g.Generate(context.Background(), "nothing matches this", genContext())
	require.NoError(t, err)
	assert.True(t, out.UsedFallback)
	assert.Equal(t, "SELECT 1;", out.SQL)
	assert.Equal(t, "Default fallback query", out.Suggestion)
}

func TestGenerateHonorsConfiguredAttemptBudget(t *testing.T) {
	store := testkit.NewStore(t)
	builder := prompt.NewBuilder(store, testkit.NewGraph(t, store), 0, nil)
	v := validator.New(store, nil, nil)
	fake := &testkit.FakeLLM{Responses: []string{"garbage"}}
	g := New(fake, builder, v, store, 1, nil)

	out, err := g.Generate(context.Background(), "nothing matches this", genContext())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 1, fake.Calls)
	assert.True(t, out.UsedFallback)
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &testkit.FakeLLM{Responses: []string{`{"SQLQuery": "SELECT 1;", "Suggestion": "x"}`}}
	g, _ := newLiveAgent(t, fake)

	_, err := g.Generate(ctx, "anything", genContext())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRepairCarriesHintIntoPrompt(t *testing.T) {
	fake := &testkit.FakeLLM{Responses: []string{
		`{"SQLQuery": "SELECT name FROM branches", "Suggestion": "fixed"}`,
	}}
	g, _ := newLiveAgent(t, fake)

	gc := genContext("branches")
	gc.LastSQL = "SELECT wealth FROM branches"
	out, err := g.Repair(context.Background(), "branch names", gc, "no such column: wealth")
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM branches", out.SQL)

	require.NotEmpty(t, fake.Prompts)
	assert.Contains(t, fake.Prompts[0], "no such column: wealth")
	assert.Contains(t, fake.Prompts[0], "column_not_found")
}

func TestRepairAttachesColumnDomain(t *testing.T) {
	fake := &testkit.FakeLLM{Responses: []string{
		`{"SQLQuery": "SELECT type FROM accounts", "Suggestion": "account types"}`,
	}}
	g, _ := newLiveAgent(t, fake)

	gc := genContext("accounts", "transactions")
	gc.LastSQL = "SELECT type FROM accounts JOIN transactions ON accounts.id = transactions.account_id"
	_, err := g.Repair(context.Background(), "account types", gc, "ambiguous column name: type")
	require.NoError(t, err)

	var doc struct {
		ErrorContext struct {
			PreviousError struct {
				ValidValues []string `json:"valid_values"`
			} `json:"previous_error"`
		} `json:"error_context"`
	}
	require.NotEmpty(t, fake.Prompts)
	require.NoError(t, json.Unmarshal([]byte(fake.Prompts[0]), &doc))
	assert.Equal(t, []string{"checking", "savings"}, doc.ErrorContext.PreviousError.ValidValues)
}
