package prompt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nl2sql/internal/testkit"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	store := testkit.NewStore(t)
	graph := testkit.NewGraph(t, store)
	return NewBuilder(store, graph, 0, nil)
}

func TestBuildIsValidJSON(t *testing.T) {
	b := newTestBuilder(t)
	out, err := b.Build("show all branches", []string{"branches"}, nil, nil, nil, nil)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "critical_requirements")
	assert.Contains(t, doc, "schema_context")
	assert.Contains(t, doc, "task")
	assert.NotContains(t, doc, "error_context")
}

func TestBuildDeterministic(t *testing.T) {
	b := newTestBuilder(t)
	first, err := b.Build("accounts with high balance",
		[]string{"accounts"}, []string{"threshold"}, nil,
		map[string]any{"min_balance": 20000.0}, nil)
	require.NoError(t, err)

	second, err := b.Build("accounts with high balance",
		[]string{"accounts"}, []string{"threshold"}, nil,
		map[string]any{"min_balance": 20000.0}, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuildRendersSchemaContext(t *testing.T) {
	b := newTestBuilder(t)
	out, err := b.Build("list accounts", []string{"accounts"}, nil, nil, nil, nil)
	require.NoError(t, err)

	assert.Contains(t, out, `"accounts.type"`)
	assert.Contains(t, out, "PRIMARY KEY")
	assert.Contains(t, out, "accounts.customer_id")
	assert.Contains(t, out, "customers.id")
}

func TestBuildIncludesClarifiedValues(t *testing.T) {
	b := newTestBuilder(t)
	out, err := b.Build("wealthy customers", []string{"accounts"}, nil, nil,
		map[string]any{"min_balance": 20000.0}, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "clarified_values")
	assert.Contains(t, out, "min_balance")
}

func TestBuildErrorContext(t *testing.T) {
	b := newTestBuilder(t)
	out, err := b.Build("branch names", []string{"branches"}, nil, nil, nil,
		&ErrorContext{
			OriginalSQL:   "SELECT wealth FROM branches",
			ErrorMessage:  "no such column: wealth",
			Kind:          "column_not_found",
			ValidValues:   []string{"CA", "NY", "TX"},
			AttemptNumber: 2,
		})
	require.NoError(t, err)

	var doc struct {
		ErrorContext struct {
			PreviousError struct {
				ErrorMessage string   `json:"error_message"`
				Kind         string   `json:"kind"`
				ValidValues  []string `json:"valid_values"`
			} `json:"previous_error"`
			CorrectionFocus []string `json:"correction_focus"`
		} `json:"error_context"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "no such column: wealth", doc.ErrorContext.PreviousError.ErrorMessage)
	assert.Equal(t, "column_not_found", doc.ErrorContext.PreviousError.Kind)
	assert.Equal(t, []string{"CA", "NY", "TX"}, doc.ErrorContext.PreviousError.ValidValues)
	assert.Len(t, doc.ErrorContext.CorrectionFocus, 4)
}

func TestBuildRetrievedContext(t *testing.T) {
	b := newTestBuilder(t)
	out, err := b.Build("list accounts", []string{"accounts"}, nil,
		[]string{"Table accounts: checking and savings accounts"}, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "retrieved_context")
	assert.Contains(t, out, "checking and savings accounts")
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	b := newTestBuilder(t)
	for _, q := range []string{"one", "two", "three", "four"} {
		b.AddHistory(HistoryEntry{NLQuery: q, GeneratedSQL: "SELECT 1;", WasSuccessful: true})
	}

	history := b.History()
	require.Len(t, history, 3)
	assert.Equal(t, "two", history[0].NLQuery)
	assert.Equal(t, "four", history[2].NLQuery)
}

func TestHistoryRingHonorsConfiguredCap(t *testing.T) {
	store := testkit.NewStore(t)
	b := NewBuilder(store, testkit.NewGraph(t, store), 2, nil)
	for _, q := range []string{"one", "two", "three"} {
		b.AddHistory(HistoryEntry{NLQuery: q})
	}

	history := b.History()
	require.Len(t, history, 2)
	assert.Equal(t, "two", history[0].NLQuery)
}

func TestBuildRendersRecentQueries(t *testing.T) {
	b := newTestBuilder(t)
	b.AddHistory(HistoryEntry{
		NLQuery:       "previous question",
		GeneratedSQL:  "SELECT name FROM branches",
		WasSuccessful: true,
	})

	out, err := b.Build("follow up", []string{"branches"}, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "recent_queries")
	assert.Contains(t, out, "previous question")
}

func TestRelevantExamplesRequireTableAndKeywordOverlap(t *testing.T) {
	b := newTestBuilder(t)

	// Branch-manager example shares the branches table and "managers".
	docs := b.relevantExamples("show branches and their managers", []string{"branches", "employees"})
	require.NotEmpty(t, docs)
	assert.LessOrEqual(t, len(docs), 2)
	assert.Contains(t, docs[0].Output.SQLQuery, "branches")

	// Table overlap without keyword overlap yields nothing.
	docs = b.relevantExamples("xyzzy", []string{"branches"})
	assert.Empty(t, docs)

	// Keyword overlap without table overlap yields nothing.
	docs = b.relevantExamples("list managers", []string{"transactions"})
	assert.Empty(t, docs)
}

func TestChainOfThoughtGenericFallback(t *testing.T) {
	b := newTestBuilder(t)
	steps := b.chainOfThought("xyzzy", nil, nil)
	require.Len(t, steps, 5)
	assert.Contains(t, steps[0], "Identify entities")
}

func TestChainOfThoughtDerivedSteps(t *testing.T) {
	b := newTestBuilder(t)
	steps := b.chainOfThought("total balance of active accounts",
		[]string{"accounts"}, []string{"aggregate"})
	joined := ""
	for _, s := range steps {
		joined += s + "\n"
	}
	assert.Contains(t, joined, "accounts")
	assert.Contains(t, joined, "Apply aggregation functions")
	assert.Contains(t, joined, "status='active'")
}

func TestTokenCounterNeverNegative(t *testing.T) {
	c := NewTokenCounter()
	assert.GreaterOrEqual(t, c.Count("SELECT name FROM branches"), 0)
	assert.Equal(t, 0, c.Count(""))
}
