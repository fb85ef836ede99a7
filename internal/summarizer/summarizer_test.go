package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nl2sql/internal/executor"
	"nl2sql/internal/testkit"
)

func newAgent(t *testing.T) *Agent {
	t.Helper()
	return New(testkit.NewStore(t), nil)
}

func TestSummarizeFailure(t *testing.T) {
	a := newAgent(t)
	ins := a.Summarize("show branches", &executor.Result{
		Success: false,
		Error:   "no such table: offices",
	})
	assert.Contains(t, ins.Summary, "⚠️ **Query Failed**")
	assert.Contains(t, ins.Summary, "show branches")
	assert.Contains(t, ins.Summary, "no such table: offices")
	assert.Len(t, ins.Suggestions, 3)
}

func TestSummarizeEmpty(t *testing.T) {
	a := newAgent(t)
	ins := a.Summarize("branches in Alaska", &executor.Result{Success: true})
	assert.Contains(t, ins.Summary, "❌ **No Results Found**")
	assert.Contains(t, ins.Suggestions, "Try broadening your search criteria")
}

func TestBranchInsights(t *testing.T) {
	a := newAgent(t)
	res := &executor.Result{
		Success: true,
		Columns: []string{"name", "manager_name", "state"},
		Rows: []map[string]any{
			{"name": "Downtown", "manager_name": "Alice Chen", "state": "CA"},
			{"name": "Uptown", "manager_name": "Bob Diaz", "state": "NY"},
			{"name": "Riverside", "manager_name": nil, "state": "CA"},
		},
	}
	ins := a.Summarize("list branches with their managers", res)

	assert.Contains(t, ins.Summary, "Found **3** branches.")
	assert.Contains(t, ins.Summary, "Branches with managers: **2**")
	assert.Contains(t, ins.Summary, "Branches without managers: **1**")
	assert.Contains(t, ins.Summary, "Management coverage: **66.7%**")
	// State distribution follows the declared domain order.
	caIdx := strings.Index(ins.Summary, "• CA: **2**")
	nyIdx := strings.Index(ins.Summary, "• NY: **1**")
	require.GreaterOrEqual(t, caIdx, 0)
	require.GreaterOrEqual(t, nyIdx, 0)
	assert.Less(t, caIdx, nyIdx)
	assert.NotContains(t, ins.Summary, "TX")
}

func TestEmployeeInsights(t *testing.T) {
	a := newAgent(t)
	res := &executor.Result{
		Success: true,
		Columns: []string{"name", "salary", "position"},
		Rows: []map[string]any{
			{"name": "Alice Chen", "salary": 90000.0, "position": "Branch Manager"},
			{"name": "Dave Kim", "salary": 45000.0, "position": "Teller"},
		},
	}
	ins := a.Summarize("employee salaries", res)

	assert.Contains(t, ins.Summary, "👥 **Employee Analysis**")
	assert.Contains(t, ins.Summary, "Average: **$67,500.00**")
	assert.Contains(t, ins.Summary, "Highest: **$90,000.00**")
	assert.Contains(t, ins.Summary, "Lowest: **$45,000.00**")
	assert.Contains(t, ins.Summary, "• Branch Manager: **1**")
	assert.Contains(t, ins.Summary, "• Teller: **1**")
}

func TestAccountInsights(t *testing.T) {
	a := newAgent(t)
	res := &executor.Result{
		Success: true,
		Columns: []string{"id", "type", "balance", "status"},
		Rows: []map[string]any{
			{"id": int64(1), "type": "checking", "balance": 1500.50, "status": "active"},
			{"id": int64(2), "type": "savings", "balance": 8499.50, "status": "active"},
			{"id": int64(3), "type": "checking", "balance": 87000.0, "status": "frozen"},
		},
	}
	ins := a.Summarize("account balances", res)

	assert.Contains(t, ins.Summary, "💳 **Account Analysis**")
	assert.Contains(t, ins.Summary, "Total Balance: **$97,000.00**")
	assert.Contains(t, ins.Summary, "• checking: **2**")
	assert.Contains(t, ins.Summary, "• savings: **1**")
	assert.Contains(t, ins.Summary, "• active: **2**")
	assert.Contains(t, ins.Summary, "• frozen: **1**")
	assert.NotContains(t, ins.Summary, "closed")
}

func TestTransactionInsights(t *testing.T) {
	a := newAgent(t)
	res := &executor.Result{
		Success: true,
		Columns: []string{"id", "type", "amount", "status"},
		Rows: []map[string]any{
			{"id": int64(1), "type": "deposit", "amount": 100.0, "status": "completed"},
			{"id": int64(2), "type": "withdrawal", "amount": 300.0, "status": "completed"},
		},
	}
	ins := a.Summarize("recent transactions", res)

	assert.Contains(t, ins.Summary, "💸 **Transaction Analysis**")
	assert.Contains(t, ins.Summary, "Total Amount: **$400.00**")
	assert.Contains(t, ins.Summary, "Average Amount: **$200.00**")
	assert.Contains(t, ins.Summary, "• deposit: **1**")
	assert.Contains(t, ins.Summary, "• completed: **2**")
}

func TestGenericInsights(t *testing.T) {
	a := newAgent(t)
	res := &executor.Result{
		Success: true,
		Columns: []string{"city", "headcount"},
		Rows: []map[string]any{
			{"city": "Sacramento", "headcount": int64(12)},
			{"city": "Albany", "headcount": int64(8)},
			{"city": "Sacramento", "headcount": int64(5)},
		},
	}
	ins := a.Summarize("people per city", res)

	assert.Contains(t, ins.Summary, "📊 **Query Results**")
	assert.Contains(t, ins.Summary, "Found **3** results.")
	assert.Contains(t, ins.Summary, "headcount")
	assert.Contains(t, ins.Summary, "Average: **8.33**")
	assert.Contains(t, ins.Summary, "Range: **5.00** to **12.00**")
	assert.Contains(t, ins.Summary, "**city Distribution:**")
	// Count descending, value ascending on ties.
	sacIdx := strings.Index(ins.Summary, "• Sacramento: **2**")
	albIdx := strings.Index(ins.Summary, "• Albany: **1**")
	require.GreaterOrEqual(t, sacIdx, 0)
	assert.Less(t, sacIdx, albIdx)
}

func TestGenericMixedColumnNotNumeric(t *testing.T) {
	rows := []map[string]any{
		{"v": 10.0},
		{"v": "oops"},
	}
	_, ok := numericStats(rows, "v")
	assert.False(t, ok)
}

func TestNumericStatsIgnoresNulls(t *testing.T) {
	rows := []map[string]any{
		{"v": 10.0},
		{"v": nil},
		{"v": int64(20)},
	}
	s, ok := numericStats(rows, "v")
	require.True(t, ok)
	assert.Equal(t, 30.0, s.sum)
	assert.Equal(t, 15.0, s.avg)
	assert.Equal(t, 10.0, s.min)
	assert.Equal(t, 20.0, s.max)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1,234,567.80", formatAmount(1234567.8))
	assert.Equal(t, "0.00", formatAmount(0))
	assert.Equal(t, "999.99", formatAmount(999.99))
	assert.Equal(t, "-1,000.00", formatAmount(-1000))
}

func TestTopCountsTieBreak(t *testing.T) {
	out := topCounts(map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}, 3)
	require.Len(t, out, 3)
	assert.Equal(t, "c", out[0].value)
	assert.Equal(t, "a", out[1].value)
	assert.Equal(t, "b", out[2].value)
}
