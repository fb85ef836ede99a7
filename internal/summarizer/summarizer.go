// Package summarizer renders deterministic, markdown-formatted insights
// about execution results. No LLM involvement: the summary is computed
// from the returned rows only.
package summarizer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"nl2sql/internal/executor"
	"nl2sql/internal/metadata"
)

// Insight is the summarizer output.
type Insight struct {
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions"`
}

// Agent generates insights keyed off the query's subject entity.
type Agent struct {
	store *metadata.Store
	log   *zap.Logger
}

// New creates a summarizer over the schema metadata.
func New(store *metadata.Store, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{store: store, log: log}
}

// Summarize turns an execution result into an Insight. Failures and
// empty result sets get fixed templates with recovery suggestions.
func (a *Agent) Summarize(query string, res *executor.Result) *Insight {
	if !res.Success {
		return &Insight{
			Summary: "⚠️ **Query Failed**\n\n**Your Question:** " + query +
				"\n\n**Error:** " + res.Error,
			Suggestions: []string{
				"Try rephrasing your question",
				"Check if the table names are correct",
				"Make sure you're asking about existing data",
			},
		}
	}

	if len(res.Rows) == 0 {
		return &Insight{
			Summary: "❌ **No Results Found**\n\n**Your Question:** " + query +
				"\n\nNo data matches your criteria. Try refining your search or ask a different question.",
			Suggestions: []string{
				"Try broadening your search criteria",
				"Check if the data exists in the database",
				"Try a different time period or category",
			},
		}
	}

	tl := strings.ToLower(query)
	switch {
	case strings.Contains(tl, "branch"):
		return a.branchInsights(query, res)
	case strings.Contains(tl, "employee") || strings.Contains(tl, "salary"):
		return a.employeeInsights(query, res)
	case strings.Contains(tl, "account") || strings.Contains(tl, "balance"):
		return a.accountInsights(query, res)
	case strings.Contains(tl, "transaction"):
		return a.transactionInsights(query, res)
	default:
		return a.genericInsights(query, res)
	}
}

func (a *Agent) branchInsights(query string, res *executor.Result) *Insight {
	total := len(res.Rows)
	parts := []string{
		"📊 **Branch Analysis**\n\n**Your Question:** " + query + "\n",
		fmt.Sprintf("Found **%d** %s.", total, pluralize(total, "branch", "branches")),
	}

	if hasColumn(res, "manager_name") {
		managed := 0
		for _, row := range res.Rows {
			if row["manager_name"] != nil {
				managed++
			}
		}
		parts = append(parts,
			"\n**Management Overview:**",
			fmt.Sprintf("• Branches with managers: **%d**", managed),
			fmt.Sprintf("• Branches without managers: **%d**", total-managed),
			fmt.Sprintf("• Management coverage: **%.1f%%**", float64(managed)/float64(total)*100),
		)
	}

	if hasColumn(res, "state") {
		counts := valueCounts(res.Rows, "state")
		if lines := domainDistribution(a.store.DistinctValues("branches", "state"), counts); len(lines) > 0 {
			parts = append(parts, "\n**State Distribution:**")
			parts = append(parts, lines...)
		}
	}

	return &Insight{
		Summary: strings.Join(parts, "\n"),
		Suggestions: []string{
			"Show me branches without managers",
			"Which branch has the most employees?",
			"Show me branch performance by transaction volume",
			"List branches by city",
		},
	}
}

func (a *Agent) employeeInsights(query string, res *executor.Result) *Insight {
	total := len(res.Rows)
	parts := []string{
		"👥 **Employee Analysis**\n\n**Your Question:** " + query + "\n",
		fmt.Sprintf("Found **%d** %s.", total, pluralize(total, "employee", "employees")),
	}

	if stats, ok := numericStats(res.Rows, "salary"); ok {
		parts = append(parts,
			"\n**Salary Statistics:**",
			"• Average: **$"+formatAmount(stats.avg)+"**",
			"• Highest: **$"+formatAmount(stats.max)+"**",
			"• Lowest: **$"+formatAmount(stats.min)+"**",
		)
	}

	if hasColumn(res, "position") {
		counts := valueCounts(res.Rows, "position")
		if lines := domainDistribution(a.store.DistinctValues("employees", "position"), counts); len(lines) > 0 {
			parts = append(parts, "\n**Position Distribution:**")
			parts = append(parts, lines...)
		}
	}

	return &Insight{
		Summary: strings.Join(parts, "\n"),
		Suggestions: []string{
			"Show me the highest paid employees",
			"What's the average salary by position?",
			"Show me employees hired in the last year",
			"Which employees handle the most transactions?",
		},
	}
}

func (a *Agent) accountInsights(query string, res *executor.Result) *Insight {
	total := len(res.Rows)
	parts := []string{
		"💳 **Account Analysis**\n\n**Your Question:** " + query + "\n",
		fmt.Sprintf("Found **%d** %s.", total, pluralize(total, "account", "accounts")),
	}

	if stats, ok := numericStats(res.Rows, "balance"); ok {
		parts = append(parts,
			"\n**Balance Statistics:**",
			"• Total Balance: **$"+formatAmount(stats.sum)+"**",
			"• Average Balance: **$"+formatAmount(stats.avg)+"**",
		)
	}

	if hasColumn(res, "type") {
		counts := valueCounts(res.Rows, "type")
		if lines := domainDistribution(a.store.DistinctValues("accounts", "type"), counts); len(lines) > 0 {
			parts = append(parts, "\n**Account Types:**")
			parts = append(parts, lines...)
		}
	}

	if hasColumn(res, "status") {
		counts := valueCounts(res.Rows, "status")
		if lines := domainDistribution(a.store.DistinctValues("accounts", "status"), counts); len(lines) > 0 {
			parts = append(parts, "\n**Account Status:**")
			parts = append(parts, lines...)
		}
	}

	return &Insight{
		Summary: strings.Join(parts, "\n"),
		Suggestions: []string{
			"Show me accounts with high balances",
			"What's the average balance by account type?",
			"Show me recently opened accounts",
			"Which accounts have the most transactions?",
		},
	}
}

func (a *Agent) transactionInsights(query string, res *executor.Result) *Insight {
	total := len(res.Rows)
	parts := []string{
		"💸 **Transaction Analysis**\n\n**Your Question:** " + query + "\n",
		fmt.Sprintf("Found **%d** %s.", total, pluralize(total, "transaction", "transactions")),
	}

	if stats, ok := numericStats(res.Rows, "amount"); ok {
		parts = append(parts,
			"\n**Amount Statistics:**",
			"• Total Amount: **$"+formatAmount(stats.sum)+"**",
			"• Average Amount: **$"+formatAmount(stats.avg)+"**",
		)
	}

	if hasColumn(res, "type") {
		counts := valueCounts(res.Rows, "type")
		if lines := domainDistribution(a.store.DistinctValues("transactions", "type"), counts); len(lines) > 0 {
			parts = append(parts, "\n**Transaction Types:**")
			parts = append(parts, lines...)
		}
	}

	if hasColumn(res, "status") {
		counts := valueCounts(res.Rows, "status")
		if lines := domainDistribution(a.store.DistinctValues("transactions", "status"), counts); len(lines) > 0 {
			parts = append(parts, "\n**Transaction Status:**")
			parts = append(parts, lines...)
		}
	}

	return &Insight{
		Summary: strings.Join(parts, "\n"),
		Suggestions: []string{
			"Show me high-value transactions",
			"What's the average transaction amount by type?",
			"Show me today's transactions",
			"Which accounts have the most transactions?",
		},
	}
}

func (a *Agent) genericInsights(query string, res *executor.Result) *Insight {
	total := len(res.Rows)
	parts := []string{
		"📊 **Query Results**\n\n**Your Question:** " + query + "\n",
		fmt.Sprintf("Found **%d** %s.", total, pluralize(total, "result", "results")),
	}

	numericShown := 0
	var numericHeader bool
	for _, col := range res.Columns {
		if numericShown == 3 {
			break
		}
		stats, ok := numericStats(res.Rows, col)
		if !ok {
			continue
		}
		if !numericHeader {
			parts = append(parts, "\n**Numeric Column Statistics:**")
			numericHeader = true
		}
		parts = append(parts,
			"• "+col+":",
			"  - Average: **"+formatAmount(stats.avg)+"**",
			"  - Range: **"+formatAmount(stats.min)+"** to **"+formatAmount(stats.max)+"**",
		)
		numericShown++
	}

	categoricalShown := 0
	for _, col := range res.Columns {
		if categoricalShown == 2 {
			break
		}
		if !isCategorical(res.Rows, col) {
			continue
		}
		counts := valueCounts(res.Rows, col)
		if len(counts) == 0 {
			continue
		}
		parts = append(parts, "\n**"+col+" Distribution:**")
		for _, vc := range topCounts(counts, 3) {
			parts = append(parts, fmt.Sprintf("• %s: **%d**", vc.value, vc.count))
		}
		categoricalShown++
	}

	return &Insight{
		Summary: strings.Join(parts, "\n"),
		Suggestions: []string{
			"Show me the count of rows by table",
			"What are the most common values?",
			"Show me the data distribution",
			"Can you explain the patterns in this data?",
		},
	}
}

type stats struct {
	sum, avg, min, max float64
}

// numericStats computes stats over the column; ok is false unless every
// non-null value is numeric and at least one value exists.
func numericStats(rows []map[string]any, column string) (stats, bool) {
	var s stats
	n := 0
	for _, row := range rows {
		v, exists := row[column]
		if !exists || v == nil {
			continue
		}
		f, ok := asFloat(v)
		if !ok {
			return stats{}, false
		}
		if n == 0 || f < s.min {
			s.min = f
		}
		if n == 0 || f > s.max {
			s.max = f
		}
		s.sum += f
		n++
	}
	if n == 0 {
		return stats{}, false
	}
	s.avg = s.sum / float64(n)
	return s, true
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

func isCategorical(rows []map[string]any, column string) bool {
	seen := false
	for _, row := range rows {
		v, exists := row[column]
		if !exists || v == nil {
			continue
		}
		if _, ok := v.(string); !ok {
			return false
		}
		seen = true
	}
	return seen
}

func hasColumn(res *executor.Result, name string) bool {
	for _, c := range res.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func valueCounts(rows []map[string]any, column string) map[string]int {
	counts := map[string]int{}
	for _, row := range rows {
		if v, ok := row[column].(string); ok {
			counts[v]++
		}
	}
	return counts
}

// domainDistribution renders counts in the declared domain order,
// skipping values absent from the result.
func domainDistribution(domain []string, counts map[string]int) []string {
	var lines []string
	for _, val := range domain {
		if c, ok := counts[val]; ok {
			lines = append(lines, fmt.Sprintf("• %s: **%d**", val, c))
		}
	}
	return lines
}

type valueCount struct {
	value string
	count int
}

// topCounts returns the k most frequent values, count descending with
// value as tiebreak.
func topCounts(counts map[string]int, k int) []valueCount {
	out := make([]valueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, valueCount{value: v, count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].value < out[j].value
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// formatAmount renders a float with thousands separators and two
// decimals, e.g. 1234567.8 -> "1,234,567.80".
func formatAmount(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	dot := strings.Index(s, ".")
	intPart, frac := s[:dot], s[dot:]

	var sb strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	out := sb.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
