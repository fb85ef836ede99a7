package generator

import (
	"fmt"
	"regexp"
	"strings"
)

var problemColumnRes = []*regexp.Regexp{
	regexp.MustCompile(`no such column: (\w+)`),
	regexp.MustCompile(`column (\w+) does not exist`),
	regexp.MustCompile(`ambiguous column name: (\w+)`),
}

// extractProblematicColumns pulls offending column names out of an engine
// error message.
func extractProblematicColumns(errMsg string) []string {
	msg := strings.ToLower(errMsg)
	seen := map[string]bool{}
	var cols []string
	for _, re := range problemColumnRes {
		for _, m := range re.FindAllStringSubmatch(msg, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				cols = append(cols, m[1])
			}
		}
	}
	return cols
}

// heuristicRepair strips columns named in the error message out of the
// SELECT clause. Returns the input unchanged when nothing applies.
func heuristicRepair(sql, errMsg string) string {
	cols := extractProblematicColumns(errMsg)
	if len(cols) == 0 {
		return sql
	}
	return stripSelectColumns(sql, cols)
}

var (
	doubleCommaRe   = regexp.MustCompile(`,\s*,`)
	leadingCommaRe  = regexp.MustCompile(`(?i)(SELECT(?:\s+DISTINCT)?)\s*,\s*`)
	trailingCommaRe = regexp.MustCompile(`,\s*$`)
)

// stripSelectColumns removes the given columns from the SELECT clause and
// cleans up the leftover commas.
func stripSelectColumns(sql string, cols []string) string {
	lower := strings.ToLower(sql)
	selStart := strings.Index(lower, "select")
	if selStart == -1 {
		return sql
	}
	fromStart := strings.Index(lower[selStart:], "from")
	if fromStart == -1 {
		return sql
	}
	fromStart += selStart

	selectClause := sql[selStart:fromStart]
	for _, col := range cols {
		colRe := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(col) + `\b`)
		selectClause = colRe.ReplaceAllString(selectClause, "")
		selectClause = doubleCommaRe.ReplaceAllString(selectClause, ",")
		selectClause = leadingCommaRe.ReplaceAllString(selectClause, "$1 ")
		selectClause = trailingCommaRe.ReplaceAllString(selectClause, "")
	}

	return strings.TrimRight(selectClause, " \t\n") + " " + sql[fromStart:]
}

// patternFallback matches the query against known templates once all LLM
// attempts are exhausted. The final fallback is a harmless constant
// SELECT so the pipeline always has something executable.
func (g *Agent) patternFallback(query string) (sql, suggestion string) {
	tl := strings.ToLower(query)

	if strings.Contains(tl, "branch") && strings.Contains(tl, "manager") &&
		g.store.HasTable("branches") && g.store.HasTable("employees") {
		sql = `SELECT
    b.name AS branch_name,
    e.name AS manager_name
FROM branches b
LEFT JOIN employees e
    ON b.manager_id = e.id
    AND e.position = 'Branch Manager'
ORDER BY b.name;`
		suggestion = "This query lists all bank branches along with their manager names. " +
			"It uses a LEFT JOIN to include branches without managers, and filters for " +
			"employees with the 'Branch Manager' position. Results are ordered by branch name."
		return sql, suggestion
	}

	if (strings.Contains(tl, "both") || strings.Contains(tl, "multiple")) &&
		strings.Contains(tl, "account") && g.store.HasTable("accounts") {
		var accountTypes []string
		for _, t := range g.store.DistinctValues("accounts", "type") {
			if strings.Contains(tl, strings.ToLower(t)) {
				accountTypes = append(accountTypes, t)
			}
		}
		if len(accountTypes) >= 2 {
			var joins, conditions []string
			for i, accType := range accountTypes {
				alias := fmt.Sprintf("a%d", i+1)
				joins = append(joins, fmt.Sprintf(
					"JOIN accounts %s\n    ON c.id = %s.customer_id\n    AND %s.status = 'active'",
					alias, alias, alias))
				conditions = append(conditions, fmt.Sprintf("%s.type = '%s'", alias, accType))
			}
			sql = fmt.Sprintf(`SELECT DISTINCT
    c.first_name || ' ' || c.last_name AS customer_name
FROM customers c
%s
WHERE %s
ORDER BY customer_name;`, strings.Join(joins, "\n"), strings.Join(conditions, " AND "))
			suggestion = "This query finds customers who have all of the following account types: " +
				strings.Join(accountTypes, ", ") + ". It only considers active accounts and " +
				"returns distinct customer names in alphabetical order."
			return sql, suggestion
		}
	}

	return "SELECT 1;", "Default fallback query"
}
