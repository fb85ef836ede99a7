package prompt

// Example is a worked natural-language to SQL translation embedded in the
// prompt as a few-shot demonstration.
type Example struct {
	NLQuery        string
	SQLQuery       string
	Suggestion     string
	ReasoningSteps []string
	TablesUsed     []string
	KeyColumns     []string
	Conditions     []string
}

// defaultExamples returns the curated few-shot set. Each example pairs a
// question with its SQL and the reasoning that led there.
func defaultExamples() []Example {
	return []Example{
		{
			NLQuery: "List all branches and their managers' names. Include branches without a manager.",
			SQLQuery: `SELECT
    b.name AS branch_name,
    e.name AS manager_name
FROM branches b
LEFT JOIN employees e
    ON b.manager_id = e.id
    AND e.position = 'Branch Manager'
ORDER BY b.name;`,
			Suggestion: "This query retrieves all bank branches and their corresponding manager names, using a LEFT JOIN to include branches that don't have a manager assigned. Results are ordered by branch name for easy reading.",
			ReasoningSteps: []string{
				"1. Identify main entity: branches table (contains branch information)",
				"2. Need manager names: requires join with employees table",
				"3. Use LEFT JOIN to include branches without managers",
				"4. Filter for Branch Manager position in employees",
				"5. Order by branch name for readability",
			},
			TablesUsed: []string{"branches", "employees"},
			KeyColumns: []string{"branches.manager_id", "employees.id", "employees.position"},
			Conditions: []string{"e.position = 'Branch Manager'"},
		},
		{
			NLQuery: "Find customers who have both checking and savings accounts.",
			SQLQuery: `SELECT DISTINCT
    c.first_name || ' ' || c.last_name AS customer_name,
    c.email,
    c.phone
FROM customers c
JOIN accounts a1
    ON c.id = a1.customer_id
    AND a1.type = 'checking'
    AND a1.status = 'active'
JOIN accounts a2
    ON c.id = a2.customer_id
    AND a2.type = 'savings'
    AND a2.status = 'active'
ORDER BY customer_name;`,
			Suggestion: "This query finds customers with both checking and savings accounts by joining the customers table twice with the accounts table. It only considers active accounts and returns customer details ordered by name.",
			ReasoningSteps: []string{
				"1. Start with customers table for personal info",
				"2. Need two joins to accounts (a1, a2) to check both account types",
				"3. Filter for active accounts only",
				"4. Use DISTINCT to avoid duplicates",
				"5. Concatenate first and last names for readability",
			},
			TablesUsed: []string{"customers", "accounts"},
			KeyColumns: []string{"customers.id", "accounts.customer_id", "accounts.type", "accounts.status"},
			Conditions: []string{"a1.type = 'checking'", "a2.type = 'savings'", "status = 'active'"},
		},
	}
}
