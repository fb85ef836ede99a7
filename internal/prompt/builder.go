// Package prompt assembles the structured JSON prompt sent to the LLM:
// schema-infused context, chain-of-thought steps, few-shot examples and,
// on repair, the error context from the previous attempt.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"nl2sql/internal/metadata"
)

// HistoryEntry records one generated query for the session ring.
type HistoryEntry struct {
	NLQuery       string    `json:"nl_query"`
	GeneratedSQL  string    `json:"generated_sql"`
	Suggestion    string    `json:"suggestion"`
	WasSuccessful bool      `json:"was_successful"`
	Timestamp     time.Time `json:"timestamp"`
	ErrorContext  string    `json:"error_context,omitempty"`
}

// ErrorContext carries the failure from a previous attempt into the
// repair prompt.
type ErrorContext struct {
	OriginalSQL   string   `json:"original_sql,omitempty"`
	ErrorMessage  string   `json:"error_message"`
	Kind          string   `json:"kind,omitempty"`
	Hint          string   `json:"hint,omitempty"`
	Examples      []string `json:"examples,omitempty"`
	ValidValues   []string `json:"valid_values,omitempty"`
	AttemptNumber int      `json:"attempt_number,omitempty"`
}

// Builder constructs prompts and keeps a bounded session history.
// Safe for concurrent use.
type Builder struct {
	store      *metadata.Store
	graph      *metadata.FKGraph
	examples   []Example
	log        *zap.Logger
	maxHistory int

	mu      sync.Mutex
	history []HistoryEntry
}

// NewBuilder creates a Builder over the schema metadata. maxHistory
// bounds the session ring; values <= 0 fall back to 3.
func NewBuilder(store *metadata.Store, graph *metadata.FKGraph, maxHistory int, log *zap.Logger) *Builder {
	if maxHistory <= 0 {
		maxHistory = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		store:      store,
		graph:      graph,
		examples:   defaultExamples(),
		log:        log,
		maxHistory: maxHistory,
	}
}

// promptDoc is the full prompt structure. Field order is fixed by the
// struct; map keys marshal sorted, so output is deterministic for a
// given input.
type promptDoc struct {
	CriticalRequirements map[string][]string `json:"critical_requirements"`
	AnalysisSteps        []string            `json:"analysis_steps"`
	Task                 taskDoc             `json:"task"`
	SchemaContext        schemaContextDoc    `json:"schema_context"`
	RetrievedContext     []string            `json:"retrieved_context,omitempty"`
	Reasoning            reasoningDoc        `json:"reasoning"`
	Examples             []exampleDoc        `json:"examples"`
	Requirements         map[string][]string `json:"requirements"`
	RecentQueries        []historyDoc        `json:"recent_queries,omitempty"`
	ErrorContext         *errorContextDoc    `json:"error_context,omitempty"`
}

type historyDoc struct {
	NLQuery       string `json:"natural_language"`
	GeneratedSQL  string `json:"generated_sql"`
	WasSuccessful bool   `json:"was_successful"`
	ErrorContext  string `json:"error_context,omitempty"`
}

type taskDoc struct {
	Objective    string         `json:"objective"`
	InputQuery   string         `json:"input_query"`
	Context      string         `json:"context"`
	OutputFormat outputFormat   `json:"output_format"`
	Clarified    map[string]any `json:"clarified_values,omitempty"`
}

type outputFormat struct {
	Type      string            `json:"type"`
	Structure map[string]string `json:"structure"`
}

type schemaContextDoc struct {
	Tables        map[string]tableContextDoc `json:"tables"`
	Relationships []relationshipDoc          `json:"relationships"`
	ValueDomains  map[string][]string        `json:"value_domains"`
}

type tableContextDoc struct {
	Name        string                      `json:"name"`
	Description string                      `json:"description"`
	Columns     map[string]columnContextDoc `json:"columns"`
	PrimaryKey  string                      `json:"primary_key,omitempty"`
	ForeignKeys []relationshipDoc           `json:"foreign_keys"`
}

type columnContextDoc struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Constraints []string `json:"constraints"`
	Pattern     string   `json:"pattern,omitempty"`
	ValidValues []string `json:"valid_values,omitempty"`
}

type relationshipDoc struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type reasoningDoc struct {
	ChainOfThought       chainOfThoughtDoc `json:"chain_of_thought"`
	DetectedCapabilities []string          `json:"detected_capabilities"`
	RequiredTables       []string          `json:"required_tables"`
}

type chainOfThoughtDoc struct {
	Steps       []string `json:"steps"`
	Explanation string   `json:"explanation"`
}

type exampleDoc struct {
	NaturalLanguage string           `json:"natural_language"`
	Output          exampleOutputDoc `json:"output"`
}

type exampleOutputDoc struct {
	SQLQuery   string              `json:"SQLQuery"`
	Suggestion string              `json:"Suggestion"`
	Reasoning  map[string][]string `json:"Reasoning"`
}

type errorContextDoc struct {
	PreviousError   *ErrorContext `json:"previous_error"`
	CorrectionFocus []string      `json:"correction_focus"`
}

// Build assembles the prompt JSON for a query. retrievedContext comes
// from the retriever; errCtx is nil on the first attempt.
func (b *Builder) Build(query string, tables, capabilities, retrievedContext []string,
	clarified map[string]any, errCtx *ErrorContext) (string, error) {

	doc := promptDoc{
		CriticalRequirements: map[string][]string{
			"schema_adherence": {
				"ONLY use columns that exist in the provided schema metadata",
				"Verify each column name against the schema before using",
				"Check data types and constraints from schema",
			},
			"aggregation_guidelines": {
				"Add COUNT, SUM, AVG where relevant to provide insights",
				"Include GROUP BY when using aggregations",
				"Consider HAVING clauses for aggregate filters",
			},
			"join_validation": {
				"Verify all required joins based on foreign key relationships",
				"Use appropriate JOIN types (LEFT, INNER) based on requirements",
				"Include all necessary join conditions",
			},
			"where_conditions": {
				"Add status='active' checks where applicable",
				"Include date range filters when temporal context exists",
				"Validate values against domain constraints",
			},
		},
		AnalysisSteps: []string{
			"1. Identify entities and columns from schema metadata",
			"2. Map identified elements to relevant tables/columns",
			"3. Plan necessary joins using foreign key relationships",
			"4. Determine required aggregations and grouping",
			"5. Add appropriate WHERE conditions and filters",
			"6. Structure the final SQL query",
			"7. Validate against schema constraints",
			"8. Provide reasoning for choices made",
		},
		Task: taskDoc{
			Objective:  "Generate a SQLite SQL query",
			InputQuery: query,
			Context:    "Banking database query generation",
			Clarified:  clarified,
			OutputFormat: outputFormat{
				Type: "json",
				Structure: map[string]string{
					"SQLQuery":   "The executable SQL query that fulfills the request",
					"Suggestion": "A natural language description of what the SQL query does",
					"Reasoning":  "Explanation of entities, joins, aggregations and filters chosen",
				},
			},
		},
		SchemaContext:    b.schemaContext(),
		RetrievedContext: retrievedContext,
		Reasoning: reasoningDoc{
			ChainOfThought: chainOfThoughtDoc{
				Steps:       b.chainOfThought(query, tables, capabilities),
				Explanation: "Following systematic analysis process",
			},
			DetectedCapabilities: capabilities,
			RequiredTables:       tables,
		},
		Examples: b.relevantExamples(query, tables),
		Requirements: map[string][]string{
			"output_format": {
				"Return a JSON object with SQLQuery, Suggestion, and Reasoning",
				"SQLQuery must contain only the executable SQL query",
				"Suggestion must provide a clear description of the query's purpose",
				"Reasoning must explain all key decisions made",
			},
			"schema_validation": {
				"Verify every column exists in schema",
				"Check data types match schema",
				"Validate against domain constraints",
			},
			"join_requirements": {
				"Use proper table aliases",
				"Include all necessary join conditions",
				"Follow foreign key relationships",
			},
			"aggregation_rules": {
				"Add appropriate GROUP BY clauses",
				"Consider HAVING for aggregate filters",
				"Use DISTINCT when needed",
			},
			"filter_guidelines": {
				"Add status checks where relevant",
				"Include date filters when needed",
				"Validate literal values",
			},
		},
	}

	for _, h := range b.History() {
		doc.RecentQueries = append(doc.RecentQueries, historyDoc{
			NLQuery:       h.NLQuery,
			GeneratedSQL:  h.GeneratedSQL,
			WasSuccessful: h.WasSuccessful,
			ErrorContext:  h.ErrorContext,
		})
	}

	if errCtx != nil {
		doc.ErrorContext = &errorContextDoc{
			PreviousError: errCtx,
			CorrectionFocus: []string{
				"Verify column names against schema",
				"Check join conditions",
				"Validate value domains",
				"Review aggregation logic",
			},
		}
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal prompt: %w", err)
	}
	return string(out), nil
}

// schemaContext renders the full metadata store into the prompt's schema
// section: columns with constraints, value domains, FK relationships.
func (b *Builder) schemaContext() schemaContextDoc {
	ctx := schemaContextDoc{
		Tables:        map[string]tableContextDoc{},
		Relationships: []relationshipDoc{},
		ValueDomains:  map[string][]string{},
	}

	for _, table := range b.store.Tables() {
		tctx := tableContextDoc{
			Name:        table,
			Description: b.store.Description(table),
			Columns:     map[string]columnContextDoc{},
			ForeignKeys: []relationshipDoc{},
		}

		for _, colName := range b.store.Columns(table) {
			col, ok := b.store.Column(table, colName)
			if !ok {
				continue
			}
			cctx := columnContextDoc{
				Name:        colName,
				Type:        col.Type,
				Constraints: []string{},
				Pattern:     col.Pattern,
			}
			if col.PrimaryKey {
				cctx.Constraints = append(cctx.Constraints, "PRIMARY KEY")
				tctx.PrimaryKey = colName
			}
			if col.Required {
				cctx.Constraints = append(cctx.Constraints, "NOT NULL")
			}
			if col.Default != nil {
				cctx.Constraints = append(cctx.Constraints, fmt.Sprintf("DEFAULT: %v", col.Default))
			}
			if len(col.DistinctValues) > 0 {
				cctx.ValidValues = col.DistinctValues
				ctx.ValueDomains[table+"."+colName] = col.DistinctValues
			}
			tctx.Columns[colName] = cctx
		}

		for _, fk := range b.store.ForeignKeys(table) {
			rel := relationshipDoc{From: table + "." + fk.Column, To: fk.References}
			tctx.ForeignKeys = append(tctx.ForeignKeys, rel)
			ctx.Relationships = append(ctx.Relationships, rel)
		}

		ctx.Tables[table] = tctx
	}

	return ctx
}

// chainOfThought derives reasoning steps from the query, the detected
// tables and the schema. Falls back to generic steps when nothing
// specific can be derived.
func (b *Builder) chainOfThought(query string, tables, capabilities []string) []string {
	tl := strings.ToLower(query)
	var steps []string

	var entities []string
	for _, table := range tables {
		if strings.Contains(tl, strings.TrimSuffix(strings.ToLower(table), "s")) {
			if desc := b.store.Description(table); desc != "" {
				entities = append(entities, table+" ("+desc+")")
			} else {
				entities = append(entities, table)
			}
		}
	}
	if len(entities) > 0 {
		steps = append(steps, "1. Identified entities: "+strings.Join(entities, ", "))
	}

	var mappings []string
	for _, table := range tables {
		var keyCols []string
		for _, colName := range b.store.Columns(table) {
			if col, ok := b.store.Column(table, colName); ok && (col.PrimaryKey || col.Required) {
				keyCols = append(keyCols, colName)
			}
		}
		if len(keyCols) > 0 {
			mappings = append(mappings, table+" (key columns: "+strings.Join(keyCols, ", ")+")")
		}
	}
	if len(mappings) > 0 {
		steps = append(steps, "2. Required tables: "+strings.Join(mappings, ", "))
	}

	if len(tables) > 1 && b.graph != nil {
		var joins []string
		for i := 0; i+1 < len(tables); i++ {
			if cond, ok := b.graph.JoinCondition(tables[i], tables[i+1]); ok {
				joins = append(joins, cond)
			}
		}
		if len(joins) > 0 {
			steps = append(steps, "3. Join path: "+strings.Join(joins, " then "))
		}
	}

	var conditions []string
	if contains(capabilities, "aggregate") {
		conditions = append(conditions, "Apply aggregation functions")
	}
	if contains(capabilities, "date_filter") {
		conditions = append(conditions, "Add date range filters")
	}
	for _, table := range tables {
		if b.store.HasColumn(table, "status") {
			conditions = append(conditions, "Check status='active' where applicable")
			break
		}
	}
	for _, table := range tables {
		for _, colName := range b.store.Columns(table) {
			values := b.store.DistinctValues(table, colName)
			for _, v := range values {
				if strings.Contains(tl, strings.ToLower(v)) {
					conditions = append(conditions,
						"Validate "+table+"."+colName+" against allowed values: "+strings.Join(values, ", "))
					break
				}
			}
		}
	}
	if len(conditions) > 0 {
		steps = append(steps, "4. Required conditions: "+strings.Join(conditions, ", "))
	}

	var outputs []string
	for _, table := range tables {
		if b.store.HasColumn(table, "first_name") && b.store.HasColumn(table, "last_name") {
			outputs = append(outputs, "Concatenate first_name and last_name")
			break
		}
	}
	if contains(capabilities, "aggregate") {
		outputs = append(outputs, "Include aggregated values")
	}
	if strings.Contains(tl, "order") || strings.Contains(tl, "sort") || strings.Contains(tl, "rank") {
		outputs = append(outputs, "Add ORDER BY clause")
	}
	if len(outputs) > 0 {
		steps = append(steps, "5. Output formatting: "+strings.Join(outputs, ", "))
	}

	if len(steps) == 0 {
		return []string{
			"1. Identify entities in the question",
			"2. Map to relevant tables/columns",
			"3. Plan necessary joins/filters",
			"4. Determine output columns",
			"5. Consider ordering and grouping",
		}
	}
	return steps
}

// relevantExamples picks up to two few-shot examples sharing a table and
// at least one keyword with the query.
func (b *Builder) relevantExamples(query string, tables []string) []exampleDoc {
	tl := strings.ToLower(query)
	queryWords := map[string]bool{}
	for _, w := range strings.Fields(tl) {
		queryWords[w] = true
	}

	tableSet := map[string]bool{}
	for _, t := range tables {
		tableSet[t] = true
	}

	docs := []exampleDoc{}
	for _, ex := range b.examples {
		tableOverlap := false
		for _, t := range ex.TablesUsed {
			if tableSet[t] {
				tableOverlap = true
				break
			}
		}
		keywordOverlap := false
		for _, w := range strings.Fields(strings.ToLower(ex.NLQuery)) {
			if queryWords[w] {
				keywordOverlap = true
				break
			}
		}
		if tableOverlap && keywordOverlap {
			docs = append(docs, exampleDoc{
				NaturalLanguage: ex.NLQuery,
				Output: exampleOutputDoc{
					SQLQuery:   strings.TrimSpace(ex.SQLQuery),
					Suggestion: ex.Suggestion,
					Reasoning: map[string][]string{
						"identified_entities": ex.TablesUsed,
						"join_logic":          ex.KeyColumns,
						"filter_conditions":   ex.Conditions,
					},
				},
			})
		}
		if len(docs) == 2 {
			break
		}
	}
	return docs
}

// AddHistory appends an entry to the session ring, evicting the oldest
// once the cap is reached.
func (b *Builder) AddHistory(entry HistoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = append(b.history, entry)
	if len(b.history) > b.maxHistory {
		b.history = b.history[len(b.history)-b.maxHistory:]
	}
}

// History returns a copy of the session ring, oldest first.
func (b *Builder) History() []HistoryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]HistoryEntry, len(b.history))
	copy(out, b.history)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
