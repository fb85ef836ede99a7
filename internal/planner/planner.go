package planner

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"nl2sql/internal/metadata"
)

// Plan is the structured analysis of a natural-language query.
type Plan struct {
	Query               string                         `json:"query"`
	Tables              []string                       `json:"tables"`
	Steps               []Step                         `json:"steps"`
	Capabilities        []string                       `json:"capabilities"`
	Clarifications      []Clarification                `json:"clarifications"`
	FollowUpSuggestions []string                       `json:"follow_up_suggestions,omitempty"`
	MetadataContext     map[string]*metadata.TableMeta `json:"metadata_context,omitempty"`
	ConversationState   map[string]any                 `json:"conversation_state,omitempty"`
}

// Step is one pipeline action the plan prescribes.
type Step struct {
	Action string   `json:"action"`
	Tables []string `json:"tables,omitempty"`
}

// Clarification flags an ambiguity in the query along with a usable
// default, so the pipeline can proceed without blocking on the user.
type Clarification struct {
	Field   string   `json:"field"`
	Prompt  string   `json:"prompt"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
	Default any      `json:"default"`
}

// Keyword groups that map query phrasing to SQL capabilities.
var (
	dateWords = []string{"q1", "q2", "q3", "q4", "quarter", "year", "month",
		"week", "today", "yesterday", "last", "first quarter", "2024", "2025"}
	aggWords       = []string{"average", "avg", "sum", "count", "total", "number of", "how many"}
	existsWords    = []string{"both", "either", "and", "have both", "have both a", "have both an"}
	windowWords    = []string{"consecutive", "consecutive days", "lag", "lead"}
	weekendWords   = []string{"weekend", "saturday", "sunday"}
	thresholdWords = []string{"greater than", "less than", "above", "below",
		"minimum", "max", "at least", "more than"}
	vagueThresholdWords = []string{"high value", "high balance", "rich", "wealthy"}
)

var (
	numberRe = regexp.MustCompile(`\b\d{2,}\b`)
	yearRe   = regexp.MustCompile(`\b20\d{2}\b`)
)

// Agent analyzes queries against the schema metadata. Purely lexical, no
// LLM involvement.
type Agent struct {
	store *metadata.Store
	log   *zap.Logger
	state map[string]any
}

// New creates a planner over the given metadata.
func New(store *metadata.Store, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{store: store, log: log}
}

// Analyze builds a plan for the query. An empty query yields a schema-wide
// plan with no capabilities.
func (a *Agent) Analyze(query string) *Plan {
	if strings.TrimSpace(query) == "" {
		all := a.store.Tables()
		return &Plan{
			Query:          query,
			Tables:         all,
			Steps:          []Step{{Action: "fetch_schema", Tables: all}},
			Capabilities:   []string{},
			Clarifications: []Clarification{},
		}
	}

	tables := a.detectTables(query)
	caps := a.detectCapabilities(query)
	clars := a.detectClarifications(query)
	followUps := a.followUpSuggestions(query)

	metaCtx := map[string]*metadata.TableMeta{}
	for _, table := range tables {
		if tm, ok := a.store.Table(table); ok {
			metaCtx[table] = tm
		}
	}

	a.log.Debug("plan built",
		zap.String("query", query),
		zap.Strings("tables", tables),
		zap.Strings("capabilities", caps),
		zap.Int("clarifications", len(clars)))

	return &Plan{
		Query:          query,
		Tables:         tables,
		Capabilities:   caps,
		Clarifications: clars,
		Steps: []Step{
			{Action: "fetch_schema", Tables: tables},
			{Action: "retrieve_examples", Tables: tables},
			{Action: "generate_sql"},
			{Action: "validate_sql"},
			{Action: "execute_sql"},
		},
		FollowUpSuggestions: followUps,
		MetadataContext:     metaCtx,
		ConversationState:   a.state,
	}
}

// SetConversationState carries lightweight context across turns.
func (a *Agent) SetConversationState(state map[string]any) {
	a.state = state
}

// detectTables finds relevant tables in three passes: direct name
// mentions, enum value mentions, then singular-form heuristics. Falls
// back to every table so downstream stages always have schema context.
func (a *Agent) detectTables(query string) []string {
	tl := strings.ToLower(query)
	var found []string

	for _, table := range a.store.Tables() {
		if strings.Contains(tl, strings.ToLower(table)) {
			found = append(found, table)
		}
	}

	for _, table := range a.store.Tables() {
		for _, col := range a.store.Columns(table) {
			matched := false
			for _, val := range a.store.DistinctValues(table, col) {
				if strings.Contains(tl, strings.ToLower(val)) {
					found = append(found, table)
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
	}

	if len(found) == 0 {
		for _, table := range a.store.Tables() {
			if strings.Contains(tl, singular(table)) {
				found = append(found, table)
			}
		}
	}

	unique := dedup(found)
	if len(unique) == 0 {
		return a.store.Tables()
	}
	return unique
}

func (a *Agent) detectCapabilities(query string) []string {
	tl := strings.ToLower(query)
	caps := map[string]bool{}

	if containsAny(tl, aggWords) {
		caps["aggregate"] = true
	}
	if containsAny(tl, existsWords) {
		caps["exists"] = true
	}
	if containsAny(tl, windowWords) {
		caps["window"] = true
	}
	if containsAny(tl, weekendWords) {
		caps["weekend"] = true
	}
	if containsAny(tl, dateWords) {
		caps["date_filter"] = true
	}
	if containsAny(tl, thresholdWords) {
		caps["threshold"] = true
	}

	if a.mentionsEnumValue(tl, "accounts", "type") {
		caps["account_type_filter"] = true
	}
	if a.mentionsEnumValue(tl, "transactions", "type") {
		caps["transaction_type_filter"] = true
	}
	if a.mentionsEnumValue(tl, "employees", "position") {
		caps["position_filter"] = true
	}

	if strings.Contains(tl, "manager") || strings.Contains(tl, "handled") {
		caps["join_employees"] = true
	}

	out := make([]string, 0, len(caps))
	for c := range caps {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (a *Agent) detectClarifications(query string) []Clarification {
	tl := strings.ToLower(query)
	var clars []Clarification

	if containsAny(tl, vagueThresholdWords) && !numberRe.MatchString(query) {
		threshold := 20000.0
		if col, ok := a.store.Column("accounts", "balance"); ok && col.TypicalHigh != nil {
			threshold = *col.TypicalHigh
		}
		clars = append(clars, Clarification{
			Field:   "min_balance",
			Prompt:  "What minimum balance should count as 'high'?",
			Type:    "number",
			Default: threshold,
		})
	}

	if (strings.Contains(tl, "recent") || strings.Contains(tl, "last")) && !yearRe.MatchString(query) {
		clars = append(clars, Clarification{
			Field:   "date_range",
			Prompt:  "What date range do you mean by 'recent'?",
			Type:    "text",
			Default: "last 30 days",
		})
	}

	if strings.Contains(tl, "q1") || strings.Contains(tl, "first quarter") {
		clars = append(clars, Clarification{
			Field:   "date_range",
			Prompt:  "Confirm date range for Q1",
			Type:    "text",
			Default: "2025-01-01..2025-03-31",
		})
	}

	if strings.Contains(tl, "account") {
		types := a.store.DistinctValues("accounts", "type")
		if len(types) > 0 && !a.mentionsEnumValue(tl, "accounts", "type") {
			clars = append(clars, Clarification{
				Field:   "account_type",
				Prompt:  "What type of account are you interested in?",
				Type:    "select",
				Options: types,
				Default: "checking",
			})
		}
	}

	return clars
}

// followUpSuggestions proposes up to four related queries keyed off the
// entities mentioned in the current one.
func (a *Agent) followUpSuggestions(query string) []string {
	tl := strings.ToLower(query)
	var out []string

	if strings.Contains(tl, "branch") {
		if strings.Contains(tl, "transaction") {
			out = append(out,
				"Show me the bottom 5 performing branches",
				"What's the average transaction amount by branch?",
				"Show me branch performance by month",
				"Compare branch performance by employee count")
		} else {
			out = append(out,
				"Show me the top 10 branches by transaction volume",
				"Which branches have the most employees?",
				"Show me branch performance by revenue",
				"What's the average account balance by branch?")
		}
	}

	if strings.Contains(tl, "account") || strings.Contains(tl, "balance") {
		if types := a.store.DistinctValues("accounts", "type"); len(types) >= 2 {
			out = append(out, "Show me customers with both "+types[0]+" and "+types[1]+" accounts")
		}
		out = append(out,
			"Show me the top 10 accounts by balance",
			"What's the average account balance?",
			"Show me account distribution by type")
	}

	if strings.Contains(tl, "employee") || strings.Contains(tl, "salary") {
		if positions := a.store.DistinctValues("employees", "position"); len(positions) > 0 {
			out = append(out, "Show me all "+positions[0]+"s")
		}
		out = append(out,
			"Show me the top 10 highest paid employees",
			"What's the average employee salary?",
			"Show me salary distribution by position")
	}

	if strings.Contains(tl, "transaction") {
		if types := a.store.DistinctValues("transactions", "type"); len(types) > 0 {
			out = append(out, "Show me all "+types[0]+" transactions")
		}
		out = append(out,
			"Show me transaction trends by month",
			"What's the average transaction amount?",
			"Show me transactions by type")
	}

	if len(out) == 0 {
		out = append(out,
			"Show me the count of rows by each table",
			"What's the top performing branch?",
			"Show me the highest balance account",
			"Which employee has the highest salary?")
	}

	if len(out) > 4 {
		out = out[:4]
	}
	return out
}

func (a *Agent) mentionsEnumValue(tl, table, column string) bool {
	for _, val := range a.store.DistinctValues(table, column) {
		if strings.Contains(tl, strings.ToLower(val)) {
			return true
		}
	}
	return false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// singular strips a plural suffix for heuristic matching, so "branch"
// in the query still maps to the branches table.
func singular(table string) string {
	t := strings.ToLower(table)
	switch {
	case strings.HasSuffix(t, "ches"), strings.HasSuffix(t, "ses"), strings.HasSuffix(t, "xes"):
		return strings.TrimSuffix(t, "es")
	default:
		return strings.TrimSuffix(t, "s")
	}
}

func dedup(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
