package validator

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"nl2sql/internal/metadata"
)

// Result is the validation verdict.
type Result struct {
	IsValid    bool     `json:"is_valid"`
	Error      string   `json:"error,omitempty"`
	TablesUsed []string `json:"tables_used"`
	Warnings   []string `json:"warnings,omitempty"`
}

// SmokeRunner executes a candidate statement with a LIMIT 1 cap to verify
// identifiers and syntax against the live engine. Implemented by the
// executor; nil disables the smoke step (static-only validation).
type SmokeRunner interface {
	Smoke(ctx context.Context, sql string) error
}

// Validator is the gatekeeper in front of the executor: it enforces the
// read-only invariant and basic structural validity. Apart from the
// smoke-execution step it is pure with respect to the schema metadata.
type Validator struct {
	store *metadata.Store
	smoke SmokeRunner
	log   *zap.Logger
}

// New creates a Validator. smoke may be nil.
func New(store *metadata.Store, smoke SmokeRunner, log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{store: store, smoke: smoke, log: log}
}

// Forbidden statement keywords. Matching is done on standalone tokens
// outside string literals, so `SELECT 'drop table'` passes.
var forbiddenKeywords = []string{
	"DROP", "DELETE", "TRUNCATE", "UPDATE", "INSERT", "ALTER", "CREATE",
	"MODIFY", "RENAME", "REPLACE", "GRANT", "REVOKE", "ATTACH", "DETACH",
	"PRAGMA",
}

var (
	forbiddenRe  = regexp.MustCompile(`(?i)\b(` + strings.Join(forbiddenKeywords, "|") + `)\b`)
	tableRefRe   = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)
	firstTokenRe = regexp.MustCompile(`(?i)^\s*([a-zA-Z_]+)`)
	hasFromRe    = regexp.MustCompile(`(?i)\bFROM\b`)
)

// Validate applies the rules in order: non-empty, single read-only
// statement, no forbidden keywords, at least one known table (or a
// constant-expression SELECT), then a LIMIT 1 smoke execution.
func (v *Validator) Validate(ctx context.Context, sql string) Result {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return invalid("empty SQL query")
	}

	stripped := stripStringLiterals(trimmed)

	// One statement only: an interior semicolon followed by anything but
	// whitespace means a second statement.
	if idx := strings.Index(stripped, ";"); idx >= 0 {
		if rest := strings.TrimSpace(stripped[idx+1:]); rest != "" {
			return invalid("multiple statements are not allowed")
		}
	}

	m := firstTokenRe.FindStringSubmatch(stripped)
	if m == nil {
		return invalid("statement does not start with a read-only verb")
	}
	switch strings.ToUpper(m[1]) {
	case "SELECT", "WITH":
	default:
		return invalid("only SELECT statements are allowed, got " + strings.ToUpper(m[1]))
	}

	if kw := forbiddenRe.FindStringSubmatch(stripped); kw != nil {
		return invalid("forbidden keyword '" + strings.ToUpper(kw[1]) + "' found in query")
	}

	res := Result{IsValid: true}

	// Identifier existence: at least one FROM/JOIN target must be a known
	// table, unless the statement is a constant-expression SELECT.
	var tables []string
	seen := map[string]bool{}
	for _, match := range tableRefRe.FindAllStringSubmatch(stripped, -1) {
		name := strings.ToLower(match[1])
		if seen[name] {
			continue
		}
		seen[name] = true
		tables = append(tables, name)
	}

	if len(tables) == 0 {
		if hasFromRe.MatchString(stripped) {
			return invalid("no known table referenced in query")
		}
		res.TablesUsed = []string{}
		res.Warnings = append(res.Warnings, "no known tables referenced")
	} else {
		known := make([]string, 0, len(tables))
		for _, t := range tables {
			if v.store.HasTable(t) {
				known = append(known, t)
			}
		}
		if len(known) == 0 {
			return invalid("no known table referenced in query")
		}
		res.TablesUsed = known
	}

	if v.smoke != nil {
		if err := v.smoke.Smoke(ctx, trimmed); err != nil {
			v.log.Debug("smoke execution failed",
				zap.String("sql", trimmed),
				zap.Error(err))
			return invalid(err.Error())
		}
	}

	return res
}

func invalid(reason string) Result {
	return Result{IsValid: false, Error: reason, TablesUsed: []string{}}
}

// stripStringLiterals blanks out the contents of single-quoted literals
// (handling '' escapes) so keyword and identifier scans cannot be fooled
// by quoted text.
func stripStringLiterals(sql string) string {
	var sb strings.Builder
	sb.Grow(len(sql))
	inString := false
	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if inString {
			if r == '\'' {
				if i+1 < len(runes) && runes[i+1] == '\'' {
					i++ // escaped quote inside the literal
					continue
				}
				inString = false
				sb.WriteRune('\'')
			}
			continue
		}
		if r == '\'' {
			inString = true
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
