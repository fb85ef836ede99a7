package validator

import (
	"regexp"
	"strings"
)

// ErrorKind buckets engine and validation errors so the repair prompt can
// attach targeted hints.
type ErrorKind string

const (
	KindTableNotFound   ErrorKind = "table_not_found"
	KindColumnNotFound  ErrorKind = "column_not_found"
	KindAmbiguousColumn ErrorKind = "ambiguous_column"
	KindSyntax          ErrorKind = "syntax_error"
	KindUnknown         ErrorKind = "unknown"
)

var (
	tableNotFoundRe  = regexp.MustCompile(`(?i)no such table|table .* (?:doesn't|does not) exist`)
	columnNotFoundRe = regexp.MustCompile(`(?i)no such column|column .* (?:doesn't|does not) exist|unknown column`)
	ambiguousRe      = regexp.MustCompile(`(?i)ambiguous column`)
	syntaxRe         = regexp.MustCompile(`(?i)syntax error|near "`)
)

// Classify maps an error message to an ErrorKind.
func Classify(message string) ErrorKind {
	switch {
	case tableNotFoundRe.MatchString(message):
		return KindTableNotFound
	case columnNotFoundRe.MatchString(message):
		return KindColumnNotFound
	case ambiguousRe.MatchString(message):
		return KindAmbiguousColumn
	case syntaxRe.MatchString(message):
		return KindSyntax
	default:
		return KindUnknown
	}
}

// Hint returns a correction hint for the repair prompt.
func (k ErrorKind) Hint() string {
	switch k {
	case KindTableNotFound:
		return "One of the referenced tables does not exist. Use only tables listed in the schema context."
	case KindColumnNotFound:
		return "One of the referenced columns does not exist. Check the column list of each table in the schema context."
	case KindAmbiguousColumn:
		return "A column name appears in more than one joined table. Qualify it with the table name or alias."
	case KindSyntax:
		return "The statement has a syntax error. Rewrite it as a single well-formed SELECT."
	default:
		return "Review the query against the schema context and correct the error."
	}
}

// Examples returns short corrected-query sketches for the repair prompt.
func (k ErrorKind) Examples() []string {
	switch k {
	case KindColumnNotFound:
		return []string{
			"SELECT name, balance FROM accounts  -- use exact column names from the schema",
		}
	case KindAmbiguousColumn:
		return []string{
			"SELECT a.id FROM accounts a JOIN transactions t ON t.account_id = a.id",
		}
	case KindTableNotFound:
		return []string{
			"SELECT * FROM accounts  -- table names must match the schema exactly",
		}
	default:
		return nil
	}
}

// MissingColumn extracts the offending column name from an engine error,
// when the engine names one. Used by the heuristic repair step.
func MissingColumn(message string) (string, bool) {
	for _, re := range []*regexp.Regexp{
		regexp.MustCompile(`no such column: (\w+)`),
		regexp.MustCompile(`column (\w+) does not exist`),
		regexp.MustCompile(`ambiguous column name: (\w+)`),
	} {
		if m := re.FindStringSubmatch(message); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}
