package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nl2sql/internal/testkit"
)

type stubSmoke struct {
	err   error
	calls int
	last  string
}

func (s *stubSmoke) Smoke(_ context.Context, sql string) error {
	s.calls++
	s.last = sql
	return s.err
}

func newValidator(t *testing.T, smoke SmokeRunner) *Validator {
	t.Helper()
	return New(testkit.NewStore(t), smoke, nil)
}

func TestEmptyQueryRejected(t *testing.T) {
	v := newValidator(t, nil)
	res := v.Validate(context.Background(), "   ")
	assert.False(t, res.IsValid)
	assert.Equal(t, "empty SQL query", res.Error)
}

func TestNonSelectVerbRejected(t *testing.T) {
	v := newValidator(t, nil)
	res := v.Validate(context.Background(), "UPDATE accounts SET balance = 0")
	assert.False(t, res.IsValid)
}

func TestForbiddenKeywordsRejected(t *testing.T) {
	v := newValidator(t, nil)
	for _, sql := range []string{
		"SELECT * FROM accounts; DROP TABLE accounts",
		"SELECT * FROM accounts WHERE id IN (SELECT 1) AND 1=1; DELETE FROM accounts",
		"WITH x AS (SELECT 1) INSERT INTO accounts SELECT * FROM x",
		"SELECT * FROM accounts UNION SELECT * FROM pragma_table_info('accounts') PRAGMA foo",
	} {
		res := v.Validate(context.Background(), sql)
		assert.False(t, res.IsValid, "expected rejection: %s", sql)
	}
}

func TestAttachDetachPragmaRejected(t *testing.T) {
	v := newValidator(t, nil)
	for _, sql := range []string{
		"SELECT 1 FROM accounts ATTACH DATABASE 'x' AS y",
		"SELECT 1 FROM accounts DETACH DATABASE y",
	} {
		res := v.Validate(context.Background(), sql)
		assert.False(t, res.IsValid, sql)
	}
}

func TestForbiddenWordInsideStringLiteralAllowed(t *testing.T) {
	v := newValidator(t, nil)
	res := v.Validate(context.Background(),
		"SELECT * FROM transactions WHERE status = 'dropped' AND type != 'drop table'")
	assert.True(t, res.IsValid, res.Error)
}

func TestEscapedQuoteInLiteral(t *testing.T) {
	v := newValidator(t, nil)
	res := v.Validate(context.Background(),
		"SELECT * FROM customers WHERE last_name = 'O''Brien'")
	assert.True(t, res.IsValid, res.Error)
}

func TestMultipleStatementsRejected(t *testing.T) {
	v := newValidator(t, nil)
	res := v.Validate(context.Background(), "SELECT 1 FROM accounts; SELECT 2 FROM accounts")
	assert.False(t, res.IsValid)
	assert.Equal(t, "multiple statements are not allowed", res.Error)
}

func TestTrailingSemicolonAllowed(t *testing.T) {
	v := newValidator(t, nil)
	res := v.Validate(context.Background(), "SELECT * FROM accounts;")
	assert.True(t, res.IsValid, res.Error)
}

func TestUnknownTableRejected(t *testing.T) {
	v := newValidator(t, nil)
	res := v.Validate(context.Background(), "SELECT * FROM unicorns")
	assert.False(t, res.IsValid)
	assert.Equal(t, "no known table referenced in query", res.Error)
}

func TestKnownTablesCollected(t *testing.T) {
	v := newValidator(t, nil)
	res := v.Validate(context.Background(),
		"SELECT a.id FROM accounts a JOIN customers c ON a.customer_id = c.id JOIN accounts a2 ON a2.customer_id = c.id")
	require.True(t, res.IsValid, res.Error)
	assert.Equal(t, []string{"accounts", "customers"}, res.TablesUsed)
}

func TestConstantSelectAllowedWithWarning(t *testing.T) {
	v := newValidator(t, nil)
	res := v.Validate(context.Background(), "SELECT 1;")
	require.True(t, res.IsValid)
	assert.Empty(t, res.TablesUsed)
	assert.Contains(t, res.Warnings, "no known tables referenced")
}

func TestWithCTEAccepted(t *testing.T) {
	v := newValidator(t, nil)
	res := v.Validate(context.Background(),
		"WITH big AS (SELECT * FROM accounts WHERE balance > 1000) SELECT count(*) FROM big JOIN customers ON 1=1")
	assert.True(t, res.IsValid, res.Error)
}

func TestSmokeFailurePropagatesVerbatim(t *testing.T) {
	smoke := &stubSmoke{err: errors.New("no such column: wealth")}
	v := newValidator(t, smoke)
	res := v.Validate(context.Background(), "SELECT wealth FROM accounts")
	assert.False(t, res.IsValid)
	assert.Equal(t, "no such column: wealth", res.Error)
	assert.Equal(t, 1, smoke.calls)
}

func TestSmokeRunsOnlyAfterStaticChecks(t *testing.T) {
	smoke := &stubSmoke{}
	v := newValidator(t, smoke)
	v.Validate(context.Background(), "DROP TABLE accounts")
	assert.Zero(t, smoke.calls)
}

func TestClassify(t *testing.T) {
	cases := map[string]ErrorKind{
		"no such table: unicorns":                 KindTableNotFound,
		"no such column: wealth":                  KindColumnNotFound,
		"Unknown column 'x' in 'field list'":      KindColumnNotFound,
		"ambiguous column name: id":               KindAmbiguousColumn,
		`near "SELEC": syntax error`:              KindSyntax,
		"connection refused":                      KindUnknown,
	}
	for msg, want := range cases {
		assert.Equal(t, want, Classify(msg), msg)
	}
}

func TestKindHintsAndExamples(t *testing.T) {
	for _, k := range []ErrorKind{KindTableNotFound, KindColumnNotFound, KindAmbiguousColumn, KindSyntax, KindUnknown} {
		assert.NotEmpty(t, k.Hint())
	}
	assert.NotEmpty(t, KindColumnNotFound.Examples())
	assert.Empty(t, KindUnknown.Examples())
}

func TestMissingColumn(t *testing.T) {
	col, ok := MissingColumn("no such column: wealth")
	require.True(t, ok)
	assert.Equal(t, "wealth", col)

	col, ok = MissingColumn("ambiguous column name: id")
	require.True(t, ok)
	assert.Equal(t, "id", col)

	_, ok = MissingColumn("syntax error")
	assert.False(t, ok)
}
