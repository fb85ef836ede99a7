package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlainJSON(t *testing.T) {
	sql, suggestion, err := parseResponse(`{"SQLQuery": "SELECT 1;", "Suggestion": "constant"}`)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", sql)
	assert.Equal(t, "constant", suggestion)
}

func TestParseJSONFence(t *testing.T) {
	raw := "```json\n{\"SQLQuery\": \"SELECT * FROM accounts\", \"Suggestion\": \"all accounts\"}\n```"
	sql, suggestion, err := parseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM accounts", sql)
	assert.Equal(t, "all accounts", suggestion)
}

func TestParseGenericFence(t *testing.T) {
	raw := "```\n{\"SQLQuery\": \"SELECT id FROM branches\", \"Suggestion\": \"branch ids\"}\n```"
	sql, _, err := parseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM branches", sql)
}

func TestParseUnclosedFence(t *testing.T) {
	raw := "```json\n{\"SQLQuery\": \"SELECT 1;\", \"Suggestion\": \"ok\"}"
	sql, _, err := parseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", sql)
}

func TestParseMissingFieldFails(t *testing.T) {
	_, _, err := parseResponse(`{"SQLQuery": "SELECT 1;"}`)
	assert.Error(t, err)

	_, _, err = parseResponse(`{"SQLQuery": "", "Suggestion": "x"}`)
	assert.Error(t, err)
}

func TestParseNonJSONFails(t *testing.T) {
	_, _, err := parseResponse("here is your query: SELECT 1;")
	assert.Error(t, err)
}

func TestCleanStripsOnlyOutermostFence(t *testing.T) {
	raw := "```json\n{\"a\": \"code: ```inner``` done\"}\n```"
	cleaned := cleanResponse(raw)
	assert.Contains(t, cleaned, "inner")
	assert.NotContains(t, cleaned, "```json")
}
