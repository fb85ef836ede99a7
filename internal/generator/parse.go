package generator

import (
	"encoding/json"
	"errors"
	"strings"
)

type llmResponse struct {
	SQLQuery   string `json:"SQLQuery"`
	Suggestion string `json:"Suggestion"`
}

var errBadResponse = errors.New("response missing SQLQuery or Suggestion")

// parseResponse extracts the SQL and suggestion from a raw LLM response.
// Handles markdown-fenced JSON; both fields must be non-empty.
func parseResponse(raw string) (sql, suggestion string, err error) {
	cleaned := cleanResponse(raw)

	var resp llmResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return "", "", err
	}

	sql = strings.TrimSpace(resp.SQLQuery)
	suggestion = strings.TrimSpace(resp.Suggestion)
	if sql == "" || suggestion == "" {
		return "", "", errBadResponse
	}
	return sql, suggestion, nil
}

// cleanResponse strips the outermost markdown code fence and stray
// backticks. Only one fence layer is removed; fenced content inside the
// JSON survives intact.
func cleanResponse(raw string) string {
	cleaned := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(cleaned, "```json"):
		cleaned = cleaned[7:]
	case strings.HasPrefix(cleaned, "```"):
		cleaned = cleaned[3:]
	default:
		return strings.Trim(cleaned, "`")
	}

	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.Trim(strings.TrimSpace(cleaned), "`")
}
