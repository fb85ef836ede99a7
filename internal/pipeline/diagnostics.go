package pipeline

// Diagnostics accumulates per-request observability data. It rides along
// the Result envelope so callers can see how the answer was produced.
type Diagnostics struct {
	RequestID            string           `json:"request_id"`
	Retries              int              `json:"retries"`
	ValidatorFailReasons []string         `json:"validator_fail_reasons"`
	ExecutorErrors       []string         `json:"executor_errors"`
	TimingsMS            map[string]int64 `json:"timings_ms"`
	GeneratedSQL         string           `json:"generated_sql,omitempty"`
	FinalSQL             string           `json:"final_sql,omitempty"`
	ChosenTables         []string         `json:"chosen_tables"`
	DetectedCapabilities []string         `json:"detected_capabilities"`
	PromptTokens         int              `json:"prompt_tokens"`
	ResponseTokens       int              `json:"response_tokens"`
}

func newDiagnostics(requestID string) *Diagnostics {
	return &Diagnostics{
		RequestID:            requestID,
		ValidatorFailReasons: []string{},
		ExecutorErrors:       []string{},
		TimingsMS:            map[string]int64{},
		ChosenTables:         []string{},
		DetectedCapabilities: []string{},
	}
}
