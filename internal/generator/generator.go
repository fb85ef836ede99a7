// Package generator turns natural-language queries into SQL through the
// LLM, with bounded retries, a heuristic column-elimination repair and a
// deterministic pattern fallback.
package generator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"nl2sql/internal/metadata"
	"nl2sql/internal/prompt"
	"nl2sql/internal/validator"
)

// Context carries the planning and retrieval results into generation.
type Context struct {
	DetectedTables []string
	Capabilities   []string
	SchemaContext  []string
	Clarified      map[string]any
	// LastSQL seeds a repair call with the statement that failed.
	LastSQL string
}

// Output is the generation result plus per-call accounting.
type Output struct {
	SQL            string
	Suggestion     string
	Attempts       int
	PromptTokens   int
	ResponseTokens int
	UsedFallback   bool
}

// Agent drives the LLM generation loop. Each candidate is validated
// (including a smoke execution) before being accepted.
type Agent struct {
	llm         llms.Model
	builder     *prompt.Builder
	validator   *validator.Validator
	store       *metadata.Store
	counter     *prompt.TokenCounter
	temperature float64
	maxAttempts int
	log         *zap.Logger
}

// New creates a generator with base temperature 0.1. maxAttempts is the
// LLM attempt budget; values <= 0 fall back to 3.
func New(llm llms.Model, builder *prompt.Builder, v *validator.Validator,
	store *metadata.Store, maxAttempts int, log *zap.Logger) *Agent {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{
		llm:         llm,
		builder:     builder,
		validator:   v,
		store:       store,
		counter:     prompt.NewTokenCounter(),
		temperature: 0.1,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// Generate produces SQL for the query. The LLM gets maxAttempts tries
// with rising temperature; failures fall through to the heuristic repair
// and finally the pattern templates, so the result is never empty.
func (g *Agent) Generate(ctx context.Context, query string, gc *Context) (*Output, error) {
	return g.attemptLoop(ctx, query, gc, g.maxAttempts, nil)
}

// Repair regenerates SQL after a downstream failure, with a smaller
// attempt budget and the failure wired into the prompt.
func (g *Agent) Repair(ctx context.Context, query string, gc *Context, hint string) (*Output, error) {
	kind := validator.Classify(hint)
	errCtx := &prompt.ErrorContext{
		OriginalSQL:  gc.LastSQL,
		ErrorMessage: hint,
		Kind:         string(kind),
		Hint:         kind.Hint(),
		Examples:     kind.Examples(),
		ValidValues:  g.columnDomain(gc.DetectedTables, hint),
	}
	return g.attemptLoop(ctx, query, gc, 2, errCtx)
}

// columnDomain resolves the enum domain of the column named in a
// column error so the repair prompt can list the allowed values. The
// detected tables are searched first, then the whole schema.
func (g *Agent) columnDomain(tables []string, errMsg string) []string {
	col, ok := validator.MissingColumn(errMsg)
	if !ok {
		return nil
	}
	search := tables
	if len(search) == 0 {
		search = g.store.Tables()
	}
	for _, table := range search {
		if !g.store.HasColumn(table, col) {
			continue
		}
		if values := g.store.DistinctValues(table, col); len(values) > 0 {
			return values
		}
	}
	return nil
}

func (g *Agent) attemptLoop(ctx context.Context, query string, gc *Context,
	attempts int, errCtx *prompt.ErrorContext) (*Output, error) {

	out := &Output{}
	currentSQL := gc.LastSQL
	lastError := ""
	if errCtx != nil {
		lastError = errCtx.ErrorMessage
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out.Attempts = attempt

		if errCtx != nil {
			errCtx.AttemptNumber = attempt
		}
		promptText, err := g.builder.Build(query, gc.DetectedTables, gc.Capabilities,
			gc.SchemaContext, gc.Clarified, errCtx)
		if err != nil {
			return nil, err
		}
		out.PromptTokens += g.counter.Count(promptText)

		temperature := g.temperature + 0.1*float64(attempt-1)
		response, err := g.call(ctx, promptText, temperature)
		if err != nil {
			g.log.Warn("llm call failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}
		out.ResponseTokens += g.counter.Count(response)

		sql, suggestion, err := parseResponse(response)
		if err != nil {
			g.log.Warn("llm response unparseable",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}
		currentSQL = sql

		vres := g.validator.Validate(ctx, sql)
		if vres.IsValid {
			out.SQL = sql
			out.Suggestion = suggestion
			g.builder.AddHistory(prompt.HistoryEntry{
				NLQuery:       query,
				GeneratedSQL:  sql,
				Suggestion:    suggestion,
				WasSuccessful: true,
			})
			return out, nil
		}

		lastError = vres.Error
		kind := validator.Classify(vres.Error)
		errCtx = &prompt.ErrorContext{
			OriginalSQL:  sql,
			ErrorMessage: vres.Error,
			Kind:         string(kind),
			Hint:         kind.Hint(),
			Examples:     kind.Examples(),
			ValidValues:  g.columnDomain(gc.DetectedTables, vres.Error),
		}
		g.log.Info("generated sql failed validation",
			zap.Int("attempt", attempt),
			zap.String("kind", string(kind)),
			zap.String("error", vres.Error))
	}

	// Column elimination: drop the columns the engine complained about
	// and revalidate.
	if currentSQL != "" && lastError != "" {
		if simplified := heuristicRepair(currentSQL, lastError); simplified != currentSQL {
			if vres := g.validator.Validate(ctx, simplified); vres.IsValid {
				out.SQL = simplified
				out.Suggestion = "Simplified query with problematic columns excluded"
				g.builder.AddHistory(prompt.HistoryEntry{
					NLQuery:       query,
					GeneratedSQL:  simplified,
					Suggestion:    out.Suggestion,
					WasSuccessful: true,
				})
				return out, nil
			}
		}
	}

	sql, suggestion := g.patternFallback(query)
	if sql != "SELECT 1;" {
		if vres := g.validator.Validate(ctx, sql); !vres.IsValid {
			g.log.Warn("pattern template failed validation",
				zap.String("error", vres.Error))
			sql, suggestion = "SELECT 1;", "Default fallback query"
		}
	}
	out.SQL = sql
	out.Suggestion = suggestion
	out.UsedFallback = true
	g.builder.AddHistory(prompt.HistoryEntry{
		NLQuery:       query,
		GeneratedSQL:  sql,
		Suggestion:    suggestion,
		WasSuccessful: sql != "SELECT 1;",
		ErrorContext:  lastError,
	})
	g.log.Info("falling back to pattern templates", zap.String("sql", sql))
	return out, nil
}

// call invokes the LLM with a short exponential backoff around transient
// failures.
func (g *Agent) call(ctx context.Context, promptText string, temperature float64) (string, error) {
	var response string
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(time.Second),
		backoff.WithMaxInterval(5*time.Second),
	), 2), ctx)

	err := backoff.Retry(func() error {
		var err error
		response, err = llms.GenerateFromSinglePrompt(ctx, g.llm, promptText,
			llms.WithTemperature(temperature),
			llms.WithMaxTokens(512),
		)
		return err
	}, policy)
	if err != nil {
		return "", err
	}
	return response, nil
}
