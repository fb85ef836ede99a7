// Package pipeline orchestrates the query-resolution stages: plan,
// retrieve, generate, validate, execute, summarize, with a bounded
// repair loop around validation and execution failures.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nl2sql/internal/executor"
	"nl2sql/internal/generator"
	"nl2sql/internal/planner"
	"nl2sql/internal/retriever"
	"nl2sql/internal/summarizer"
	"nl2sql/internal/validator"
)

// Result is the envelope returned to every caller, success or not.
type Result struct {
	Success             bool                    `json:"success"`
	Summary             string                  `json:"summary,omitempty"`
	Suggestions         []string                `json:"suggestions,omitempty"`
	SQL                 string                  `json:"sql,omitempty"`
	GeneratedSQL        string                  `json:"generated_sql,omitempty"`
	Table               []map[string]any        `json:"table,omitempty"`
	ExecutionMessage    string                  `json:"execution_message,omitempty"`
	Capabilities        []string                `json:"capabilities"`
	TablesUsed          []string                `json:"tables_used"`
	Clarifications      []planner.Clarification `json:"clarifications,omitempty"`
	FollowUpSuggestions []string                `json:"follow_up_suggestions,omitempty"`
	Error               string                  `json:"error,omitempty"`
	Diagnostics         *Diagnostics            `json:"diagnostics"`
}

// Pipeline wires the six stages together.
type Pipeline struct {
	planner    *planner.Agent
	retriever  *retriever.Agent
	generator  *generator.Agent
	validator  *validator.Validator
	executor   *executor.Agent
	summarizer *summarizer.Agent
	cfg        *Config
	log        *zap.Logger
}

// New assembles a pipeline from its stages.
func New(p *planner.Agent, r *retriever.Agent, g *generator.Agent,
	v *validator.Validator, e *executor.Agent, s *summarizer.Agent,
	cfg *Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		planner:    p,
		retriever:  r,
		generator:  g,
		validator:  v,
		executor:   e,
		summarizer: s,
		cfg:        cfg,
		log:        log,
	}
}

// Run resolves one natural-language query end to end. It always returns
// an envelope; clarifications are advisory and ride along the result
// rather than blocking it.
func (p *Pipeline) Run(ctx context.Context, query string, clarified map[string]any) *Result {
	requestID := uuid.NewString()
	diag := newDiagnostics(requestID)
	log := p.log.With(zap.String("request_id", requestID))
	startAll := time.Now()

	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}

	// Plan
	t0 := time.Now()
	plan := p.planner.Analyze(query)
	diag.TimingsMS["planning"] = time.Since(t0).Milliseconds()
	diag.ChosenTables = plan.Tables
	diag.DetectedCapabilities = plan.Capabilities

	log.Info("plan ready",
		zap.String("stage", "planning"),
		zap.Strings("tables", plan.Tables),
		zap.Strings("capabilities", plan.Capabilities),
		zap.Int64("duration_ms", diag.TimingsMS["planning"]))

	if err := ctx.Err(); err != nil {
		return p.cancelled(plan, diag)
	}

	// Retrieve
	t1 := time.Now()
	retrievalQuery := "tables: " + strings.Join(plan.Tables, " ") + " query: " + query
	rctx, rcancel := p.stageCtx(ctx)
	bundle := p.retriever.Fetch(rctx, retrievalQuery)
	rcancel()
	diag.TimingsMS["retrieval"] = time.Since(t1).Milliseconds()

	log.Info("schema context ready",
		zap.String("stage", "retrieval"),
		zap.Strings("tables_found", bundle.TablesFound),
		zap.Int64("duration_ms", diag.TimingsMS["retrieval"]))

	if err := ctx.Err(); err != nil {
		return p.cancelled(plan, diag)
	}

	genCtx := &generator.Context{
		DetectedTables: plan.Tables,
		Capabilities:   plan.Capabilities,
		SchemaContext:  bundle.SchemaContext,
		Clarified:      clarified,
	}

	// Generate
	t2 := time.Now()
	gctx, gcancel := p.stageCtx(ctx)
	gen, err := p.generator.Generate(gctx, query, genCtx)
	gcancel()
	diag.TimingsMS["generation"] = time.Since(t2).Milliseconds()
	if err != nil {
		if isContextErr(err) {
			return p.cancelled(plan, diag)
		}
		diag.TimingsMS["total"] = time.Since(startAll).Milliseconds()
		log.Error("generation failed", zap.Error(err))
		return p.failed(plan, diag, "", err.Error())
	}
	diag.GeneratedSQL = gen.SQL
	diag.PromptTokens += gen.PromptTokens
	diag.ResponseTokens += gen.ResponseTokens
	sql := gen.SQL

	log.Info("sql generated",
		zap.String("stage", "generation"),
		zap.Int("attempts", gen.Attempts),
		zap.Bool("used_fallback", gen.UsedFallback),
		zap.Int64("duration_ms", diag.TimingsMS["generation"]))

	var lastError string
	attempts := 0
	for attempts <= p.cfg.MaxRetries {
		if err := ctx.Err(); err != nil {
			return p.cancelled(plan, diag)
		}

		// Validate
		t3 := time.Now()
		vctx, vcancel := p.stageCtx(ctx)
		vres := p.validator.Validate(vctx, sql)
		vcancel()
		diag.TimingsMS["validation"] += time.Since(t3).Milliseconds()

		if !vres.IsValid {
			diag.ValidatorFailReasons = append(diag.ValidatorFailReasons, vres.Error)
			lastError = vres.Error
			attempts++
			diag.Retries = attempts
			if attempts > p.cfg.MaxRetries {
				break
			}
			log.Warn("validation failed, repairing",
				zap.String("stage", "validation"),
				zap.Int("attempt", attempts),
				zap.String("error", vres.Error))
			sql = p.repair(ctx, query, genCtx, sql, vres.Error, diag)
			continue
		}

		// Execute
		t4 := time.Now()
		ectx, ecancel := p.stageCtx(ctx)
		exec := p.executor.Run(ectx, sql, vres.IsValid)
		ecancel()
		diag.TimingsMS["execution"] += time.Since(t4).Milliseconds()

		if exec.Success {
			diag.FinalSQL = sql
			diag.Retries = attempts

			// Summarize
			t5 := time.Now()
			insight := p.summarizer.Summarize(query, exec)
			diag.TimingsMS["summarization"] = time.Since(t5).Milliseconds()
			diag.TimingsMS["total"] = time.Since(startAll).Milliseconds()

			log.Info("query resolved",
				zap.String("stage", "summarization"),
				zap.Int("rows", exec.RowCount),
				zap.Int("retries", attempts),
				zap.Int64("total_ms", diag.TimingsMS["total"]))

			return &Result{
				Success:             true,
				Summary:             insight.Summary,
				Suggestions:         insight.Suggestions,
				SQL:                 sql,
				GeneratedSQL:        diag.GeneratedSQL,
				Table:               exec.Rows,
				ExecutionMessage:    exec.Message,
				Capabilities:        plan.Capabilities,
				TablesUsed:          diag.ChosenTables,
				Clarifications:      plan.Clarifications,
				FollowUpSuggestions: plan.FollowUpSuggestions,
				Diagnostics:         diag,
			}
		}

		diag.ExecutorErrors = append(diag.ExecutorErrors, exec.Error)
		lastError = exec.Error
		attempts++
		diag.Retries = attempts
		if attempts > p.cfg.MaxRetries {
			break
		}
		log.Warn("execution failed, repairing",
			zap.String("stage", "execution"),
			zap.Int("attempt", attempts),
			zap.String("error", exec.Error))
		sql = p.repair(ctx, query, genCtx, sql, exec.Error, diag)
	}

	diag.TimingsMS["total"] = time.Since(startAll).Milliseconds()
	if lastError == "" {
		lastError = "Could not produce safe SQL"
	}

	log.Error("query failed after retries",
		zap.Int("retries", diag.Retries),
		zap.String("error", lastError))

	return p.failed(plan, diag, sql, lastError)
}

// failed builds the terminal failure envelope.
func (p *Pipeline) failed(plan *planner.Plan, diag *Diagnostics, sql, errMsg string) *Result {
	return &Result{
		Success:             false,
		Error:               errMsg,
		SQL:                 sql,
		GeneratedSQL:        diag.GeneratedSQL,
		Capabilities:        plan.Capabilities,
		TablesUsed:          diag.ChosenTables,
		Clarifications:      plan.Clarifications,
		FollowUpSuggestions: plan.FollowUpSuggestions,
		Diagnostics:         diag,
	}
}

// stageCtx derives a per-stage sub-budget from the request context so a
// single stalled stage cannot consume the whole request deadline.
func (p *Pipeline) stageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.StageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.cfg.StageTimeout)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// DryRun resolves a query up to validation: plan, retrieve, generate,
// validate, then compile the SQL through the engine's planner without
// executing it. Used by the batch tool to vet question sets cheaply.
func (p *Pipeline) DryRun(ctx context.Context, query string, clarified map[string]any) *Result {
	requestID := uuid.NewString()
	diag := newDiagnostics(requestID)
	log := p.log.With(zap.String("request_id", requestID))
	startAll := time.Now()

	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}

	plan := p.planner.Analyze(query)
	diag.ChosenTables = plan.Tables
	diag.DetectedCapabilities = plan.Capabilities

	if err := ctx.Err(); err != nil {
		return p.cancelled(plan, diag)
	}

	retrievalQuery := "tables: " + strings.Join(plan.Tables, " ") + " query: " + query
	rctx, rcancel := p.stageCtx(ctx)
	bundle := p.retriever.Fetch(rctx, retrievalQuery)
	rcancel()

	gctx, gcancel := p.stageCtx(ctx)
	gen, err := p.generator.Generate(gctx, query, &generator.Context{
		DetectedTables: plan.Tables,
		Capabilities:   plan.Capabilities,
		SchemaContext:  bundle.SchemaContext,
		Clarified:      clarified,
	})
	gcancel()
	if err != nil {
		if isContextErr(err) {
			return p.cancelled(plan, diag)
		}
		diag.TimingsMS["total"] = time.Since(startAll).Milliseconds()
		return p.failed(plan, diag, "", err.Error())
	}
	diag.GeneratedSQL = gen.SQL
	diag.PromptTokens += gen.PromptTokens
	diag.ResponseTokens += gen.ResponseTokens

	res := &Result{
		SQL:                 gen.SQL,
		GeneratedSQL:        gen.SQL,
		Capabilities:        plan.Capabilities,
		TablesUsed:          plan.Tables,
		Clarifications:      plan.Clarifications,
		FollowUpSuggestions: plan.FollowUpSuggestions,
		Diagnostics:         diag,
	}

	vctx, vcancel := p.stageCtx(ctx)
	vres := p.validator.Validate(vctx, gen.SQL)
	vcancel()
	if !vres.IsValid {
		diag.ValidatorFailReasons = append(diag.ValidatorFailReasons, vres.Error)
		res.Error = vres.Error
		diag.TimingsMS["total"] = time.Since(startAll).Milliseconds()
		return res
	}

	ectx, ecancel := p.stageCtx(ctx)
	err = p.executor.DryRun(ectx, gen.SQL)
	ecancel()
	if err != nil {
		diag.ExecutorErrors = append(diag.ExecutorErrors, err.Error())
		res.Error = err.Error()
		diag.TimingsMS["total"] = time.Since(startAll).Milliseconds()
		return res
	}

	diag.FinalSQL = gen.SQL
	diag.TimingsMS["total"] = time.Since(startAll).Milliseconds()
	res.Success = true

	log.Info("dry run passed",
		zap.String("sql", gen.SQL),
		zap.Int64("total_ms", diag.TimingsMS["total"]))

	return res
}

// repair asks the generator for a corrected statement; on cancellation
// or total failure the previous SQL is kept so the loop can account the
// final failure against it.
func (p *Pipeline) repair(ctx context.Context, query string, genCtx *generator.Context,
	prevSQL, hint string, diag *Diagnostics) string {

	genCtx.LastSQL = prevSQL
	rctx, rcancel := p.stageCtx(ctx)
	out, err := p.generator.Repair(rctx, query, genCtx, hint)
	rcancel()
	if err != nil {
		return prevSQL
	}
	diag.PromptTokens += out.PromptTokens
	diag.ResponseTokens += out.ResponseTokens
	return out.SQL
}

func (p *Pipeline) cancelled(plan *planner.Plan, diag *Diagnostics) *Result {
	return &Result{
		Success:      false,
		Error:        "cancelled",
		Capabilities: plan.Capabilities,
		TablesUsed:   plan.Tables,
		Diagnostics:  diag,
	}
}
