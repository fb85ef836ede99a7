package pipeline

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"nl2sql/internal/adapter"
	"nl2sql/internal/executor"
	"nl2sql/internal/generator"
	"nl2sql/internal/metadata"
	"nl2sql/internal/planner"
	"nl2sql/internal/prompt"
	"nl2sql/internal/retriever"
	"nl2sql/internal/schemaindex"
	"nl2sql/internal/summarizer"
	"nl2sql/internal/validator"
)

// Assemble builds a fully wired pipeline from configuration. The LLM and
// vector index may be passed in (tests inject fakes); pass nil to have
// them constructed from the config. A nil index degrades the retriever
// to its metadata fallback.
func Assemble(cfg *Config, llm llms.Model, index schemaindex.Index, log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}

	store, err := metadata.Load(cfg.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	graph, err := metadata.BuildGraph(store)
	if err != nil {
		return nil, fmt.Errorf("build fk graph: %w", err)
	}

	if llm == nil {
		llm, err = openai.New(
			openai.WithModel(cfg.LLM.Model),
			openai.WithToken(cfg.LLM.Token),
			openai.WithBaseURL(cfg.LLM.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("create llm client: %w", err)
		}
	}

	if index == nil && cfg.VectorStore.URL != "" {
		index, err = schemaindex.NewChroma(cfg.VectorStore.URL, cfg.VectorStore.Namespace,
			openai.WithToken(cfg.LLM.Token),
			openai.WithBaseURL(cfg.LLM.BaseURL),
			openai.WithEmbeddingModel(cfg.LLM.EmbeddingModel),
		)
		if err != nil {
			log.Warn("schema index unavailable, retriever will use metadata fallback",
				zap.Error(err))
			index = nil
		}
	}

	newConn := func() adapter.DBAdapter {
		conn, err := adapter.New(&adapter.Config{
			Type:     cfg.Database.Type,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Name,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			FilePath: cfg.Database.Path,
			ReadOnly: true,
		})
		if err != nil {
			// Config.Type was checked below at assembly time, so this
			// only fires if the config mutates afterwards.
			panic(err)
		}
		return conn
	}
	if _, err := adapter.New(&adapter.Config{Type: cfg.Database.Type}); err != nil {
		return nil, err
	}

	exec := executor.New(newConn, cfg.SQLRowLimit, log)
	valid := validator.New(store, exec, log)
	builder := prompt.NewBuilder(store, graph, cfg.MaxHistory, log)
	gen := generator.New(llm, builder, valid, store, cfg.MaxLLMAttempts, log)

	return New(
		planner.New(store, log),
		retriever.New(index, store, cfg.TopKSchema, log),
		gen,
		valid,
		exec,
		summarizer.New(store, log),
		cfg,
		log,
	), nil
}
