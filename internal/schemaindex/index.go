// Package schemaindex provides semantic lookup of schema description
// chunks. Chunks are ingested into a Chroma collection out of band; this
// package only queries.
package schemaindex

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/tmc/langchaingo/vectorstores/chroma"
)

// Chunk is one retrieved schema description with its source table.
type Chunk struct {
	Text  string
	Table string
}

// Index answers similarity queries over the schema collection.
type Index interface {
	Query(ctx context.Context, text string, k int) ([]Chunk, error)
}

// VectorIndex adapts a langchaingo vector store to the Index interface.
type VectorIndex struct {
	store vectorstores.VectorStore
}

// NewVector wraps an existing vector store.
func NewVector(store vectorstores.VectorStore) *VectorIndex {
	return &VectorIndex{store: store}
}

// NewChroma connects to a Chroma server and embeds queries with the
// OpenAI embeddings endpoint.
func NewChroma(chromaURL, namespace string, opts ...openai.Option) (*VectorIndex, error) {
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create embeddings client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	store, err := chroma.New(
		chroma.WithChromaURL(chromaURL),
		chroma.WithNameSpace(namespace),
		chroma.WithEmbedder(embedder),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to chroma: %w", err)
	}
	return &VectorIndex{store: store}, nil
}

// Query returns the top-k chunks most similar to text.
func (v *VectorIndex) Query(ctx context.Context, text string, k int) ([]Chunk, error) {
	docs, err := v.store.SimilaritySearch(ctx, text, k)
	if err != nil {
		return nil, err
	}
	return fromDocuments(docs), nil
}

func fromDocuments(docs []schema.Document) []Chunk {
	chunks := make([]Chunk, 0, len(docs))
	for _, doc := range docs {
		c := Chunk{Text: doc.PageContent}
		if t, ok := doc.Metadata["table"].(string); ok {
			c.Table = t
		}
		chunks = append(chunks, c)
	}
	return chunks
}
