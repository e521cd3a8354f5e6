// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package actions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-openapi/strfmt"
	openai "github.com/sashabaranov/go-openai"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/AleutianDrift/services/driftwatch/datatypes"
)

// defaultMaxDocuments bounds one reindex pass.
const defaultMaxDocuments = 1000

// documentClass is the Weaviate class holding the RAG corpus.
const documentClass = "Document"

// Document is one corpus entry due for re-embedding.
type Document struct {
	ID      string
	Content string
	Source  string
}

// DocumentIndex abstracts the vector store the reindexer refreshes.
// The production implementation is Weaviate; tests substitute fakes.
type DocumentIndex interface {
	// FetchStale returns up to limit documents whose embeddings predate
	// the last index refresh.
	FetchStale(ctx context.Context, limit int) ([]Document, error)

	// UpdateVectors re-imports the documents with their new vectors and
	// returns how many succeeded.
	UpdateVectors(ctx context.Context, docs []Document, vectors [][]float32) (int, error)
}

// Embedder turns document text into embedding vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Reindexer re-embeds stale documents and writes the fresh vectors back to
// the vector store. Dispatched when embedding drift is detected: the query
// distribution has moved, so the corpus index is refreshed against it.
//
// Reindexing is idempotent: re-importing a document under its existing ID
// overwrites the previous object, so a repeated run converges to the same
// state.
type Reindexer struct {
	index        DocumentIndex
	embedder     Embedder
	maxDocuments int
	costs        CostRecorder
	logger       *slog.Logger
}

var _ Dispatcher = (*Reindexer)(nil)

// NewReindexer builds the reindex dispatcher. maxDocuments <= 0 selects
// the default bound of 1000 documents per pass.
func NewReindexer(index DocumentIndex, embedder Embedder, maxDocuments int, costs CostRecorder, logger *slog.Logger) *Reindexer {
	if maxDocuments <= 0 {
		maxDocuments = defaultMaxDocuments
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reindexer{index: index, embedder: embedder, maxDocuments: maxDocuments, costs: costs, logger: logger}
}

func (r *Reindexer) Action() datatypes.Action {
	return datatypes.ActionReindexDocuments
}

// Execute fetches stale documents, generates new embeddings, and updates
// the vector store in one batch.
func (r *Reindexer) Execute(ctx context.Context) (map[string]any, error) {
	r.logger.Info("starting document re-indexing")

	docs, err := r.index.FetchStale(ctx, r.maxDocuments)
	if err != nil {
		return nil, fmt.Errorf("fetch stale documents: %w", err)
	}
	if len(docs) == 0 {
		r.logger.Info("no documents need reindexing")
		return map[string]any{"documents_processed": 0}, nil
	}

	texts := make([]string, len(docs))
	textBytes := 0
	for i, doc := range docs {
		texts[i] = doc.Content
		textBytes += len(doc.Content)
	}
	vectors, err := r.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}
	// The embedding call was billed even if the write below fails.
	if r.costs != nil {
		r.costs(estimatedCostUSD(textBytes, embeddingPricePerKTokens))
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	processed, err := r.index.UpdateVectors(ctx, docs, vectors)
	if err != nil {
		return nil, fmt.Errorf("update vector store: %w", err)
	}

	r.logger.Info("reindexing complete", "documents_processed", processed)
	return map[string]any{"documents_processed": processed}, nil
}

// =============================================================================
// Weaviate-backed DocumentIndex
// =============================================================================

// WeaviateIndex is the production DocumentIndex over a Weaviate instance.
type WeaviateIndex struct {
	client *weaviate.Client
	logger *slog.Logger
}

var _ DocumentIndex = (*WeaviateIndex)(nil)

// NewWeaviateIndex wraps an existing Weaviate client.
func NewWeaviateIndex(client *weaviate.Client, logger *slog.Logger) *WeaviateIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeaviateIndex{client: client, logger: logger}
}

// FetchStale pulls documents from the Document class, oldest index
// timestamp first, up to limit.
func (w *WeaviateIndex) FetchStale(ctx context.Context, limit int) ([]Document, error) {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
	}

	result, err := w.client.GraphQL().Get().
		WithClassName(documentClass).
		WithFields(fields...).
		WithSort(graphql.Sort{Path: []string{"indexed_at"}, Order: graphql.Asc}).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate query failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate query error: %s", result.Errors[0].Message)
	}

	raw, ok := result.Data["Get"].(map[string]any)
	if !ok {
		return nil, nil
	}
	items, ok := raw[documentClass].([]any)
	if !ok {
		return nil, nil
	}

	docs := make([]Document, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		doc := Document{}
		if content, ok := obj["content"].(string); ok {
			doc.Content = content
		}
		if source, ok := obj["source"].(string); ok {
			doc.Source = source
		}
		if additional, ok := obj["_additional"].(map[string]any); ok {
			if id, ok := additional["id"].(string); ok {
				doc.ID = id
			}
		}
		if doc.ID == "" || doc.Content == "" {
			w.logger.Warn("skipping malformed document object", "source", doc.Source)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// UpdateVectors batch re-imports the documents under their existing IDs
// with the new vectors. Per-item failures are logged and excluded from the
// processed count; they do not fail the batch.
func (w *WeaviateIndex) UpdateVectors(ctx context.Context, docs []Document, vectors [][]float32) (int, error) {
	objects := make([]*models.Object, len(docs))
	now := time.Now().UnixMilli()
	for i, doc := range docs {
		objects[i] = &models.Object{
			Class:  documentClass,
			ID:     strfmt.UUID(doc.ID),
			Vector: vectors[i],
			Properties: map[string]interface{}{
				"content":    doc.Content,
				"source":     doc.Source,
				"indexed_at": now,
			},
		}
	}

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("weaviate batch import failed: %w", err)
	}

	processed := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			processed++
			continue
		}
		if item.Result != nil && item.Result.Errors != nil {
			for _, errItem := range item.Result.Errors.Error {
				w.logger.Warn("weaviate batch item failed", "error", errItem.Message)
			}
		}
	}
	return processed, nil
}

// =============================================================================
// OpenAI-backed Embedder
// =============================================================================

// OpenAIEmbedder generates embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder builds an embedder. An empty model selects
// text-embedding-ada-002.
func NewOpenAIEmbedder(client *openai.Client, model openai.EmbeddingModel) *OpenAIEmbedder {
	if model == "" {
		model = openai.AdaEmbeddingV2
	}
	return &OpenAIEmbedder{client: client, model: model}
}

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}
