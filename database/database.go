package database

import (
	"context"

	"github.com/doqment/docqa-be/types"
)

// SearchIndex defines the hybrid (keyword + vector) search store used for
// chunk indexing and retrieval.
type SearchIndex interface {
	// EnsureIndexExists idempotently creates the chunk index schema.
	EnsureIndexExists(ctx context.Context) error
	// IndexChunks upserts chunks by their stable ID. No-op on empty input.
	IndexChunks(ctx context.Context, chunks []types.DocumentChunk) error
	// HybridSearch runs a fused keyword+vector query filtered to one
	// document and returns up to topK results in descending relevance
	// order. Returned chunks never carry their vector.
	HybridSearch(ctx context.Context, queryText string, queryVector []float32, documentID string, topK int) ([]types.ChunkSearchResult, error)
	// FetchByChunkIndexes returns the document's chunks with the given
	// chunk indices, in one round trip.
	FetchByChunkIndexes(ctx context.Context, documentID string, indexes []int) ([]types.DocumentChunk, error)
	// DeleteDocument removes every chunk of a document.
	DeleteDocument(ctx context.Context, documentID string) error
}

// StatusStore persists the pollable per-document indexing status.
type StatusStore interface {
	UpsertStatus(ctx context.Context, status *types.IndexingJobStatus) error
	GetStatus(ctx context.Context, documentID string) (*types.IndexingJobStatus, error)
	DeleteStatus(ctx context.Context, documentID string) error
}

// SessionStore persists chat sessions with append-only message history.
type SessionStore interface {
	CreateSession(ctx context.Context, session *types.ChatSession) error
	GetSession(ctx context.Context, id string) (*types.ChatSession, error)
	ListSessions(ctx context.Context, documentID string) ([]types.ChatSession, error)
	AppendMessages(ctx context.Context, id string, messages ...types.ChatMessage) error
}
