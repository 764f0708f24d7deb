package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/doqment/docqa-be/database"
	"github.com/doqment/docqa-be/types"
)

// IndexingService sequences one document's indexing run: extraction,
// chunking, embedding and index write, recording a pollable status at every
// stage transition. Chunk IDs are stable, so re-running a partially failed
// document is safe.
type IndexingService struct {
	extractor Extractor
	chunker   *ChunkerService
	embedder  *EmbeddingService
	index     database.SearchIndex
	statuses  database.StatusStore
}

func NewIndexingService(
	extractor Extractor,
	chunker *ChunkerService,
	embedder *EmbeddingService,
	index database.SearchIndex,
	statuses database.StatusStore,
) *IndexingService {
	return &IndexingService{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		statuses:  statuses,
	}
}

// IndexDocument runs the full pipeline for one stored document file. Any
// failure aborts the run and records a terminal error status; cancellation
// aborts without recording further progress.
func (s *IndexingService) IndexDocument(ctx context.Context, documentID, filePath string) error {
	if err := s.setStage(ctx, documentID, types.StageExtracting, 10, "Extracting document text"); err != nil {
		return err
	}
	doc, err := s.extractor.Extract(ctx, filePath, documentID)
	if err != nil {
		return s.fail(ctx, documentID, fmt.Errorf("extraction failed: %w", err))
	}

	if err := s.setStage(ctx, documentID, types.StageChunking, 30, "Chunking extracted text"); err != nil {
		return err
	}
	chunks := s.chunker.ChunkDocument(doc)
	if len(chunks) == 0 {
		return s.fail(ctx, documentID, fmt.Errorf("document contains no extractable text"))
	}
	log.Printf("Document %s: %d chunks across %d pages", documentID, len(chunks), len(doc.Pages))

	if err := s.setStage(ctx, documentID, types.StageEmbedding, 50, fmt.Sprintf("Embedding %d chunks", len(chunks))); err != nil {
		return err
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := s.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return s.fail(ctx, documentID, fmt.Errorf("embedding failed: %w", err))
	}

	if err := s.setStage(ctx, documentID, types.StageIndexing, 80, "Writing chunks to the search index"); err != nil {
		return err
	}
	if err := s.index.EnsureIndexExists(ctx); err != nil {
		return s.fail(ctx, documentID, fmt.Errorf("failed to ensure index: %w", err))
	}
	docChunks, err := buildDocumentChunks(documentID, chunks, vectors)
	if err != nil {
		return s.fail(ctx, documentID, err)
	}
	if err := s.index.IndexChunks(ctx, docChunks); err != nil {
		return s.fail(ctx, documentID, fmt.Errorf("index write failed: %w", err))
	}

	return s.setStage(ctx, documentID, types.StageReady, 100, "Document is ready for questions")
}

// buildDocumentChunks pairs each chunk with its vector and serializes the
// position payload once, at write time.
func buildDocumentChunks(documentID string, chunks []types.TextChunk, vectors [][]float32) ([]types.DocumentChunk, error) {
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("vector count mismatch: got %d, want %d", len(vectors), len(chunks))
	}
	docChunks := make([]types.DocumentChunk, 0, len(chunks))
	for i, chunk := range chunks {
		positionsJSON := ""
		if len(chunk.Positions) > 0 {
			data, err := json.Marshal(chunk.Positions)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize positions for chunk %d: %v", chunk.ChunkIndex, err)
			}
			positionsJSON = string(data)
		}
		docChunks = append(docChunks, types.DocumentChunk{
			ID:            types.ChunkID(documentID, chunk.ChunkIndex),
			DocumentID:    documentID,
			ChunkIndex:    chunk.ChunkIndex,
			PageNumber:    chunk.PageNumber,
			Content:       chunk.Content,
			ContentVector: vectors[i],
			PositionsJSON: positionsJSON,
		})
	}
	return docChunks, nil
}

func (s *IndexingService) setStage(ctx context.Context, documentID string, stage types.IndexingStage, progress int, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.statuses.UpsertStatus(ctx, &types.IndexingJobStatus{
		DocumentID: documentID,
		Stage:      stage,
		Progress:   progress,
		Message:    message,
	})
}

// fail records the terminal error status unless the run was cancelled, in
// which case the last durably written stage stays as the caller-visible
// state.
func (s *IndexingService) fail(ctx context.Context, documentID string, runErr error) error {
	log.Printf("Indexing document %s failed: %v", documentID, runErr)
	if errors.Is(runErr, context.Canceled) || ctx.Err() != nil {
		return runErr
	}
	status := &types.IndexingJobStatus{
		DocumentID: documentID,
		Stage:      types.StageError,
		Progress:   0,
		Message:    "Indexing failed",
		Error:      runErr.Error(),
	}
	if err := s.statuses.UpsertStatus(ctx, status); err != nil {
		log.Printf("Failed to record error status for document %s: %v", documentID, err)
	}
	return runErr
}
