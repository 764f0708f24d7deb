package database

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/doqment/docqa-be/config"
	"github.com/doqment/docqa-be/types"
)

const BATCH_SIZE = 200

var (
	vTrue  = true
	vFalse = false

	CHUNK_CLASS        = "DocumentChunk"
	CHUNK_CLASS_OBJECT = &models.Class{
		Class: CHUNK_CLASS,
		Properties: []*models.Property{
			{Name: "chunkId", DataType: []string{"text"}, IndexFilterable: &vTrue, IndexSearchable: &vFalse},
			{Name: "documentId", DataType: []string{"text"}, IndexFilterable: &vTrue, IndexSearchable: &vFalse},
			{Name: "chunkIndex", DataType: []string{"int"}, IndexFilterable: &vTrue},
			{Name: "pageNumber", DataType: []string{"int"}, IndexFilterable: &vTrue},
			{Name: "content", DataType: []string{"text"}, IndexSearchable: &vTrue, Tokenization: "word"},
			{Name: "positionsJson", DataType: []string{"text"}, IndexFilterable: &vFalse, IndexSearchable: &vFalse},
		},
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]interface{}{
			"distance":       "cosine",
			"maxConnections": 4,
			"efConstruction": 400,
			"ef":             500,
		},
	}
)

// WeaviateIndex implements SearchIndex on a Weaviate instance. Vectors are
// supplied by the embedding service; the class carries no vectorizer module.
type WeaviateIndex struct {
	client *weaviate.Client
}

func NewWeaviateIndex(cfg config.WeaviateConfig) (*WeaviateIndex, error) {
	var scheme string
	if strings.Contains(cfg.Host, "https") {
		scheme = "https"
	} else {
		scheme = "http"
	}
	host := strings.TrimPrefix(cfg.Host, scheme+"://")
	clientCfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		clientCfg.AuthConfig = auth.ApiKey{
			Value: cfg.APIKey,
		}
	}
	client, err := weaviate.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %v", err)
	}
	return &WeaviateIndex{client: client}, nil
}

// EnsureIndexExists creates the DocumentChunk class if it is not present.
// Safe to call on every startup and before every indexing run.
func (s *WeaviateIndex) EnsureIndexExists(ctx context.Context) error {
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema: %v", err)
	}
	for _, class := range schema.Classes {
		if class.Class == CHUNK_CLASS {
			return nil
		}
	}
	if err := s.client.Schema().ClassCreator().WithClass(CHUNK_CLASS_OBJECT).Do(ctx); err != nil {
		return fmt.Errorf("failed to create %s class: %v", CHUNK_CLASS, err)
	}
	return nil
}

// ReInit drops and recreates the chunk class, wiping all indexed chunks.
func (s *WeaviateIndex) ReInit(ctx context.Context) error {
	err := s.client.Schema().ClassDeleter().WithClassName(CHUNK_CLASS).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete %s class: %v", CHUNK_CLASS, err)
	}
	if err := s.client.Schema().ClassCreator().WithClass(CHUNK_CLASS_OBJECT).Do(ctx); err != nil {
		return fmt.Errorf("failed to create %s class: %v", CHUNK_CLASS, err)
	}
	return nil
}

// chunkObjectID maps the stable chunk key to a deterministic Weaviate object
// UUID so that re-indexing the same chunk replaces instead of duplicating.
func chunkObjectID(chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String())
}

func (s *WeaviateIndex) IndexChunks(ctx context.Context, chunks []types.DocumentChunk) error {
	total := len(chunks)
	if total == 0 {
		return nil
	}
	for i := 0; i < total; i += BATCH_SIZE {
		end := i + BATCH_SIZE
		if end > total {
			end = total
		}

		batcher := s.client.Batch().ObjectsBatcher()
		for j := i; j < end; j++ {
			properties := map[string]interface{}{
				"chunkId":       chunks[j].ID,
				"documentId":    chunks[j].DocumentID,
				"chunkIndex":    chunks[j].ChunkIndex,
				"pageNumber":    chunks[j].PageNumber,
				"content":       chunks[j].Content,
				"positionsJson": chunks[j].PositionsJSON,
			}
			batcher = batcher.WithObjects(&models.Object{
				Class:      CHUNK_CLASS,
				ID:         chunkObjectID(chunks[j].ID),
				Properties: properties,
				Vector:     chunks[j].ContentVector,
			})
		}

		resp, err := batcher.Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to index batch %d-%d: %v", i, end, err)
		}
		for _, obj := range resp {
			if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
				return fmt.Errorf("failed to index chunk %v: %s", obj.ID, obj.Result.Errors.Error[0].Message)
			}
		}
		log.Printf("Indexed batch %d-%d of %d chunks", i, end, total)
	}
	return nil
}

func chunkFields() []graphql.Field {
	return []graphql.Field{
		{Name: "chunkId"},
		{Name: "documentId"},
		{Name: "chunkIndex"},
		{Name: "pageNumber"},
		{Name: "content"},
		{Name: "positionsJson"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}
}

func documentFilter(documentID string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{"documentId"}).
		WithOperator(filters.Equal).
		WithValueText(documentID)
}

// HybridSearch combines BM25 keyword relevance over content with
// nearest-neighbor similarity over the chunk vectors; Weaviate fuses the two
// rankings into the returned score.
func (s *WeaviateIndex) HybridSearch(ctx context.Context, queryText string, queryVector []float32, documentID string, topK int) ([]types.ChunkSearchResult, error) {
	hybrid := s.client.GraphQL().HybridArgumentBuilder().
		WithQuery(queryText).
		WithVector(queryVector)

	result, err := s.client.GraphQL().Get().
		WithClassName(CHUNK_CLASS).
		WithFields(chunkFields()...).
		WithHybrid(hybrid).
		WithWhere(documentFilter(documentID)).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("hybrid search failed: %v", err)
	}
	if result.Errors != nil {
		return nil, fmt.Errorf("hybrid search failed: %v", result.Errors[0].Message)
	}
	return parseChunkResults(result.Data), nil
}

// FetchByChunkIndexes fetches the document's chunks with the given indices in
// a single filtered query (documentId AND (chunkIndex == i OR ...)).
func (s *WeaviateIndex) FetchByChunkIndexes(ctx context.Context, documentID string, indexes []int) ([]types.DocumentChunk, error) {
	if len(indexes) == 0 {
		return nil, nil
	}

	operands := make([]*filters.WhereBuilder, 0, len(indexes))
	for _, idx := range indexes {
		operands = append(operands, filters.Where().
			WithPath([]string{"chunkIndex"}).
			WithOperator(filters.Equal).
			WithValueInt(int64(idx)))
	}
	where := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			documentFilter(documentID),
			filters.Where().WithOperator(filters.Or).WithOperands(operands),
		})

	result, err := s.client.GraphQL().Get().
		WithClassName(CHUNK_CLASS).
		WithFields(chunkFields()...).
		WithWhere(where).
		WithLimit(len(indexes)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("chunk fetch failed: %v", err)
	}
	if result.Errors != nil {
		return nil, fmt.Errorf("chunk fetch failed: %v", result.Errors[0].Message)
	}

	results := parseChunkResults(result.Data)
	chunks := make([]types.DocumentChunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, r.Chunk)
	}
	return chunks, nil
}

func (s *WeaviateIndex) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(CHUNK_CLASS).
		WithWhere(documentFilter(documentID)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete chunks for document %s: %v", documentID, err)
	}
	return nil
}

// Helper functions

func parseChunkResults(data map[string]models.JSONObject) []types.ChunkSearchResult {
	results := make([]types.ChunkSearchResult, 0)
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return results
	}
	items, ok := get[CHUNK_CLASS].([]interface{})
	if !ok {
		return results
	}
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		chunk := types.DocumentChunk{
			ID:            parseString(obj["chunkId"]),
			DocumentID:    parseString(obj["documentId"]),
			ChunkIndex:    parseInt(obj["chunkIndex"]),
			PageNumber:    parseInt(obj["pageNumber"]),
			Content:       parseString(obj["content"]),
			PositionsJSON: parseString(obj["positionsJson"]),
		}
		score := 0.0
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			score = parseScore(additional["score"])
		}
		results = append(results, types.ChunkSearchResult{Chunk: chunk, Score: score})
	}
	return results
}

func parseString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func parseInt(v interface{}) int {
	f, _ := v.(float64)
	return int(f)
}

// parseScore handles the hybrid score coming back as either a GraphQL string
// or a number.
func parseScore(v interface{}) float64 {
	switch s := v.(type) {
	case float64:
		return s
	case string:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}
