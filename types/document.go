package types

import "fmt"

// ExtractedDocument is the output of the document extraction stage: the full
// page-ordered text of one uploaded document, ready for chunking.
type ExtractedDocument struct {
	DocumentID string          `json:"document_id"`
	Pages      []ExtractedPage `json:"pages"`
}

// ExtractedPage holds the raw text of a single page. Width/Height are the
// physical page dimensions when the extractor reports them, zero otherwise.
type ExtractedPage struct {
	PageNumber int                  `json:"page_number"` // 1-based
	Content    string               `json:"content"`
	Width      float64              `json:"width,omitempty"`
	Height     float64              `json:"height,omitempty"`
	Paragraphs []ExtractedParagraph `json:"paragraphs,omitempty"`
}

// ExtractedParagraph is a sub-page text span with its bounding box. CharOffset
// and CharLength locate the span inside the page's Content string; the
// extractor guarantees these ranges are contiguous within the page.
type ExtractedParagraph struct {
	Content    string       `json:"content"`
	CharOffset int          `json:"char_offset"`
	CharLength int          `json:"char_length"`
	Box        *BoundingBox `json:"box,omitempty"`
}

// BoundingBox is a page-relative rectangle in physical page units,
// bottom-left origin.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextPosition is one highlightable span of a chunk on a page.
type TextPosition struct {
	PageNumber int          `json:"page_number"`
	Box        *BoundingBox `json:"box,omitempty"`
	CharOffset int          `json:"char_offset"`
	CharLength int          `json:"char_length"`
	PageWidth  float64      `json:"page_width,omitempty"`
	PageHeight float64      `json:"page_height,omitempty"`
}

// TextChunk is a bounded slice of one page's text, the atomic unit of
// embedding and retrieval. StartOffset/EndOffset are offsets into the source
// page content; ChunkIndex is document-global and zero-based.
type TextChunk struct {
	Content     string
	ChunkIndex  int
	PageNumber  int
	StartOffset int
	EndOffset   int
	Positions   []TextPosition
}

// DocumentChunk is the persisted/indexed unit: a TextChunk plus its
// embedding. Never mutated after indexing; re-indexing replaces by ID.
type DocumentChunk struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	ChunkIndex    int       `json:"chunk_index"`
	PageNumber    int       `json:"page_number"`
	Content       string    `json:"content"`
	ContentVector []float32 `json:"content_vector,omitempty"`
	PositionsJSON string    `json:"positions_json,omitempty"`
}

// ChunkID derives the stable index key for a chunk.
func ChunkID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", documentID, chunkIndex)
}

// ChunkSearchResult is one retrieval hit. Score is the index's fused
// relevance, higher is better, not bounded to [0,1].
type ChunkSearchResult struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float64       `json:"score"`
}
