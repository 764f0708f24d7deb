package service

import (
	"strings"
	"unicode"

	"github.com/doqment/docqa-be/config"
	"github.com/doqment/docqa-be/types"
)

// ChunkerService splits extracted page text into overlapping, position-tagged
// chunks.
type ChunkerService struct {
	maxChunkSize int // Maximum size of each text chunk
	overlapSize  int // Size of overlap between chunks
}

// NewChunkerService creates a new chunker with configurable chunk sizes.
func NewChunkerService(cfg config.ChunkingConfig) *ChunkerService {
	return &ChunkerService{
		maxChunkSize: cfg.MaxChunkSize,
		overlapSize:  cfg.OverlapSize,
	}
}

// ChunkDocument splits every page of the document into chunks. Chunk indices
// are assigned from a single counter across the whole document, so they are
// globally ordered and usable as a position key for neighbor expansion.
// Pages with only whitespace contribute no chunks.
func (s *ChunkerService) ChunkDocument(doc *types.ExtractedDocument) []types.TextChunk {
	chunks := make([]types.TextChunk, 0)
	chunkIndex := 0
	for i := range doc.Pages {
		page := &doc.Pages[i]
		pageChunks := s.chunkPage(page, &chunkIndex)
		chunks = append(chunks, pageChunks...)
	}
	return chunks
}

func (s *ChunkerService) chunkPage(page *types.ExtractedPage, chunkIndex *int) []types.TextChunk {
	content := page.Content
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}

	var chunks []types.TextChunk

	emit := func(start, end int) {
		text := strings.TrimSpace(content[start:end])
		if text == "" {
			return
		}
		// Offsets of the trimmed text within the page content.
		chunkStart := start + strings.Index(content[start:end], text)
		chunkEnd := chunkStart + len(text)
		chunk := types.TextChunk{
			Content:     text,
			ChunkIndex:  *chunkIndex,
			PageNumber:  page.PageNumber,
			StartOffset: chunkStart,
			EndOffset:   chunkEnd,
			Positions:   s.positionsFor(page, chunkStart, chunkEnd),
		}
		*chunkIndex++
		chunks = append(chunks, chunk)
	}

	// A page that fits in one chunk is emitted whole.
	if len(trimmed) <= s.maxChunkSize {
		emit(0, len(content))
		return chunks
	}

	pos := skipWhitespace(content, 0)
	for pos < len(content) {
		end := pos + s.maxChunkSize
		if end >= len(content) {
			end = len(content)
		} else {
			// Snap the right edge back to a space so words are not
			// split, looking back at most maxChunkSize/4 characters.
			lookback := end - pos
			if lookback > s.maxChunkSize/4 {
				lookback = s.maxChunkSize / 4
			}
			for i := end - 1; i >= end-lookback; i-- {
				if content[i] == ' ' {
					end = i
					break
				}
			}
		}

		emit(pos, end)
		if end == len(content) {
			break
		}

		// Step forward by chunk length minus overlap; if overlap swallows
		// the whole chunk, advance by the full length so the loop always
		// terminates.
		step := (end - pos) - s.overlapSize
		if step <= 0 {
			step = end - pos
		}
		pos += step
		pos = skipWhitespace(content, pos)
	}

	return chunks
}

// positionsFor collects the page paragraphs whose character range overlaps
// the chunk's [start, end) range. A chunk with no overlapping paragraphs
// simply carries no position data.
func (s *ChunkerService) positionsFor(page *types.ExtractedPage, start, end int) []types.TextPosition {
	if len(page.Paragraphs) == 0 {
		return nil
	}
	var positions []types.TextPosition
	for _, para := range page.Paragraphs {
		paraStart := para.CharOffset
		paraEnd := para.CharOffset + para.CharLength
		if paraEnd > start && paraStart < end {
			positions = append(positions, types.TextPosition{
				PageNumber: page.PageNumber,
				Box:        para.Box,
				CharOffset: para.CharOffset,
				CharLength: para.CharLength,
				PageWidth:  page.Width,
				PageHeight: page.Height,
			})
		}
	}
	return positions
}

func skipWhitespace(s string, pos int) int {
	for pos < len(s) && unicode.IsSpace(rune(s[pos])) {
		pos++
	}
	return pos
}
