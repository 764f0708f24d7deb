package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/doqment/docqa-be/database"
	"github.com/doqment/docqa-be/types"
)

// Neighbor chunks pulled in by context expansion are scored relative to the
// nearest real match. The constants are tunable heuristics, not correctness
// properties.
const (
	NeighborScoreDecay = 0.2
	NeighborScoreFloor = 0.1
)

// RetrieverService executes hybrid queries against the search index and
// expands each hit with its neighboring chunks so that answers spanning a
// chunk boundary keep their context.
type RetrieverService struct {
	index database.SearchIndex
}

func NewRetrieverService(index database.SearchIndex) *RetrieverService {
	return &RetrieverService{index: index}
}

// Search runs the hybrid query and, when contextWindow > 0, fetches every
// chunk whose index lies within contextWindow of a hit in one follow-up
// round trip. Original matches keep their fused score; pure-neighbor chunks
// get a diminished score based on their distance to the nearest match. The
// expanded result is ordered by chunk index.
func (s *RetrieverService) Search(ctx context.Context, queryText string, queryVector []float32, documentID string, topK, contextWindow int) ([]types.ChunkSearchResult, error) {
	matches, err := s.index.HybridSearch(ctx, queryText, queryVector, documentID, topK)
	if err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}
	for i := range matches {
		matches[i].Chunk.ContentVector = nil
	}
	if contextWindow <= 0 || len(matches) == 0 {
		return matches, nil
	}

	matchScores := make(map[int]float64, len(matches))
	needed := make(map[int]bool)
	for _, m := range matches {
		idx := m.Chunk.ChunkIndex
		matchScores[idx] = m.Score
		for i := idx - contextWindow; i <= idx+contextWindow; i++ {
			if i >= 0 {
				needed[i] = true
			}
		}
	}

	indexes := make([]int, 0, len(needed))
	for idx := range needed {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	chunks, err := s.index.FetchByChunkIndexes(ctx, documentID, indexes)
	if err != nil {
		return nil, fmt.Errorf("context expansion fetch failed: %w", err)
	}

	results := make([]types.ChunkSearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		chunk.ContentVector = nil
		score, isMatch := matchScores[chunk.ChunkIndex]
		if !isMatch {
			score = neighborScore(chunk.ChunkIndex, matches, contextWindow)
		}
		results = append(results, types.ChunkSearchResult{Chunk: chunk, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Chunk.ChunkIndex < results[j].Chunk.ChunkIndex
	})
	return results, nil
}

// neighborScore diminishes the nearest match's score by the chunk-index
// distance: nearest * (1 - decay*distance), with a small floor when no match
// lies within the window.
func neighborScore(chunkIndex int, matches []types.ChunkSearchResult, contextWindow int) float64 {
	bestDistance := -1
	bestScore := 0.0
	for _, m := range matches {
		distance := chunkIndex - m.Chunk.ChunkIndex
		if distance < 0 {
			distance = -distance
		}
		if bestDistance < 0 || distance < bestDistance {
			bestDistance = distance
			bestScore = m.Score
		}
	}
	if bestDistance < 0 || bestDistance > contextWindow {
		return NeighborScoreFloor
	}
	return bestScore * (1 - NeighborScoreDecay*float64(bestDistance))
}
