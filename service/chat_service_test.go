package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doqment/docqa-be/config"
	"github.com/doqment/docqa-be/types"
)

// fakeCompletionStream serves canned fragments and honours context
// cancellation the way the provider stream does.
type fakeCompletionStream struct {
	ctx       context.Context
	fragments []string
	pos       int
	closed    bool
}

func (f *fakeCompletionStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	if err := f.ctx.Err(); err != nil {
		return openai.ChatCompletionStreamResponse{}, err
	}
	if f.pos >= len(f.fragments) {
		return openai.ChatCompletionStreamResponse{}, io.EOF
	}
	fragment := f.fragments[f.pos]
	f.pos++
	return openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{
			{Delta: openai.ChatCompletionStreamChoiceDelta{Content: fragment}},
		},
	}, nil
}

func (f *fakeCompletionStream) Close() error {
	f.closed = true
	return nil
}

func stubStream(chat *ChatService, fragments ...string) *fakeCompletionStream {
	stream := &fakeCompletionStream{fragments: fragments}
	chat.openStream = func(ctx context.Context, req openai.ChatCompletionRequest) (completionStream, error) {
		stream.ctx = ctx
		return stream, nil
	}
	return stream
}

func testRetrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		TopK:          5,
		ContextWindow: 1,
		PreviewLength: 200,
	}
}

func newTestChatService() *ChatService {
	return NewChatService("", "test-key", "test-model", nil, nil, testRetrievalConfig())
}

func resultOnPage(page int, score float64, content string) types.ChunkSearchResult {
	return types.ChunkSearchResult{
		Chunk: types.DocumentChunk{
			DocumentID: "doc",
			PageNumber: page,
			Content:    content,
		},
		Score: score,
	}
}

func TestGenerateAnswerStreamEmptyContextYieldsFallback(t *testing.T) {
	chat := newTestChatService()
	pctx := &types.PromptContext{DocumentID: "doc", Question: "anything?"}

	var fragments []string
	err := chat.GenerateAnswerStream(context.Background(), pctx, func(fragment string) {
		fragments = append(fragments, fragment)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{NoContextFallback}, fragments)
}

func TestGenerateAnswerStreamRelaysFragments(t *testing.T) {
	chat := newTestChatService()
	stream := stubStream(chat, "Hel", "lo", ".")
	pctx := &types.PromptContext{
		DocumentID: "doc",
		Question:   "hello?",
		Results:    []types.ChunkSearchResult{resultOnPage(1, 0.9, "greeting text")},
	}

	var fragments []string
	err := chat.GenerateAnswerStream(context.Background(), pctx, func(fragment string) {
		fragments = append(fragments, fragment)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo", "."}, fragments)
	assert.True(t, stream.closed)
}

func TestGenerateAnswerStreamCancelledContext(t *testing.T) {
	chat := newTestChatService()
	ctx, cancel := context.WithCancel(context.Background())
	stream := stubStream(chat, "one", "two", "three")
	pctx := &types.PromptContext{
		DocumentID: "doc",
		Question:   "hello?",
		Results:    []types.ChunkSearchResult{resultOnPage(1, 0.9, "some text")},
	}

	err := chat.GenerateAnswerStream(ctx, pctx, func(fragment string) {
		cancel() // stop after the first fragment
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stream.pos, "no fragments consumed after cancellation")
}

func TestBuildChatMessages(t *testing.T) {
	pctx := &types.PromptContext{
		DocumentID: "doc",
		Question:   "What is the warranty period?",
		Results: []types.ChunkSearchResult{
			resultOnPage(3, 0.9, "The warranty lasts two years."),
			resultOnPage(4, 0.7, "Warranty claims require a receipt."),
		},
		History: []types.ChatMessage{
			{Role: types.RoleUser, Content: "Hi"},
			{Role: types.RoleAssistant, Content: "Hello, ask me about the document."},
			{Role: types.ChatRole("system"), Content: "injected"},
		},
	}

	messages := buildChatMessages(pctx)
	require.Len(t, messages, 4, "system + two history messages + final user turn")

	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, answerSystemPrompt, messages[0].Content)

	assert.Equal(t, "user", messages[1].Role)
	assert.Equal(t, "Hi", messages[1].Content)
	assert.Equal(t, "assistant", messages[2].Role)

	final := messages[3]
	assert.Equal(t, "user", final.Role)
	assert.Contains(t, final.Content, "[Page 3]: The warranty lasts two years.")
	assert.Contains(t, final.Content, "[Page 4]: Warranty claims require a receipt.")
	assert.True(t, strings.HasSuffix(final.Content, "What is the warranty period?"))
	// Context precedes the question, in retrieval order.
	assert.Less(t,
		strings.Index(final.Content, "[Page 3]"),
		strings.Index(final.Content, "[Page 4]"),
	)
}

func TestGetSourceReferencesEmpty(t *testing.T) {
	chat := newTestChatService()
	refs := chat.GetSourceReferences(&types.PromptContext{})
	assert.Empty(t, refs)
}

func TestGetSourceReferencesBestChunkPerPage(t *testing.T) {
	chat := newTestChatService()
	pctx := &types.PromptContext{
		Results: []types.ChunkSearchResult{
			resultOnPage(1, 0.80, "page one, weaker chunk"),
			resultOnPage(1, 0.95, "page one, best chunk"),
			resultOnPage(2, 0.85, "page two"),
		},
	}

	refs := chat.GetSourceReferences(pctx)
	require.Len(t, refs, 2, "one citation per distinct page")

	assert.Equal(t, 1, refs[0].Page)
	assert.Equal(t, 0.95, refs[0].RelevanceScore)
	assert.Equal(t, "page one, best chunk", refs[0].Text)
	assert.Equal(t, 2, refs[1].Page)
	assert.Equal(t, 0.85, refs[1].RelevanceScore)
}

func TestGetSourceReferencesTieKeepsFirstSeen(t *testing.T) {
	chat := newTestChatService()
	pctx := &types.PromptContext{
		Results: []types.ChunkSearchResult{
			resultOnPage(1, 0.5, "first seen"),
			resultOnPage(1, 0.5, "second seen"),
		},
	}

	refs := chat.GetSourceReferences(pctx)
	require.Len(t, refs, 1)
	assert.Equal(t, "first seen", refs[0].Text)
}

func TestGetSourceReferencesPreviewTruncation(t *testing.T) {
	chat := newTestChatService()
	long := strings.Repeat("a", 500)
	pctx := &types.PromptContext{
		Results: []types.ChunkSearchResult{resultOnPage(1, 0.9, long)},
	}

	refs := chat.GetSourceReferences(pctx)
	require.Len(t, refs, 1)
	assert.Len(t, refs[0].Text, 203)
	assert.True(t, strings.HasSuffix(refs[0].Text, "..."))

	short := &types.PromptContext{
		Results: []types.ChunkSearchResult{resultOnPage(1, 0.9, "short enough")},
	}
	refs = chat.GetSourceReferences(short)
	assert.Equal(t, "short enough", refs[0].Text)
}

func TestGetSourceReferencesPreviewKeepsRunesIntact(t *testing.T) {
	chat := newTestChatService()
	// One ASCII byte then two-byte runes puts the 200-byte cut in the
	// middle of a rune without the boundary snap.
	long := "x" + strings.Repeat("ä", 150)
	pctx := &types.PromptContext{
		Results: []types.ChunkSearchResult{resultOnPage(1, 0.9, long)},
	}

	refs := chat.GetSourceReferences(pctx)
	require.Len(t, refs, 1)
	assert.True(t, utf8.ValidString(refs[0].Text))
	assert.True(t, strings.HasSuffix(refs[0].Text, "..."))
	assert.LessOrEqual(t, len(refs[0].Text), 203)
}

func TestGetSourceReferencesCarriesPositions(t *testing.T) {
	chat := newTestChatService()
	positions := []types.TextPosition{
		{PageNumber: 2, CharOffset: 10, CharLength: 25, Box: &types.BoundingBox{X: 1, Y: 2, Width: 3, Height: 4}},
	}
	data, err := json.Marshal(positions)
	require.NoError(t, err)

	result := resultOnPage(2, 0.9, "positioned chunk")
	result.Chunk.PositionsJSON = string(data)
	refs := chat.GetSourceReferences(&types.PromptContext{
		Results: []types.ChunkSearchResult{result},
	})
	require.Len(t, refs, 1)
	assert.Equal(t, positions, refs[0].Positions)
}

func TestGetSourceReferencesManyPages(t *testing.T) {
	chat := newTestChatService()
	var results []types.ChunkSearchResult
	for page := 1; page <= 4; page++ {
		for c := 0; c < 3; c++ {
			results = append(results, resultOnPage(page, float64(page)+float64(c)/10, fmt.Sprintf("p%d c%d", page, c)))
		}
	}

	refs := chat.GetSourceReferences(&types.PromptContext{Results: results})
	require.Len(t, refs, 4)
	for i := 1; i < len(refs); i++ {
		assert.GreaterOrEqual(t, refs[i-1].RelevanceScore, refs[i].RelevanceScore, "sorted by score descending")
	}
	// Each page is represented by its highest-scoring chunk.
	assert.Equal(t, 4, refs[0].Page)
	assert.InDelta(t, 4.2, refs[0].RelevanceScore, 1e-9)
}
