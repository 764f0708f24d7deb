package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	"github.com/doqment/docqa-be/config"
	"github.com/doqment/docqa-be/types"
)

// The system instruction is part of the citation contract: the model is told
// to cite only pages present in the current context, so the source references
// built from that same context stay accurate.
const answerSystemPrompt = "You are a document question-answering assistant. " +
	"Answer using only the information in the provided context. " +
	"If the context does not contain enough information to answer, reply: \"I couldn't find information about that in the document.\" " +
	"When your answer uses the context, cite the page numbers it came from, citing only pages that appear in the current context, not pages mentioned in earlier turns of the conversation. " +
	"If your answer does not use the context, do not cite any pages. " +
	"Be concise."

// NoContextFallback is the single fragment emitted when retrieval finds
// nothing; no model call is made in that case.
const NoContextFallback = "I couldn't find any relevant information in the document to answer your question."

// completionStream is the part of the provider stream the relay loop uses.
type completionStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// ChatService turns questions into grounded, streamed answers: it embeds the
// question, retrieves context chunks, assembles the prompt, streams the model
// response through and derives per-page source citations.
type ChatService struct {
	client        *openai.Client
	openStream    func(ctx context.Context, req openai.ChatCompletionRequest) (completionStream, error)
	model         string
	embedder      *EmbeddingService
	retriever     *RetrieverService
	topK          int
	contextWindow int
	previewLength int
}

func NewChatService(baseURL, apiKey, model string, embedder *EmbeddingService, retriever *RetrieverService, cfg config.RetrievalConfig) *ChatService {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	s := &ChatService{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         model,
		embedder:      embedder,
		retriever:     retriever,
		topK:          cfg.TopK,
		contextWindow: cfg.ContextWindow,
		previewLength: cfg.PreviewLength,
	}
	s.openStream = func(ctx context.Context, req openai.ChatCompletionRequest) (completionStream, error) {
		return s.client.CreateChatCompletionStream(ctx, req)
	}
	return s
}

// BuildContext embeds the question, retrieves the document's most relevant
// chunks and packages them with the optional chat history.
func (s *ChatService) BuildContext(ctx context.Context, documentID, question string, history []types.ChatMessage) (*types.PromptContext, error) {
	queryVector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	results, err := s.retriever.Search(ctx, question, queryVector, documentID, s.topK, s.contextWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	return &types.PromptContext{
		DocumentID: documentID,
		Question:   question,
		Results:    results,
		History:    history,
	}, nil
}

// GenerateAnswerStream streams the answer fragments for the given context
// through handler, in arrival order. An empty retrieval set yields exactly
// one fallback fragment without calling the model. Cancelling ctx aborts the
// underlying provider stream.
func (s *ChatService) GenerateAnswerStream(ctx context.Context, pctx *types.PromptContext, handler types.StreamHandler) error {
	if len(pctx.Results) == 0 {
		handler(NoContextFallback)
		return nil
	}

	stream, err := s.openStream(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: buildChatMessages(pctx),
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to start completion stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("completion stream failed: %w", err)
		}
		if len(resp.Choices) > 0 {
			handler(resp.Choices[0].Delta.Content)
		}
	}
}

// buildChatMessages assembles the model input: the fixed system instruction,
// the history mapped role-for-role (unrecognized roles are dropped), and one
// final user message holding the page-tagged context followed by the
// question.
func buildChatMessages(pctx *types.PromptContext) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(pctx.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: answerSystemPrompt,
	})
	for _, msg := range pctx.History {
		switch msg.Role {
		case types.RoleUser:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		case types.RoleAssistant:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			})
		}
	}

	var sb strings.Builder
	for _, r := range pctx.Results {
		fmt.Fprintf(&sb, "[Page %d]: %s\n\n", r.Chunk.PageNumber, r.Chunk.Content)
	}
	sb.WriteString(pctx.Question)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: sb.String(),
	})
	return messages
}

// GetSourceReferences derives at most one citation per page from the
// retrieval context: each page is represented by its best-scoring chunk and
// the resulting set is sorted by that score, descending.
func (s *ChatService) GetSourceReferences(pctx *types.PromptContext) []types.SourceReference {
	references := make([]types.SourceReference, 0)
	if len(pctx.Results) == 0 {
		return references
	}

	bestPerPage := make(map[int]types.ChunkSearchResult)
	pageOrder := make([]int, 0)
	for _, r := range pctx.Results {
		page := r.Chunk.PageNumber
		best, seen := bestPerPage[page]
		if !seen {
			bestPerPage[page] = r
			pageOrder = append(pageOrder, page)
			continue
		}
		// Strict greater-than keeps the first-seen chunk on ties.
		if r.Score > best.Score {
			bestPerPage[page] = r
		}
	}

	for _, page := range pageOrder {
		best := bestPerPage[page]
		references = append(references, types.SourceReference{
			Page:           page,
			Text:           truncatePreview(best.Chunk.Content, s.previewLength),
			Positions:      decodePositions(best.Chunk.PositionsJSON),
			RelevanceScore: best.Score,
		})
	}
	sort.SliceStable(references, func(i, j int) bool {
		return references[i].RelevanceScore > references[j].RelevanceScore
	})
	return references
}

func decodePositions(positionsJSON string) []types.TextPosition {
	if positionsJSON == "" {
		return nil
	}
	var positions []types.TextPosition
	if err := json.Unmarshal([]byte(positionsJSON), &positions); err != nil {
		log.Printf("Warning: failed to decode chunk positions: %v", err)
		return nil
	}
	return positions
}

// truncatePreview bounds citation previews, appending an ellipsis when the
// content was cut. The cut never splits a multi-byte rune.
func truncatePreview(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
