package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doqment/docqa-be/types"
)

// memorySessionStore keeps sessions in a map, enough to exercise the ask flow
// end to end without mongo.
type memorySessionStore struct {
	sessions map[string]*types.ChatSession
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]*types.ChatSession)}
}

func (m *memorySessionStore) CreateSession(ctx context.Context, session *types.ChatSession) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *memorySessionStore) GetSession(ctx context.Context, id string) (*types.ChatSession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, errors.New("session not found")
	}
	return session, nil
}

func (m *memorySessionStore) ListSessions(ctx context.Context, documentID string) ([]types.ChatSession, error) {
	var out []types.ChatSession
	for _, s := range m.sessions {
		if s.DocumentID == documentID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memorySessionStore) AppendMessages(ctx context.Context, id string, messages ...types.ChatMessage) error {
	session, ok := m.sessions[id]
	if !ok {
		return errors.New("session not found")
	}
	session.Messages = append(session.Messages, messages...)
	return nil
}

type emittedEvent struct {
	event   string
	payload interface{}
}

// newAskServiceWithEmptyIndex wires an AskService whose retrieval always
// comes back empty, so the flow completes without any model call.
func newAskServiceWithEmptyIndex(store *memorySessionStore) *AskService {
	embedder := NewEmbeddingService(&fakeEmbeddingProvider{}, testEmbeddingConfig())
	retriever := NewRetrieverService(&fakeSearchIndex{})
	chat := NewChatService("", "test-key", "test-model", embedder, retriever, testRetrievalConfig())
	return NewAskService(chat, store)
}

func TestAskNoContextCreatesSessionAndEmitsFallback(t *testing.T) {
	store := newMemorySessionStore()
	ask := newAskServiceWithEmptyIndex(store)

	var events []emittedEvent
	err := ask.Ask(context.Background(), "doc-1", types.AskRequest{Question: "What is this?"}, func(event string, payload interface{}) error {
		events = append(events, emittedEvent{event, payload})
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, types.EventChunk, events[0].event)
	assert.Equal(t, NoContextFallback, events[0].payload)
	assert.Equal(t, types.EventSources, events[1].event)
	assert.Empty(t, events[1].payload)
	assert.Equal(t, types.EventDone, events[2].event)

	done, ok := events[2].payload.(types.AskDoneResponse)
	require.True(t, ok)
	assert.NotEmpty(t, done.SessionID)

	session, err := store.GetSession(context.Background(), done.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", session.DocumentID)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, types.RoleUser, session.Messages[0].Role)
	assert.Equal(t, "What is this?", session.Messages[0].Content)
	assert.Equal(t, types.RoleAssistant, session.Messages[1].Role)
	assert.Equal(t, NoContextFallback, session.Messages[1].Content)
}

func TestAskReusesExistingSession(t *testing.T) {
	store := newMemorySessionStore()
	existing := &types.ChatSession{
		ID:         "session-1",
		DocumentID: "doc-1",
		Messages: []types.ChatMessage{
			{Role: types.RoleUser, Content: "earlier question"},
			{Role: types.RoleAssistant, Content: "earlier answer"},
		},
	}
	require.NoError(t, store.CreateSession(context.Background(), existing))
	ask := newAskServiceWithEmptyIndex(store)

	var doneID string
	err := ask.Ask(context.Background(), "doc-1", types.AskRequest{Question: "follow-up?", SessionID: "session-1"}, func(event string, payload interface{}) error {
		if event == types.EventDone {
			doneID = payload.(types.AskDoneResponse).SessionID
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "session-1", doneID)

	session, err := store.GetSession(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Len(t, session.Messages, 4, "new exchange appended after the existing history")
}

func TestAskUnknownSessionFails(t *testing.T) {
	ask := newAskServiceWithEmptyIndex(newMemorySessionStore())

	err := ask.Ask(context.Background(), "doc-1", types.AskRequest{Question: "hi", SessionID: "missing"}, func(event string, payload interface{}) error {
		t.Fatalf("unexpected event %q", event)
		return nil
	})
	assert.Error(t, err)
}

func TestAskEmitFailureStopsFlow(t *testing.T) {
	store := newMemorySessionStore()
	ask := newAskServiceWithEmptyIndex(store)

	emitErr := errors.New("client gone")
	err := ask.Ask(context.Background(), "doc-1", types.AskRequest{Question: "hi"}, func(event string, payload interface{}) error {
		return emitErr
	})
	assert.ErrorIs(t, err, emitErr)

	for _, session := range store.sessions {
		assert.Empty(t, session.Messages, "no history persisted after a failed delivery")
	}
}

func TestAskEmitFailureAbortsProviderStream(t *testing.T) {
	store := newMemorySessionStore()
	index := &fakeSearchIndex{matches: []types.ChunkSearchResult{match(2, 0.9)}}
	require.NoError(t, index.IndexChunks(context.Background(), []types.DocumentChunk{
		storedChunk(1, 1), storedChunk(2, 1), storedChunk(3, 1),
	}))

	embedder := NewEmbeddingService(&fakeEmbeddingProvider{}, testEmbeddingConfig())
	chat := NewChatService("", "test-key", "test-model", embedder, NewRetrieverService(index), testRetrievalConfig())
	stream := stubStream(chat, "one", "two", "three")
	ask := NewAskService(chat, store)

	emitErr := errors.New("client gone")
	err := ask.Ask(context.Background(), "doc", types.AskRequest{Question: "hi"}, func(event string, payload interface{}) error {
		return emitErr
	})
	assert.ErrorIs(t, err, emitErr)
	assert.Equal(t, 1, stream.pos, "stream abandoned after the failed delivery")
	assert.True(t, stream.closed)

	for _, session := range store.sessions {
		assert.Empty(t, session.Messages)
	}
}
