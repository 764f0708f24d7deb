package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doqment/docqa-be/database"
	"github.com/doqment/docqa-be/types"
)

// AskService runs the full ask-question flow shared by the SSE and websocket
// surfaces: session resolution, retrieval, streaming, citation building and
// history persistence.
type AskService struct {
	chat     *ChatService
	sessions database.SessionStore
}

func NewAskService(chat *ChatService, sessions database.SessionStore) *AskService {
	return &AskService{
		chat:     chat,
		sessions: sessions,
	}
}

// EmitFunc delivers one named event to the client. Implementations belong to
// the transport (SSE event, websocket frame).
type EmitFunc func(event string, payload interface{}) error

// Ask answers one question about a document, streaming `chunk` events, one
// `sources` event and a final `done` event through emit. A missing session id
// starts a new session. The exchange is appended to the session history after
// the stream completes; a cancelled run persists nothing further.
func (s *AskService) Ask(ctx context.Context, documentID string, req types.AskRequest, emit EmitFunc) error {
	session, err := s.resolveSession(ctx, documentID, req.SessionID)
	if err != nil {
		return err
	}

	pctx, err := s.chat.BuildContext(ctx, documentID, req.Question, session.Messages)
	if err != nil {
		return err
	}

	streamCtx, cancelStream := context.WithCancel(ctx)
	defer cancelStream()

	var answer strings.Builder
	var emitErr error
	err = s.chat.GenerateAnswerStream(streamCtx, pctx, func(fragment string) {
		if emitErr != nil {
			return
		}
		answer.WriteString(fragment)
		if emitErr = emit(types.EventChunk, fragment); emitErr != nil {
			// The client is gone; stop the provider stream instead of
			// letting the model generate into the void.
			cancelStream()
		}
	})
	if emitErr != nil {
		return emitErr
	}
	if err != nil {
		return err
	}

	references := s.chat.GetSourceReferences(pctx)
	if err := emit(types.EventSources, references); err != nil {
		return err
	}

	now := time.Now().Unix()
	err = s.sessions.AppendMessages(ctx, session.ID,
		types.ChatMessage{Role: types.RoleUser, Content: req.Question, CreatedAt: now},
		types.ChatMessage{Role: types.RoleAssistant, Content: answer.String(), Sources: references, CreatedAt: now},
	)
	if err != nil {
		return err
	}

	return emit(types.EventDone, types.AskDoneResponse{SessionID: session.ID})
}

func (s *AskService) resolveSession(ctx context.Context, documentID, sessionID string) (*types.ChatSession, error) {
	if sessionID != "" {
		return s.sessions.GetSession(ctx, sessionID)
	}
	session := &types.ChatSession{
		ID:         uuid.NewString(),
		DocumentID: documentID,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}
