package service

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/doqment/docqa-be/types"
)

// WebSocketService exposes the ask-question flow over a websocket: each
// incoming frame is a question, the answer streams back as chunk/sources/done
// frames using the same event vocabulary as the SSE surface.
type WebSocketService struct {
	ask      *AskService
	upgrader websocket.Upgrader
}

func NewWebSocketService(ask *AskService) *WebSocketService {
	return &WebSocketService{
		ask: ask,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins (adjust for production)
			},
		},
	}
}

type wsFrame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func (s *WebSocketService) HandleAsk(documentID string, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(512 * 1024) // 512KB max message size
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		var req types.AskRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		emit := func(event string, payload interface{}) error {
			return conn.WriteJSON(wsFrame{Type: event, Payload: payload})
		}
		if err := s.ask.Ask(ctx, documentID, req, emit); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("WebSocket ask failed: %v", err)
			conn.WriteJSON(wsFrame{
				Type:    types.EventError,
				Payload: "Failed to answer the question",
			})
		}
	}
}
