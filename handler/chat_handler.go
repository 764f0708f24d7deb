package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/doqment/docqa-be/database"
	"github.com/doqment/docqa-be/service"
	"github.com/doqment/docqa-be/types"
)

type ChatHandler struct {
	ask      *service.AskService
	ws       *service.WebSocketService
	sessions database.SessionStore
}

func NewChatHandler(ask *service.AskService, ws *service.WebSocketService, sessions database.SessionStore) *ChatHandler {
	return &ChatHandler{
		ask:      ask,
		ws:       ws,
		sessions: sessions,
	}
}

// HandleAsk streams the answer to one question as SSE: `chunk` events with
// text fragments, one `sources` event, then `done` with the session id, or a
// single `error` event on failure. Client disconnect cancels the run
// silently.
func (h *ChatHandler) HandleAsk(c *gin.Context) {
	documentID := c.Param("id")

	var req types.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Question == "" {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid request body",
		})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	emit := func(event string, payload interface{}) error {
		c.SSEvent(event, payload)
		c.Writer.Flush()
		return nil
	}

	if err := h.ask.Ask(c.Request.Context(), documentID, req, emit); err != nil {
		if errors.Is(err, context.Canceled) {
			return // client went away, nothing to report
		}
		log.Printf("Ask failed for document %s: %v", documentID, err)
		emit(types.EventError, "Failed to answer the question")
	}
}

// HandleAskWebSocket serves the same ask flow over a websocket connection.
func (h *ChatHandler) HandleAskWebSocket(c *gin.Context) {
	h.ws.HandleAsk(c.Param("id"), c.Writer, c.Request)
}

func (h *ChatHandler) HandleListSessions(c *gin.Context) {
	sessions, err := h.sessions.ListSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: "Failed to list sessions",
		})
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{Status: true, Data: sessions})
}

func (h *ChatHandler) HandleGetSession(c *gin.Context) {
	session, err := h.sessions.GetSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, types.DataResponse{
				Status:  false,
				Message: "Session not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: "Failed to load session",
		})
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{Status: true, Data: session})
}
