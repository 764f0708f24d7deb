package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/doqment/docqa-be/database"
	"github.com/doqment/docqa-be/types"
)

type StatusHandler struct {
	statuses database.StatusStore
}

func NewStatusHandler(statuses database.StatusStore) *StatusHandler {
	return &StatusHandler{statuses: statuses}
}

// HandleGetStatus returns the pollable indexing state of a document.
func (h *StatusHandler) HandleGetStatus(c *gin.Context) {
	status, err := h.statuses.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, types.DataResponse{
				Status:  false,
				Message: "Unknown document",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: "Failed to load status",
		})
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{Status: true, Data: status})
}
