package handler

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/doqment/docqa-be/database"
	"github.com/doqment/docqa-be/service"
	"github.com/doqment/docqa-be/types"
)

type DocumentHandler struct {
	files    *service.FileService
	index    database.SearchIndex
	statuses database.StatusStore
}

func NewDocumentHandler(files *service.FileService, index database.SearchIndex, statuses database.StatusStore) *DocumentHandler {
	return &DocumentHandler{
		files:    files,
		index:    index,
		statuses: statuses,
	}
}

// HandleServeDocument streams the stored PDF back to the client.
func (h *DocumentHandler) HandleServeDocument(c *gin.Context) {
	documentID := c.Param("id")
	path := h.files.DocumentPath(documentID)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, types.DataResponse{
			Status:  false,
			Message: "Document not found",
		})
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", documentID))
	c.File(path)
}

// HandleDeleteDocument removes a document's chunks from the search index,
// its indexing status and its stored file.
func (h *DocumentHandler) HandleDeleteDocument(c *gin.Context) {
	documentID := c.Param("id")

	if err := h.index.DeleteDocument(c.Request.Context(), documentID); err != nil {
		log.Printf("Failed to delete chunks for document %s: %v", documentID, err)
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: "Failed to delete document",
		})
		return
	}
	if err := h.statuses.DeleteStatus(c.Request.Context(), documentID); err != nil {
		log.Printf("Failed to delete status for document %s: %v", documentID, err)
	}
	if err := h.files.Remove(documentID); err != nil {
		log.Printf("Failed to delete file for document %s: %v", documentID, err)
	}

	c.JSON(http.StatusOK, types.DataResponse{Status: true})
}
