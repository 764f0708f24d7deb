package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/doqment/docqa-be/database"
	"github.com/doqment/docqa-be/service"
	"github.com/doqment/docqa-be/types"
)

type UploadHandler struct {
	files    *service.FileService
	indexer  *service.IndexingService
	statuses database.StatusStore
}

func NewUploadHandler(files *service.FileService, indexer *service.IndexingService, statuses database.StatusStore) *UploadHandler {
	return &UploadHandler{
		files:    files,
		indexer:  indexer,
		statuses: statuses,
	}
}

// HandleUpload accepts a PDF upload, stores it and starts the indexing run
// in the background. The caller polls the status endpoint for progress.
func (h *UploadHandler) HandleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid file",
		})
		return
	}

	var req types.UploadRequest
	if metadata := c.Request.FormValue("metadata"); metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &req); err != nil {
			c.JSON(http.StatusBadRequest, types.DataResponse{
				Status:  false,
				Message: "Invalid metadata",
			})
			return
		}
	}
	if req.Title == "" {
		req.Title = file.Filename
	}

	const maxSize = 50 << 20
	if file.Size > maxSize {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "File too large",
		})
		return
	}

	documentID := uuid.NewString()
	path, err := h.files.SaveUpload(file, documentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}

	if err := h.statuses.UpsertStatus(c.Request.Context(), &types.IndexingJobStatus{
		DocumentID: documentID,
		Stage:      types.StagePending,
		Message:    "Queued for indexing",
	}); err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: "Failed to record indexing status",
		})
		return
	}

	// The run outlives the upload request.
	go func() {
		if err := h.indexer.IndexDocument(context.Background(), documentID, path); err != nil {
			log.Printf("Background indexing of document %s failed: %v", documentID, err)
		}
	}()

	c.JSON(http.StatusAccepted, types.DataResponse{
		Status: true,
		Data: types.UploadResponse{
			DocumentID:   documentID,
			OriginalName: req.Title,
		},
	})
}
