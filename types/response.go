package types

// SSE event names emitted by the ask-question stream.
const (
	EventChunk   = "chunk"
	EventSources = "sources"
	EventDone    = "done"
	EventError   = "error"
)

type DataResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type UploadResponse struct {
	DocumentID   string `json:"document_id"`
	OriginalName string `json:"original_name"`
}

type AskDoneResponse struct {
	SessionID string `json:"session_id"`
}
