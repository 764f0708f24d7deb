package types

// AskRequest is the query-facing ask-question payload. SessionID is optional;
// a new session is created when it is empty.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// UploadRequest carries the metadata form field of a document upload.
type UploadRequest struct {
	Title string `json:"title"`
}
