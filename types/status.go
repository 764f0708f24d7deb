package types

// IndexingStage enumerates the stages of a document indexing run.
type IndexingStage string

const (
	StagePending    IndexingStage = "pending"
	StageExtracting IndexingStage = "extracting"
	StageChunking   IndexingStage = "chunking"
	StageEmbedding  IndexingStage = "embedding"
	StageIndexing   IndexingStage = "indexing"
	StageReady      IndexingStage = "ready"
	StageError      IndexingStage = "error"
)

// IndexingJobStatus is the pollable state of one indexing run, overwritten in
// place on each stage transition.
type IndexingJobStatus struct {
	DocumentID string        `bson:"_id" json:"document_id"`
	Stage      IndexingStage `bson:"stage" json:"stage"`
	Progress   int           `bson:"progress" json:"progress"` // 0-100
	Message    string        `bson:"message,omitempty" json:"message,omitempty"`
	Error      string        `bson:"error,omitempty" json:"error,omitempty"`
	UpdatedAt  int64         `bson:"updated_at" json:"updated_at"`
}
