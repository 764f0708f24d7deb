package types

// ChatRole is the closed set of message roles the pipeline understands.
// Anything else is dropped when assembling prompts.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ParseChatRole reports whether s names a valid role.
func ParseChatRole(s string) (ChatRole, bool) {
	switch ChatRole(s) {
	case RoleUser:
		return RoleUser, true
	case RoleAssistant:
		return RoleAssistant, true
	}
	return "", false
}

// ChatMessage is a single message in a conversation.
type ChatMessage struct {
	Role      ChatRole          `bson:"role" json:"role"`
	Content   string            `bson:"content" json:"content"`
	Sources   []SourceReference `bson:"sources,omitempty" json:"sources,omitempty"`
	CreatedAt int64             `bson:"created_at" json:"created_at"`
}

// ChatSession aggregates the ordered messages of one conversation about one
// document. History grows append-only.
type ChatSession struct {
	ID         string        `bson:"_id" json:"id"`
	DocumentID string        `bson:"document_id" json:"document_id"`
	Messages   []ChatMessage `bson:"messages" json:"messages"`
	CreatedAt  int64         `bson:"created_at" json:"created_at"`
	UpdatedAt  int64         `bson:"updated_at" json:"updated_at"`
}

// PromptContext packages one question with its retrieval output (in
// relevance order) and optional chat history. Built per query.
type PromptContext struct {
	DocumentID string
	Question   string
	Results    []ChunkSearchResult
	History    []ChatMessage
}

// SourceReference is one page-level citation derived from a PromptContext:
// the page's best-scoring chunk, previewed and carrying its positions.
type SourceReference struct {
	Page           int            `bson:"page" json:"page"`
	Text           string         `bson:"text" json:"text"`
	Positions      []TextPosition `bson:"positions,omitempty" json:"positions,omitempty"`
	RelevanceScore float64        `bson:"relevance_score" json:"relevance_score"`
}

// StreamHandler receives answer fragments as they arrive.
type StreamHandler func(fragment string)
