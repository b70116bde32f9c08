package storage

// Chunk is one retrievable span of document text. Every persisted chunk
// carries exactly one session ID, assigned at ingestion and never
// mutated; chunks never move between sessions.
type Chunk struct {
	ID        string // UUID point ID
	Source    string // originating document name
	Index     int    // position within the document (0, 1, 2...)
	Text      string // chunk content, non-empty
	SessionID string // owning session tag
}

// ScoredChunk is a search result with its similarity score
// (cosine similarity, higher = more similar).
type ScoredChunk struct {
	Chunk
	Score float32
}

// DefaultCollection is the single shared Qdrant collection holding
// chunks from all sessions.
const DefaultCollection = "chatbot-documents"

// VectorDimension is the embedding size stored in the collection.
const VectorDimension = 384

// SessionField is the payload field carrying the owning session ID.
// It has a keyword index so searches can filter on it server-side.
const SessionField = "session_id"
