// Package mcp exposes the document chat pipeline over the Model
// Context Protocol.
package mcp

// RetrieveContextInput defines the input parameters for the
// retrieve_context tool.
type RetrieveContextInput struct {
	// Query is the question or search text.
	Query string `json:"query" jsonschema:"required,description=The question or search text to find relevant passages for"`
	// SessionID scopes retrieval to one session's documents.
	SessionID string `json:"session_id" jsonschema:"required,description=The session whose documents should be searched"`
	// MaxResults is the maximum number of passages to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=4,description=Maximum number of passages to return"`
}

// RetrieveContextOutput contains the retrieved passages.
type RetrieveContextOutput struct {
	// Passages is the matching text, most similar first.
	Passages []string `json:"passages"`
	// Message provides informational context (e.g. "no matches").
	Message string `json:"message,omitempty"`
}

// IngestDocumentInput defines the input parameters for the
// ingest_document tool.
type IngestDocumentInput struct {
	// Path is the local file path to ingest.
	Path string `json:"path" jsonschema:"required,description=Local path of the document file to ingest"`
	// SessionID is the session the document belongs to.
	SessionID string `json:"session_id" jsonschema:"required,description=The session to attach the document to"`
}

// IngestDocumentOutput reports the ingestion result.
type IngestDocumentOutput struct {
	// Source is the ingested file's base name.
	Source string `json:"source"`
	// Chunks is the number of chunks stored.
	Chunks int `json:"chunks"`
}

// ListSessionsInput defines the input for the list_sessions tool,
// which takes no parameters.
type ListSessionsInput struct{}

// SessionInfo summarizes one session.
type SessionInfo struct {
	// ID is the session identifier.
	ID string `json:"id"`
	// Messages is the number of stored chat messages.
	Messages int `json:"messages"`
}

// ListSessionsOutput lists all known sessions.
type ListSessionsOutput struct {
	Sessions []SessionInfo `json:"sessions"`
	Count    int           `json:"count"`
}

// DeleteSessionInput defines the input for the delete_session tool.
type DeleteSessionInput struct {
	// SessionID is the session to delete.
	SessionID string `json:"session_id" jsonschema:"required,description=The session to delete"`
	// KeepDocuments skips removal of the session's stored document chunks.
	KeepDocuments bool `json:"keep_documents,omitempty" jsonschema:"default=false,description=Keep the session's document chunks in the vector store"`
}

// DeleteSessionOutput reports the deletion result.
type DeleteSessionOutput struct {
	Deleted          bool `json:"deleted"`
	DocumentsRemoved bool `json:"documents_removed"`
}
