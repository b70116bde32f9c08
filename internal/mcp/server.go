package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"docchat/internal/ingest"
	"docchat/internal/session"
)

// Retriever fetches context passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query, sessionID string, k int) ([]string, error)
}

// Ingester chunks and stores a document file for a session.
type Ingester interface {
	Ingest(ctx context.Context, path, sessionID string) (*ingest.Result, error)
}

// SessionStore is the session repository surface the tools need.
type SessionStore interface {
	Init(sessionID string) error
	Exists(sessionID string) (bool, error)
	List() ([]string, error)
	Messages(sessionID string) ([]session.Message, error)
	Delete(sessionID string) error
}

// DocumentStore removes stored document chunks.
type DocumentStore interface {
	DeleteSession(ctx context.Context, sessionID string) error
}

// Server wraps the MCP server with its pipeline dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Retriever Retriever
	Ingester  Ingester
	Sessions  SessionStore
	Documents DocumentStore
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "docchat-server",
		Version: "v0.1.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "retrieve_context",
		Description: "Retrieve the most relevant document passages for a query from one session's uploaded documents.",
	}, makeRetrieveHandler(cfg.Retriever, cfg.Sessions))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Chunk and index a local document file (PDF, DOCX, Markdown, or plain text) into a session so it can be retrieved later.",
	}, makeIngestHandler(cfg.Ingester, cfg.Sessions))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_sessions",
		Description: "List all chat sessions with their message counts.",
	}, makeListSessionsHandler(cfg.Sessions))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_session",
		Description: "Delete a chat session's history and, unless keep_documents is set, its indexed document chunks.",
	}, makeDeleteSessionHandler(cfg.Sessions, cfg.Documents))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until the client
// disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance for transport
// handlers that need to wrap it.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
