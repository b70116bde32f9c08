package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"docchat/internal/session"
)

// makeRetrieveHandler creates the retrieve_context tool handler.
// The session must exist; searching an unknown session is an error
// rather than a silent empty result.
func makeRetrieveHandler(retriever Retriever, sessions SessionStore) func(
	context.Context, *mcp.CallToolRequest, RetrieveContextInput,
) (*mcp.CallToolResult, RetrieveContextOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RetrieveContextInput) (
		*mcp.CallToolResult, RetrieveContextOutput, error,
	) {
		if input.Query == "" {
			return nil, RetrieveContextOutput{}, fmt.Errorf("query must not be empty")
		}

		ok, err := sessions.Exists(input.SessionID)
		if err != nil {
			return nil, RetrieveContextOutput{}, fmt.Errorf("checking session: %w", err)
		}
		if !ok {
			return nil, RetrieveContextOutput{}, fmt.Errorf("unknown session %q", input.SessionID)
		}

		passages, err := retriever.Retrieve(ctx, input.Query, input.SessionID, input.MaxResults)
		if err != nil {
			return nil, RetrieveContextOutput{}, fmt.Errorf("retrieval failed: %w", err)
		}

		if len(passages) == 0 {
			return nil, RetrieveContextOutput{
				Passages: []string{},
				Message:  "No matching passages found. Ingest documents into this session first.",
			}, nil
		}

		return nil, RetrieveContextOutput{Passages: passages}, nil
	}
}

// makeIngestHandler creates the ingest_document tool handler. It
// initializes the session if it does not exist yet, then chunks and
// stores the file.
func makeIngestHandler(pipeline Ingester, sessions SessionStore) func(
	context.Context, *mcp.CallToolRequest, IngestDocumentInput,
) (*mcp.CallToolResult, IngestDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestDocumentInput) (
		*mcp.CallToolResult, IngestDocumentOutput, error,
	) {
		if err := sessions.Init(input.SessionID); err != nil {
			return nil, IngestDocumentOutput{}, fmt.Errorf("initializing session: %w", err)
		}

		result, err := pipeline.Ingest(ctx, input.Path, input.SessionID)
		if err != nil {
			return nil, IngestDocumentOutput{}, fmt.Errorf("ingestion failed: %w", err)
		}

		return nil, IngestDocumentOutput{
			Source: result.Source,
			Chunks: result.Chunks,
		}, nil
	}
}

// makeListSessionsHandler creates the list_sessions tool handler.
func makeListSessionsHandler(sessions SessionStore) func(
	context.Context, *mcp.CallToolRequest, ListSessionsInput,
) (*mcp.CallToolResult, ListSessionsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListSessionsInput) (
		*mcp.CallToolResult, ListSessionsOutput, error,
	) {
		ids, err := sessions.List()
		if err != nil {
			return nil, ListSessionsOutput{}, fmt.Errorf("listing sessions: %w", err)
		}

		infos := make([]SessionInfo, 0, len(ids))
		for _, id := range ids {
			msgs, err := sessions.Messages(id)
			if err != nil {
				return nil, ListSessionsOutput{}, fmt.Errorf("reading session %s: %w", id, err)
			}
			infos = append(infos, SessionInfo{ID: id, Messages: len(msgs)})
		}

		return nil, ListSessionsOutput{Sessions: infos, Count: len(infos)}, nil
	}
}

// makeDeleteSessionHandler creates the delete_session tool handler.
// Deleting a session also removes its document chunks from the vector
// store unless keep_documents is set.
func makeDeleteSessionHandler(sessions SessionStore, documents DocumentStore) func(
	context.Context, *mcp.CallToolRequest, DeleteSessionInput,
) (*mcp.CallToolResult, DeleteSessionOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DeleteSessionInput) (
		*mcp.CallToolResult, DeleteSessionOutput, error,
	) {
		if err := sessions.Delete(input.SessionID); err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return nil, DeleteSessionOutput{Deleted: false}, nil
			}
			return nil, DeleteSessionOutput{}, fmt.Errorf("deleting session: %w", err)
		}

		out := DeleteSessionOutput{Deleted: true}
		if !input.KeepDocuments {
			if err := documents.DeleteSession(ctx, input.SessionID); err != nil {
				return nil, out, fmt.Errorf("session deleted but removing its documents failed: %w", err)
			}
			out.DocumentsRemoved = true
		}
		return nil, out, nil
	}
}
