// Package retriever produces the context passages for a chat turn:
// session-scoped similarity retrieval with over-fetch and truncation.
package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"docchat/internal/storage"
)

const (
	// DefaultK is the number of passages handed to the chat model.
	DefaultK = 4

	// CandidateLimit is the over-fetched candidate pool size. Fetching
	// well beyond k keeps sparse sessions from being starved when the
	// defensive filter drops foreign candidates.
	CandidateLimit = 30
)

// Searcher is the vector-store search surface the retriever needs.
type Searcher interface {
	SearchSession(ctx context.Context, query, sessionID string, limit int) ([]storage.ScoredChunk, error)
}

// Retriever turns a query into the top-k same-session text passages.
type Retriever struct {
	searcher Searcher
	logger   *slog.Logger
}

// New creates a Retriever.
func New(searcher Searcher, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{searcher: searcher, logger: logger}
}

// Retrieve returns up to k text passages for the session, ordered
// most-similar first. Fewer than k results, including zero, is a valid
// outcome: retrieval is best-effort and a miss is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query, sessionID string, k int) ([]string, error) {
	if k <= 0 {
		k = DefaultK
	}

	candidates, err := r.searcher.SearchSession(ctx, query, sessionID, CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	passages := make([]string, 0, k)
	for _, candidate := range candidates {
		// The search is already filtered server-side; this check is a
		// defensive fallback so a foreign chunk can never leak into a
		// session's context.
		if candidate.SessionID != sessionID {
			r.logger.Warn("dropping cross-session candidate",
				"want", sessionID, "got", candidate.SessionID, "source", candidate.Source)
			continue
		}
		passages = append(passages, candidate.Text)
		if len(passages) == k {
			break
		}
	}

	return passages, nil
}
