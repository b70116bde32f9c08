package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/storage"
)

// fakeSearcher returns canned candidates and records the requested limit.
type fakeSearcher struct {
	results       []storage.ScoredChunk
	err           error
	gotLimit      int
	gotSessionID  string
	filterSession bool
}

func (f *fakeSearcher) SearchSession(_ context.Context, _, sessionID string, limit int) ([]storage.ScoredChunk, error) {
	f.gotLimit = limit
	f.gotSessionID = sessionID
	if f.err != nil {
		return nil, f.err
	}
	if !f.filterSession {
		return f.results, nil
	}
	var out []storage.ScoredChunk
	for _, r := range f.results {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func scored(text, sessionID string, score float32) storage.ScoredChunk {
	return storage.ScoredChunk{
		Chunk: storage.Chunk{Text: text, SessionID: sessionID, Source: "doc.txt"},
		Score: score,
	}
}

func TestRetrieveTruncatesToK(t *testing.T) {
	searcher := &fakeSearcher{results: []storage.ScoredChunk{
		scored("one", "s1", 0.9),
		scored("two", "s1", 0.8),
		scored("three", "s1", 0.7),
		scored("four", "s1", 0.6),
		scored("five", "s1", 0.5),
	}}
	r := New(searcher, nil)

	passages, err := r.Retrieve(context.Background(), "query", "s1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, passages)
}

func TestRetrieveOverFetchesCandidates(t *testing.T) {
	searcher := &fakeSearcher{}
	r := New(searcher, nil)

	_, err := r.Retrieve(context.Background(), "query", "s1", 4)
	require.NoError(t, err)
	assert.Equal(t, CandidateLimit, searcher.gotLimit)
	assert.Equal(t, "s1", searcher.gotSessionID)
}

func TestRetrieveDropsForeignCandidates(t *testing.T) {
	// Simulate a store that ignored the filter: the defensive check
	// must still keep session isolation intact.
	searcher := &fakeSearcher{results: []storage.ScoredChunk{
		scored("theirs", "s2", 0.99),
		scored("mine", "s1", 0.5),
		scored("also theirs", "s3", 0.4),
	}}
	r := New(searcher, nil)

	passages, err := r.Retrieve(context.Background(), "query", "s1", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, passages)
}

func TestRetrieveMissIsNotAnError(t *testing.T) {
	searcher := &fakeSearcher{filterSession: true, results: []storage.ScoredChunk{
		scored("content", "other-session", 0.9),
	}}
	r := New(searcher, nil)

	passages, err := r.Retrieve(context.Background(), "query", "empty-session", 4)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestRetrieveFewerThanK(t *testing.T) {
	searcher := &fakeSearcher{results: []storage.ScoredChunk{
		scored("only one", "s1", 0.9),
	}}
	r := New(searcher, nil)

	passages, err := r.Retrieve(context.Background(), "query", "s1", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"only one"}, passages)
}

func TestRetrieveDefaultK(t *testing.T) {
	searcher := &fakeSearcher{results: []storage.ScoredChunk{
		scored("a", "s1", 0.9),
		scored("b", "s1", 0.8),
		scored("c", "s1", 0.7),
		scored("d", "s1", 0.6),
		scored("e", "s1", 0.5),
	}}
	r := New(searcher, nil)

	passages, err := r.Retrieve(context.Background(), "query", "s1", 0)
	require.NoError(t, err)
	assert.Len(t, passages, DefaultK)
}

func TestRetrieveSearchErrorPropagates(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("qdrant down")}
	r := New(searcher, nil)

	_, err := r.Retrieve(context.Background(), "query", "s1", 4)
	assert.Error(t, err)
}
