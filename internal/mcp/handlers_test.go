package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/ingest"
	"docchat/internal/session"
)

type fakeRetriever struct {
	passages []string
	err      error
	gotK     int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _, _ string, k int) ([]string, error) {
	f.gotK = k
	return f.passages, f.err
}

type fakeIngester struct {
	result *ingest.Result
	err    error
}

func (f *fakeIngester) Ingest(_ context.Context, _, _ string) (*ingest.Result, error) {
	return f.result, f.err
}

type fakeSessions struct {
	ids       []string
	msgs      map[string][]session.Message
	initCalls []string
	deleteErr error
	msgsErr   map[string]error
}

func newFakeSessions(ids ...string) *fakeSessions {
	f := &fakeSessions{ids: ids, msgs: make(map[string][]session.Message)}
	for _, id := range ids {
		f.msgs[id] = nil
	}
	return f
}

func (f *fakeSessions) Init(id string) error {
	f.initCalls = append(f.initCalls, id)
	if _, ok := f.msgs[id]; !ok {
		f.ids = append(f.ids, id)
		f.msgs[id] = nil
	}
	return nil
}

func (f *fakeSessions) Exists(id string) (bool, error) {
	_, ok := f.msgs[id]
	return ok, nil
}

func (f *fakeSessions) List() ([]string, error) { return f.ids, nil }

func (f *fakeSessions) Messages(id string) ([]session.Message, error) {
	if err := f.msgsErr[id]; err != nil {
		return nil, err
	}
	msgs, ok := f.msgs[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return msgs, nil
}

func (f *fakeSessions) Delete(id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.msgs[id]; !ok {
		return session.ErrSessionNotFound
	}
	delete(f.msgs, id)
	return nil
}

type fakeDocs struct {
	deleted []string
	err     error
}

func (f *fakeDocs) DeleteSession(_ context.Context, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, sessionID)
	return nil
}

func TestRetrieveReturnsPassages(t *testing.T) {
	handler := makeRetrieveHandler(
		&fakeRetriever{passages: []string{"alpha", "beta"}},
		newFakeSessions("s1"),
	)

	_, out, err := handler(context.Background(), nil, RetrieveContextInput{
		Query: "what", SessionID: "s1", MaxResults: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, out.Passages)
	assert.Empty(t, out.Message)
}

func TestRetrieveUnknownSession(t *testing.T) {
	handler := makeRetrieveHandler(&fakeRetriever{}, newFakeSessions("s1"))

	_, _, err := handler(context.Background(), nil, RetrieveContextInput{
		Query: "what", SessionID: "ghost",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestRetrieveEmptyQuery(t *testing.T) {
	handler := makeRetrieveHandler(&fakeRetriever{}, newFakeSessions("s1"))

	_, _, err := handler(context.Background(), nil, RetrieveContextInput{SessionID: "s1"})
	assert.Error(t, err)
}

func TestRetrieveNoMatches(t *testing.T) {
	handler := makeRetrieveHandler(&fakeRetriever{}, newFakeSessions("s1"))

	_, out, err := handler(context.Background(), nil, RetrieveContextInput{
		Query: "anything", SessionID: "s1",
	})
	require.NoError(t, err)
	assert.Empty(t, out.Passages)
	assert.NotEmpty(t, out.Message)
}

func TestIngestInitializesSession(t *testing.T) {
	sessions := newFakeSessions()
	handler := makeIngestHandler(
		&fakeIngester{result: &ingest.Result{Source: "report.pdf", Chunks: 12}},
		sessions,
	)

	_, out, err := handler(context.Background(), nil, IngestDocumentInput{
		Path: "/tmp/report.pdf", SessionID: "fresh",
	})
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", out.Source)
	assert.Equal(t, 12, out.Chunks)
	assert.Equal(t, []string{"fresh"}, sessions.initCalls)
}

func TestIngestFailure(t *testing.T) {
	handler := makeIngestHandler(
		&fakeIngester{err: errors.New("unreadable file")},
		newFakeSessions(),
	)

	_, _, err := handler(context.Background(), nil, IngestDocumentInput{
		Path: "/tmp/x", SessionID: "s1",
	})
	assert.ErrorContains(t, err, "unreadable file")
}

func TestListSessions(t *testing.T) {
	sessions := newFakeSessions("a", "b")
	sessions.msgs["a"] = []session.Message{{Role: session.RoleUser, Content: "hi"}}

	handler := makeListSessionsHandler(sessions)
	_, out, err := handler(context.Background(), nil, ListSessionsInput{})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Count)
	assert.Equal(t, SessionInfo{ID: "a", Messages: 1}, out.Sessions[0])
	assert.Equal(t, SessionInfo{ID: "b", Messages: 0}, out.Sessions[1])
}

func TestListSessionsReadFailure(t *testing.T) {
	sessions := newFakeSessions("a", "b")
	sessions.msgsErr = map[string]error{"b": errors.New("corrupt session file")}

	handler := makeListSessionsHandler(sessions)
	_, _, err := handler(context.Background(), nil, ListSessionsInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
	assert.Contains(t, err.Error(), "corrupt session file")
}

func TestDeleteSessionCascades(t *testing.T) {
	docs := &fakeDocs{}
	handler := makeDeleteSessionHandler(newFakeSessions("s1"), docs)

	_, out, err := handler(context.Background(), nil, DeleteSessionInput{SessionID: "s1"})
	require.NoError(t, err)
	assert.True(t, out.Deleted)
	assert.True(t, out.DocumentsRemoved)
	assert.Equal(t, []string{"s1"}, docs.deleted)
}

func TestDeleteSessionKeepDocuments(t *testing.T) {
	docs := &fakeDocs{}
	handler := makeDeleteSessionHandler(newFakeSessions("s1"), docs)

	_, out, err := handler(context.Background(), nil, DeleteSessionInput{
		SessionID: "s1", KeepDocuments: true,
	})
	require.NoError(t, err)
	assert.True(t, out.Deleted)
	assert.False(t, out.DocumentsRemoved)
	assert.Empty(t, docs.deleted)
}

func TestDeleteUnknownSession(t *testing.T) {
	handler := makeDeleteSessionHandler(newFakeSessions(), &fakeDocs{})

	_, out, err := handler(context.Background(), nil, DeleteSessionInput{SessionID: "nope"})
	require.NoError(t, err)
	assert.False(t, out.Deleted)
}

func TestDeleteSessionDocumentRemovalFailure(t *testing.T) {
	docs := &fakeDocs{err: errors.New("qdrant down")}
	handler := makeDeleteSessionHandler(newFakeSessions("s1"), docs)

	_, _, err := handler(context.Background(), nil, DeleteSessionInput{SessionID: "s1"})
	assert.ErrorContains(t, err, "qdrant down")
}
