package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/storage"
)

// memStore collects stored chunks in memory and counts setup calls.
type memStore struct {
	chunks      []storage.Chunk
	sessions    []string
	ensureCalls int
	indexCalls  int
	storeErr    error
	ensureErr   error
}

func (m *memStore) EnsureCollection(context.Context) error {
	m.ensureCalls++
	return m.ensureErr
}

func (m *memStore) EnsureSessionIndex(context.Context) error {
	m.indexCalls++
	return nil
}

func (m *memStore) Store(_ context.Context, chunks []storage.Chunk, sessionID string) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.chunks = append(m.chunks, chunks...)
	m.sessions = append(m.sessions, sessionID)
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestTagsEveryChunkWithSession(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", strings.Repeat("searchable text content. ", 100))

	store := &memStore{}
	p := New(nil, nil, store, nil)

	result, err := p.Ingest(context.Background(), path, "s1")
	require.NoError(t, err)
	assert.Equal(t, "doc.txt", result.Source)
	assert.Greater(t, result.Chunks, 1)

	require.NotEmpty(t, store.chunks)
	for _, chunk := range store.chunks {
		assert.Equal(t, "s1", chunk.SessionID)
		assert.Equal(t, "doc.txt", chunk.Source)
		assert.NotEmpty(t, chunk.Text)
		assert.NotEmpty(t, chunk.ID)
	}
}

func TestIngestChunkOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", strings.Repeat("ordered chunk text follows here. ", 120))

	store := &memStore{}
	p := New(nil, nil, store, nil)

	_, err := p.Ingest(context.Background(), path, "s1")
	require.NoError(t, err)

	for i, chunk := range store.chunks {
		assert.Equal(t, i, chunk.Index)
	}
}

func TestIngestEmptyDocumentStoresNothing(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.txt", "")

	store := &memStore{}
	p := New(nil, nil, store, nil)

	result, err := p.Ingest(context.Background(), path, "s1")
	require.NoError(t, err)
	assert.Zero(t, result.Chunks)
	assert.Empty(t, store.chunks)
}

func TestIngestRequiresSession(t *testing.T) {
	p := New(nil, nil, &memStore{}, nil)
	_, err := p.Ingest(context.Background(), "whatever.txt", "")
	assert.Error(t, err)
}

func TestIngestMissingFileFails(t *testing.T) {
	store := &memStore{}
	p := New(nil, nil, store, nil)

	_, err := p.Ingest(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), "s1")
	assert.Error(t, err)
	assert.Empty(t, store.chunks)
}

func TestSetupRunsOnce(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "first document body")
	b := writeFile(t, dir, "b.txt", "second document body")

	store := &memStore{}
	p := New(nil, nil, store, nil)

	_, err := p.Ingest(context.Background(), a, "s1")
	require.NoError(t, err)
	_, err = p.Ingest(context.Background(), b, "s1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.ensureCalls)
	assert.Equal(t, 1, store.indexCalls)
}

func TestIngestAllContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", "perfectly fine content")
	bad := filepath.Join(dir, "missing.txt")
	alsoGood := writeFile(t, dir, "also-good.txt", "more fine content")

	store := &memStore{}
	p := New(nil, nil, store, nil)

	batch := p.IngestAll(context.Background(), []string{good, bad, alsoGood}, "s1")

	assert.Len(t, batch.Ingested, 2)
	require.Len(t, batch.Failed, 1)
	assert.Equal(t, bad, batch.Failed[0].Path)
	assert.NotEmpty(t, batch.Failed[0].Reason)
}

func TestIngestStoreErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "content to store")

	store := &memStore{storeErr: errors.New("upsert failed")}
	p := New(nil, nil, store, nil)

	_, err := p.Ingest(context.Background(), path, "s1")
	assert.ErrorContains(t, err, "upsert failed")
}

func TestIngestSetupErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "content")

	store := &memStore{ensureErr: errors.New("qdrant unreachable")}
	p := New(nil, nil, store, nil)

	_, err := p.Ingest(context.Background(), path, "s1")
	assert.ErrorContains(t, err, "qdrant unreachable")
}
