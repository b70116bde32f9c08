// Package ingest orchestrates document ingestion: parse, split, and
// store under the owning session.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"docchat/internal/document"
	"docchat/internal/splitter"
	"docchat/internal/storage"
)

// Storage is the vector-store surface the pipeline writes to.
type Storage interface {
	EnsureCollection(ctx context.Context) error
	EnsureSessionIndex(ctx context.Context) error
	Store(ctx context.Context, chunks []storage.Chunk, sessionID string) error
}

// Loader parses a file into a document. Defaults to document.Load.
type Loader func(path string) (*document.Document, error)

// Result contains statistics for one ingested file.
type Result struct {
	Source string
	Chunks int
}

// FailedFile records a file that could not be ingested.
type FailedFile struct {
	Path   string
	Reason string
}

// BatchResult aggregates a multi-file ingestion.
type BatchResult struct {
	Ingested    []Result
	Failed      []FailedFile
	TotalChunks int
	Duration    time.Duration
}

// Pipeline ties loader, splitter and storage together. Collection
// setup runs lazily before the first store and only once per pipeline.
type Pipeline struct {
	loader   Loader
	splitter *splitter.Splitter
	store    Storage
	logger   *slog.Logger

	setupOnce sync.Once
	setupErr  error
}

// New creates an ingestion pipeline. A nil loader uses document.Load,
// a nil splitter uses the default chunk size and overlap.
func New(loader Loader, split *splitter.Splitter, store Storage, logger *slog.Logger) *Pipeline {
	if loader == nil {
		loader = document.Load
	}
	if split == nil {
		split = splitter.New(splitter.DefaultChunkSize, splitter.DefaultOverlap)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		loader:   loader,
		splitter: split,
		store:    store,
		logger:   logger,
	}
}

// Ingest parses the file at path, splits it and stores the chunks
// tagged with sessionID. An empty document stores nothing and is not
// an error. There is no rollback: a failure mid-store leaves the
// already-written chunks behind.
func (p *Pipeline) Ingest(ctx context.Context, path, sessionID string) (*Result, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID required")
	}

	if err := p.setup(ctx); err != nil {
		return nil, err
	}

	doc, err := p.loader(path)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	pieces := p.splitter.Split(doc.Text)
	p.logger.Debug("split document", "source", doc.Name, "chunks", len(pieces))

	chunks := make([]storage.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = storage.Chunk{
			ID:        uuid.New().String(),
			Source:    doc.Name,
			Index:     i,
			Text:      text,
			SessionID: sessionID,
		}
	}

	if err := p.store.Store(ctx, chunks, sessionID); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	p.logger.Info("ingested document", "source", doc.Name, "session", sessionID, "chunks", len(chunks))
	return &Result{Source: doc.Name, Chunks: len(chunks)}, nil
}

// IngestAll ingests every path, recording per-file failures without
// aborting the remaining files.
func (p *Pipeline) IngestAll(ctx context.Context, paths []string, sessionID string) *BatchResult {
	start := time.Now()
	batch := &BatchResult{}

	for _, path := range paths {
		result, err := p.Ingest(ctx, path, sessionID)
		if err != nil {
			p.logger.Warn("failed to ingest file", "path", path, "error", err)
			batch.Failed = append(batch.Failed, FailedFile{Path: path, Reason: err.Error()})
			continue
		}
		batch.Ingested = append(batch.Ingested, *result)
		batch.TotalChunks += result.Chunks
	}

	batch.Duration = time.Since(start)
	p.logger.Info("ingestion complete",
		"ingested", len(batch.Ingested),
		"failed", len(batch.Failed),
		"chunks", batch.TotalChunks,
		"duration", batch.Duration,
	)
	return batch
}

// setup ensures the collection and session index exist. Runs once; the
// underlying calls tolerate concurrent creation races.
func (p *Pipeline) setup(ctx context.Context) error {
	p.setupOnce.Do(func() {
		if err := p.store.EnsureCollection(ctx); err != nil {
			p.setupErr = fmt.Errorf("ensure collection: %w", err)
			return
		}
		if err := p.store.EnsureSessionIndex(ctx); err != nil {
			p.setupErr = fmt.Errorf("ensure session index: %w", err)
		}
	})
	return p.setupErr
}
