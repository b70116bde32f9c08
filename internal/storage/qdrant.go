// Package storage owns the shared Qdrant collection: its lifecycle,
// the session payload index, and all upsert/search operations.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Embedder maps text to fixed-dimension vectors. The store embeds chunk
// text at store time and query text at search time; vectors never leave
// this package.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store wraps the Qdrant client with collection management, session
// tagging and similarity search.
type Store struct {
	client     *qdrant.Client
	embedder   Embedder
	collection string
	timeout    time.Duration
}

// New creates a Store and validates connectivity with a retried health
// check, failing fast if Qdrant is unreachable. timeout bounds every
// subsequent network call; zero means 30s.
func New(host string, port int, collection string, timeout time.Duration, embedder Embedder) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	if collection == "" {
		collection = DefaultCollection
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Store{
		client:     client,
		embedder:   embedder,
		collection: collection,
		timeout:    timeout,
	}

	if err := s.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return s, nil
}

// opCtx bounds a network call with the configured timeout.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// healthCheckWithRetry performs the startup health check with
// exponential backoff. Initial interval 500ms, max interval 10s, max
// elapsed 30s.
func (s *Store) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, exponentialBackoff)
}

// Health performs a single health check against Qdrant.
func (s *Store) Health(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection lazily creates the shared collection with 384-dim
// cosine vectors. Idempotent: an existence check runs first, and a
// concurrent-create race that surfaces as AlreadyExists is success.
func (s *Store) EnsureCollection(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorDimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// EnsureSessionIndex creates the keyword payload index on session_id,
// required for server-side session filtering. AlreadyExists is
// swallowed; anything else is fatal.
func (s *Store) EnsureSessionIndex(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      SessionField,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("create %s index: %w", SessionField, err)
	}
	return nil
}

// isAlreadyExists reports whether a gRPC error carries the AlreadyExists
// status. Matching on the status code keeps duplicate-create races
// tolerable without inspecting message text.
func isAlreadyExists(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.AlreadyExists
}

// Store tags every chunk with sessionID, embeds its text and upserts
// the (vector, payload) pairs. There is no deduplication: re-ingesting
// the same document creates duplicate entries. An empty chunk slice is
// a no-op.
func (s *Store) Store(ctx context.Context, chunks []Chunk, sessionID string) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		if chunk.Text == "" {
			return fmt.Errorf("%w: chunk %d from %s", ErrEmptyChunk, i, chunk.Source)
		}
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	for i, vec := range vectors {
		if len(vec) != VectorDimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(vec), VectorDimension)
		}
	}

	// Batch upserts in groups of 100.
	const batchSize = 100
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))

		points := make([]*qdrant.PointStruct, 0, end-i)
		for j := i; j < end; j++ {
			chunk := chunks[j]
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(chunk.ID),
				Vectors: qdrant.NewVectors(vectors[j]...),
				Payload: qdrant.NewValueMap(map[string]any{
					"text":        chunk.Text,
					"source":      chunk.Source,
					"chunk_index": chunk.Index,
					SessionField:  sessionID,
				}),
			})
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// upsertWithRetry performs one upsert with exponential backoff.
func (s *Store) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		opCtx, cancel := s.opCtx(ctx)
		defer cancel()
		_, err := s.client.Upsert(opCtx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// Search embeds the query and runs nearest-neighbor search over the
// whole collection, returning up to limit chunks most-similar first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]ScoredChunk, error) {
	return s.search(ctx, query, nil, limit)
}

// SearchSession is Search with a server-side session_id equality
// filter, so only the session's own chunks can appear as candidates.
func (s *Store) SearchSession(ctx context.Context, query, sessionID string, limit int) ([]ScoredChunk, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(SessionField, sessionID),
		},
	}
	return s.search(ctx, query, filter, limit)
}

func (s *Store) search(ctx context.Context, query string, filter *qdrant.Filter, limit int) ([]ScoredChunk, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), VectorDimension)
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	results, err := s.client.Query(opCtx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	chunks := make([]ScoredChunk, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		chunks = append(chunks, ScoredChunk{
			Chunk: Chunk{
				ID:        result.Id.GetUuid(),
				Source:    payload["source"].GetStringValue(),
				Index:     int(payload["chunk_index"].GetIntegerValue()),
				Text:      payload["text"].GetStringValue(),
				SessionID: payload[SessionField].GetStringValue(),
			},
			Score: result.Score,
		})
	}
	return chunks, nil
}

// DeleteSession removes every chunk tagged with sessionID. Called when
// a session is deleted so its documents do not linger in the shared
// collection.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(SessionField, sessionID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("delete session %s chunks: %w", sessionID, err)
	}
	return nil
}

// Count returns the number of points in the collection.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	collection, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("get collection: %w", err)
	}
	return collection.GetPointsCount(), nil
}

// Close closes the Qdrant client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
