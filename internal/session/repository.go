// Package session persists chat history keyed by session ID.
//
// Histories live in a single JSON file mapping session IDs to ordered
// message lists. The file is loaded once on first access and rewritten
// after every mutation, so a crash loses at most the in-flight turn.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Message roles as they appear on the wire and in the history file.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ErrSessionNotFound is returned by operations that require an existing
// session when the given ID is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Repository stores per-session message histories in a JSON file.
// All methods are safe for concurrent use.
type Repository struct {
	path string

	mu       sync.Mutex
	loaded   bool
	sessions map[string][]Message
}

// NewRepository creates a repository backed by the given file path.
// The file is created lazily on first write.
func NewRepository(path string) *Repository {
	return &Repository{
		path:     path,
		sessions: make(map[string][]Message),
	}
}

// load reads the backing file into memory. Called with mu held.
func (r *Repository) load() error {
	if r.loaded {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.loaded = true
			return nil
		}
		return fmt.Errorf("reading session file: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.sessions); err != nil {
			return fmt.Errorf("parsing session file %s: %w", r.path, err)
		}
	}
	if r.sessions == nil {
		r.sessions = make(map[string][]Message)
	}
	r.loaded = true
	return nil
}

// persist writes the in-memory state back to disk. Called with mu held.
func (r *Repository) persist() error {
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating session dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(r.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sessions: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

// Init registers a session ID with an empty history. Initializing an
// existing session is a no-op and preserves its messages.
func (r *Repository) Init(sessionID string) error {
	if sessionID == "" {
		return errors.New("session ID must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return err
	}
	if _, ok := r.sessions[sessionID]; ok {
		return nil
	}
	r.sessions[sessionID] = []Message{}
	return r.persist()
}

// Exists reports whether the session ID is known.
func (r *Repository) Exists(sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return false, err
	}
	_, ok := r.sessions[sessionID]
	return ok, nil
}

// Messages returns a copy of the session's history in append order.
// Returns ErrSessionNotFound for unknown IDs.
func (r *Repository) Messages(sessionID string) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return nil, err
	}
	msgs, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Append adds a message to the session's history and persists the file.
// Returns ErrSessionNotFound for unknown IDs.
func (r *Repository) Append(sessionID string, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return err
	}
	if _, ok := r.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	r.sessions[sessionID] = append(r.sessions[sessionID], msg)
	return r.persist()
}

// List returns all known session IDs in sorted order.
func (r *Repository) List() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a session and its history. Returns ErrSessionNotFound
// for unknown IDs.
func (r *Repository) Delete(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return err
	}
	if _, ok := r.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(r.sessions, sessionID)
	return r.persist()
}
