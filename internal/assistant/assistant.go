// Package assistant orchestrates a chat turn: persist the user message,
// retrieve document context, build the prompt, stream the model
// response, and persist the answer.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docchat/internal/retriever"
	"docchat/internal/session"
)

// systemPrompt mirrors the assistant's role across every turn.
const systemPrompt = "You are a helpful assistant with access to relevent documents."

// historyWindow is the number of trailing history messages included in
// the prompt, keeping long sessions inside the model context window.
const historyWindow = 6

// Retriever fetches context passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query, sessionID string, k int) ([]string, error)
}

// Completer streams a chat completion for a message list.
type Completer interface {
	Stream(ctx context.Context, msgs []session.Message, onDelta func(string)) (string, error)
}

// History reads and appends session messages.
type History interface {
	Messages(sessionID string) ([]session.Message, error)
	Append(sessionID string, msg session.Message) error
}

// Assistant answers user questions grounded in session documents.
type Assistant struct {
	retriever Retriever
	completer Completer
	history   History
	logger    *slog.Logger
}

// New creates an Assistant.
func New(r Retriever, c Completer, h History, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{retriever: r, completer: c, history: h, logger: logger}
}

// buildPrompt assembles the message list for one turn: the system
// prompt, the trailing history window, then the current question with
// its retrieved context inlined.
func buildPrompt(history []session.Message, passages []string, question string) []session.Message {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	msgs := make([]session.Message, 0, len(history)+2)
	msgs = append(msgs, session.Message{Role: session.RoleSystem, Content: systemPrompt})
	msgs = append(msgs, history...)
	msgs = append(msgs, session.Message{
		Role:    session.RoleUser,
		Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(passages, "\n\n"), question),
	})
	return msgs
}

// Ask runs one chat turn for the session and returns the full answer.
// onDelta, if non-nil, receives response fragments as they stream in.
//
// Retrieval failures degrade to an answer without document context;
// only history or completion failures abort the turn.
func (a *Assistant) Ask(ctx context.Context, sessionID, question string, onDelta func(string)) (string, error) {
	history, err := a.history.Messages(sessionID)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}

	if err := a.history.Append(sessionID, session.Message{Role: session.RoleUser, Content: question}); err != nil {
		return "", fmt.Errorf("recording question: %w", err)
	}

	passages, err := a.retriever.Retrieve(ctx, question, sessionID, retriever.DefaultK)
	if err != nil {
		a.logger.Warn("context retrieval failed, answering without documents",
			"session", sessionID, "error", err)
		passages = nil
	}

	answer, err := a.completer.Stream(ctx, buildPrompt(history, passages, question), onDelta)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}

	if err := a.history.Append(sessionID, session.Message{Role: session.RoleAssistant, Content: answer}); err != nil {
		return "", fmt.Errorf("recording answer: %w", err)
	}

	return answer, nil
}
