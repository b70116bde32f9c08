// Package tui is the interactive chat interface.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/ingest"
	"docchat/internal/tokens"
)

// Asker runs one chat turn, streaming response fragments to onDelta.
type Asker interface {
	Ask(ctx context.Context, sessionID, question string, onDelta func(string)) (string, error)
}

// Ingester indexes a document file into the session.
type Ingester interface {
	Ingest(ctx context.Context, path, sessionID string) (*ingest.Result, error)
}

type deltaMsg string

type doneMsg struct {
	answer string
	err    error
}

type ingestedMsg struct {
	result *ingest.Result
	err    error
}

// line is one rendered transcript entry.
type line struct {
	speaker string
	text    string
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	asker     Asker
	ingester  Ingester
	counter   *tokens.Counter
	sessionID string
	modelName string

	input    textinput.Model
	viewport viewport.Model

	transcript []line
	partial    string
	deltas     chan string
	streaming  bool
	status     string
	ready      bool
}

// New creates the chat model for a session. A nil counter disables the
// token readout in the status line.
func New(asker Asker, ingester Ingester, counter *tokens.Counter, sessionID, modelName string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents, or /ingest <path>"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		asker:     asker,
		ingester:  ingester,
		counter:   counter,
		sessionID: sessionID,
		modelName: modelName,
		input:     ti,
		viewport:  vp,
		status:    "Session " + sessionID + ". Type a question and press Enter.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// ask starts a chat turn. Deltas flow through m.deltas; the command
// resolves with doneMsg when the stream finishes.
func (m Model) ask(question string) tea.Cmd {
	deltas := m.deltas
	asker := m.asker
	sessionID := m.sessionID
	return func() tea.Msg {
		answer, err := asker.Ask(context.Background(), sessionID, question, func(delta string) {
			deltas <- delta
		})
		close(deltas)
		return doneMsg{answer: answer, err: err}
	}
}

// waitForDelta pumps one streamed fragment into the update loop.
func waitForDelta(deltas chan string) tea.Cmd {
	return func() tea.Msg {
		delta, ok := <-deltas
		if !ok {
			return nil
		}
		return deltaMsg(delta)
	}
}

func (m Model) ingest(path string) tea.Cmd {
	ingester := m.ingester
	sessionID := m.sessionID
	return func() tea.Msg {
		result, err := ingester.Ingest(context.Background(), path, sessionID)
		return ingestedMsg{result: result, err: err}
	}
}

// Update handles key, window and stream events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 2 + ih + 1 // header, input frame, status
		vh := msg.Height - reserved - th
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.streaming {
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				break
			}
			m.input.SetValue("")
			if path, ok := strings.CutPrefix(text, "/ingest "); ok {
				m.status = "Ingesting " + strings.TrimSpace(path) + "..."
				return m, m.ingest(strings.TrimSpace(path))
			}
			m.transcript = append(m.transcript, line{speaker: "you", text: text})
			m.partial = ""
			m.deltas = make(chan string, 64)
			m.streaming = true
			m.status = "Thinking..."
			m.viewport.SetContent(m.renderTranscript())
			m.viewport.GotoBottom()
			return m, tea.Batch(m.ask(text), waitForDelta(m.deltas))
		}

	case deltaMsg:
		m.partial += string(msg)
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, waitForDelta(m.deltas)

	case doneMsg:
		m.streaming = false
		m.partial = ""
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.transcript = append(m.transcript, line{speaker: "assistant", text: msg.answer})
			m.status = "Ready."
			if m.counter != nil {
				m.status = fmt.Sprintf("Ready. Reply ~%d tokens.", m.counter.Count(msg.answer))
			}
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case ingestedMsg:
		if msg.err != nil {
			m.status = "Ingest failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Ingested %s (%d chunks).", msg.result.Source, msg.result.Chunks)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("docchat") + " " +
		dimStyle.Render(fmt.Sprintf("session %s · %s", m.sessionID, m.modelName))
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 && m.partial == "" {
		return "No messages yet. Ingest a document and ask a question."
	}
	var b strings.Builder
	for _, l := range m.transcript {
		if l.speaker == "you" {
			b.WriteString(youStyle.Render("you") + "  " + l.text + "\n\n")
		} else {
			b.WriteString(botStyle.Render("assistant") + "  " + l.text + "\n\n")
		}
	}
	if m.streaming {
		b.WriteString(botStyle.Render("assistant") + "  " + m.partial)
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	youStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
