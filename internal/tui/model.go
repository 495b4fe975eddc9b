// Package tui provides the interactive chat surface. It is thin I/O: all
// retrieval and generation happens behind the service port.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ChatPort is the TUI-facing subset of the RAG service.
type ChatPort interface {
	NewSession() string
	Query(ctx context.Context, sessionID, question string) (string, []string, error)
}

type turn struct {
	question string
	answer   string
	sources  []string
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service   ChatPort
	sessionID string
	input     textinput.Model
	viewport  viewport.Model
	turns     []turn
	overview  string
	status    string
	ready     bool
}

// New creates a new chat model. The overview line is shown under the header.
func New(service ChatPort, overview string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the courses and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:   service,
		sessionID: service.NewSession(),
		input:     ti,
		viewport:  vp,
		overview:  overview,
		status:    "Ready. Ask a question about your courses.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2 // header + overview
		totalFooterLines := 1 // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.viewport.SetContent(m.renderTranscript())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				answer, sources, err := m.service.Query(context.Background(), m.sessionID, q)
				if err != nil {
					m.status = "Error: " + err.Error()
				} else {
					m.turns = append(m.turns, turn{question: q, answer: answer, sources: sources})
					m.status = fmt.Sprintf("%d exchanges this session", len(m.turns))
					m.input.SetValue("")
				}
				m.viewport.SetContent(m.renderTranscript())
				m.viewport.GotoBottom()
				return m, nil
			}
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
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
	header := lipgloss.NewStyle().Bold(true).Render("Course Materials Assistant")
	overview := overviewStyle.Render(m.overview)
	transcript := transcriptStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + overview + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No questions yet."
	}
	var sb strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(questionStyle.Render("You: " + t.question))
		sb.WriteString("\n")
		sb.WriteString(t.answer)
		if len(t.sources) > 0 {
			sb.WriteString("\n")
			sb.WriteString(sourceStyle.Render("Sources: " + strings.Join(t.sources, ", ")))
		}
	}
	return sb.String()
}

var (
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	overviewStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle   = lipgloss.NewStyle().Bold(true)
	sourceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
