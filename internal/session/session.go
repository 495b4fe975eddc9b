// Package session provides the conversation history consumed by the
// orchestration loop. The loop treats history as an opaque text block; this
// provider only manages the rolling window.
package session

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultMaxHistory is the default number of prior exchanges kept per session.
const DefaultMaxHistory = 2

type exchange struct {
	question string
	answer   string
}

// Manager keeps a bounded exchange log per session. Safe for concurrent
// query flows.
type Manager struct {
	mu         sync.Mutex
	maxHistory int
	counter    int
	sessions   map[string][]exchange
}

// NewManager creates a session manager keeping at most maxHistory exchanges.
func NewManager(maxHistory int) *Manager {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Manager{
		maxHistory: maxHistory,
		sessions:   make(map[string][]exchange),
	}
}

// Create returns a fresh session ID.
func (m *Manager) Create() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	id := fmt.Sprintf("session_%d", m.counter)
	m.sessions[id] = nil
	return id
}

// AddExchange appends one question/answer pair, evicting the oldest exchange
// beyond the window.
func (m *Manager) AddExchange(sessionID, question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := append(m.sessions[sessionID], exchange{question: question, answer: answer})
	if len(log) > m.maxHistory {
		log = log[len(log)-m.maxHistory:]
	}
	m.sessions[sessionID] = log
}

// History renders the session's prior exchanges as a plain text block, empty
// when the session is new or unknown.
func (m *Manager) History(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.sessions[sessionID]
	if len(log) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range log {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "User: %s\nAssistant: %s", e.question, e.answer)
	}
	return sb.String()
}

// Clear removes a session's history.
func (m *Manager) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}
