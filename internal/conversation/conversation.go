// Package conversation keeps a bounded, in-memory chat history per user.
// Histories are lost on restart.
package conversation

import (
	"sync"

	"github.com/HerbHall/mobchat/pkg/llm"
	"github.com/google/uuid"
)

// Manager tracks conversation history keyed by user ID. Safe for
// concurrent use.
type Manager struct {
	mu    sync.Mutex
	limit int
	convs map[uuid.UUID][]llm.Message
}

// NewManager creates a manager keeping at most limit messages per user.
// A limit of zero disables history.
func NewManager(limit int) *Manager {
	return &Manager{
		limit: max(limit, 0),
		convs: make(map[uuid.UUID][]llm.Message),
	}
}

// History returns a copy of the user's history, oldest first.
func (m *Manager) History(id uuid.UUID) []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.convs[id]
	out := make([]llm.Message, len(h))
	copy(out, h)
	return out
}

// Append adds messages to the user's history, keeping the most recent
// entries within the limit.
func (m *Manager) Append(id uuid.UUID, msgs ...llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.limit == 0 {
		return
	}
	h := append(m.convs[id], msgs...)
	m.convs[id] = trim(h, m.limit)
}

// Clear drops the user's history. It reports whether any existed.
func (m *Manager) Clear(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.convs[id]
	delete(m.convs, id)
	return ok
}

// SetLimit changes the per-user bound, trimming existing histories.
func (m *Manager) SetLimit(limit int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.limit = max(limit, 0)
	for id, h := range m.convs {
		if m.limit == 0 {
			delete(m.convs, id)
			continue
		}
		m.convs[id] = trim(h, m.limit)
	}
}

// Len returns the number of users with a stored history.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.convs)
}

// trim keeps the last limit messages in a fresh backing array so the
// dropped prefix can be collected.
func trim(h []llm.Message, limit int) []llm.Message {
	if len(h) <= limit {
		return h
	}
	out := make([]llm.Message, limit)
	copy(out, h[len(h)-limit:])
	return out
}
