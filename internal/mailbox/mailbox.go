// Package mailbox implements the per-recipient typed message bus that agents
// use to talk to the Team Lead (and, for peer requests, to each other)
// without holding direct references to one another. Its only
// implementation, InMemory, keeps messages in process memory; they do not
// survive a restart.
package mailbox

import (
	"context"
	"sync"
	"time"

	"github.com/spark-corp/redshadow/pkg/models"
)

// Mailbox is the ordered message log keyed by recipient. The InMemory
// implementation is not durable.
type Mailbox interface {
	Register(agentID string)
	Unregister(agentID string)
	Send(ctx context.Context, from, to string, kind models.AgentMessageKind, payload map[string]any) error
	Broadcast(ctx context.Context, from string, kind models.AgentMessageKind, payload map[string]any) error
	// Receive returns every unread message for agentID in send order. When
	// markRead is true, delivery is exactly-once: the messages are marked
	// read atomically with the read and will not be redelivered.
	Receive(ctx context.Context, agentID string, markRead bool) ([]models.AgentMessage, error)
	HasMessages(agentID string) bool
	Count(agentID string) int
	Reset()
}

// InMemory is the reference Mailbox implementation, safe for concurrent use
// by multiple worker goroutines and the Team Lead's monitor loop.
type InMemory struct {
	mu       sync.Mutex
	members  map[string]bool
	inbox    map[string][]models.AgentMessage
	nextID   int64
}

// New constructs an empty mailbox.
func New() *InMemory {
	return &InMemory{
		members: make(map[string]bool),
		inbox:   make(map[string][]models.AgentMessage),
	}
}

func (m *InMemory) Register(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[agentID] = true
	if _, ok := m.inbox[agentID]; !ok {
		m.inbox[agentID] = nil
	}
}

func (m *InMemory) Unregister(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, agentID)
}

func (m *InMemory) Send(_ context.Context, from, to string, kind models.AgentMessageKind, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(from, to, kind, payload)
	return nil
}

// Broadcast sends to every registered recipient except from, appending one
// message per recipient so each recipient's receive order is preserved
// independently.
func (m *InMemory) Broadcast(_ context.Context, from string, kind models.AgentMessageKind, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for recipient := range m.members {
		if recipient == from {
			continue
		}
		m.appendLocked(from, recipient, kind, payload)
	}
	return nil
}

func (m *InMemory) appendLocked(from, to string, kind models.AgentMessageKind, payload map[string]any) {
	m.nextID++
	msg := models.AgentMessage{
		ID:      m.nextID,
		From:    from,
		To:      to,
		Kind:    kind,
		Payload: payload,
		Ts:      time.Now(),
	}
	m.inbox[to] = append(m.inbox[to], msg)
}

// Receive returns unread messages in strict send order and, when markRead is
// set, marks them read in the same critical section — no caller can observe
// a message as unread twice.
func (m *InMemory) Receive(_ context.Context, agentID string, markRead bool) ([]models.AgentMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue := m.inbox[agentID]
	unread := make([]models.AgentMessage, 0, len(queue))
	for i := range queue {
		if !queue[i].Read {
			unread = append(unread, queue[i])
			if markRead {
				queue[i].Read = true
			}
		}
	}
	return unread, nil
}

func (m *InMemory) HasMessages(agentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.inbox[agentID] {
		if !msg.Read {
			return true
		}
	}
	return false
}

func (m *InMemory) Count(agentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.inbox[agentID] {
		if !msg.Read {
			n++
		}
	}
	return n
}

func (m *InMemory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = make(map[string]bool)
	m.inbox = make(map[string][]models.AgentMessage)
	m.nextID = 0
}
