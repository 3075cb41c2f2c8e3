package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a conversation's ordered history.
//
// A user message is created fully formed and never mutated afterwards,
// except as the deliberate target of an edit (which forks the conversation
// at that index). An assistant message is created empty with Streaming set,
// grown incrementally by delta application, and finalized exactly once.
type Message struct {
	ID         uuid.UUID `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Thinking   string    `json:"thinking,omitempty"`
	Streaming  bool      `json:"streaming"`
	IsThinking bool      `json:"isThinking"`

	// Error carries the stream failure reason when a turn terminated with an
	// error event. Partial content accumulated before the failure is kept.
	Error string `json:"error,omitempty"`
	// Interrupted marks a message finalized by cancellation rather than by a
	// terminal event from the completion backend.
	Interrupted bool `json:"interrupted,omitempty"`

	Time       time.Time `json:"time"`
	LastUpdate time.Time `json:"lastUpdate"`
}

type MessageOption func(*Message)

func WithID(id uuid.UUID) MessageOption {
	return func(m *Message) {
		m.ID = id
	}
}

func WithTime(t time.Time) MessageOption {
	return func(m *Message) {
		m.Time = t
		m.LastUpdate = t
	}
}

func NewMessage(role Role, content string, options ...MessageOption) *Message {
	ret := &Message{
		ID:         uuid.New(),
		Role:       role,
		Content:    content,
		Time:       time.Now(),
		LastUpdate: time.Now(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func NewUserMessage(content string, options ...MessageOption) *Message {
	return NewMessage(RoleUser, content, options...)
}

// NewPendingAssistantMessage allocates the empty assistant message for an
// opening stream. IsThinking starts true so that thinking deltas are accepted
// until the first content delta arrives.
func NewPendingAssistantMessage(options ...MessageOption) *Message {
	msg := NewMessage(RoleAssistant, "", options...)
	msg.Streaming = true
	msg.IsThinking = true
	return msg
}

// Finalized reports whether the message can no longer be mutated.
func (m *Message) Finalized() bool {
	return !m.Streaming
}

func (m *Message) View() string {
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.Content, "\n"))
}

func (m *Message) clone() *Message {
	c := *m
	return &c
}
