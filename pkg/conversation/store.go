package conversation

// Package conversation owns the ordered message history of one active
// conversation. The Store is an explicitly scoped state object with direct
// mutator methods; whoever needs the history holds a reference to it. There
// is deliberately no ambient singleton.
//
// Addressing is positional: a message's index in the sequence is its only
// identity as far as the store is concerned. Callers that need stable IDs can
// use the uuid carried on each message.

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	// ErrIndexOutOfRange indicates a message index outside the history.
	ErrIndexOutOfRange = errors.New("message index out of range")
	// ErrNotUserMessage indicates a mutation that is only valid on user messages.
	ErrNotUserMessage = errors.New("message is not a user message")
	// ErrMessageLocked indicates a mutation rejected because a stream is in
	// flight and the target message anchors or follows it.
	ErrMessageLocked = errors.New("message is referenced by an in-flight stream")
	// ErrStreamingConflict indicates an append that would create a second
	// streaming message.
	ErrStreamingConflict = errors.New("a streaming message is already present")
	// ErrMessageFinalized indicates a delta applied to a finalized message.
	ErrMessageFinalized = errors.New("message is already finalized")
)

// Store holds the message history for a single conversation.
type Store struct {
	conversationID string

	mu       sync.Mutex
	messages []*Message
	version  int64
}

type StoreOption func(*Store)

func WithConversationID(id string) StoreOption {
	return func(s *Store) {
		s.conversationID = id
	}
}

func WithMessages(messages ...*Message) StoreOption {
	return func(s *Store) {
		s.messages = append(s.messages, messages...)
	}
}

func NewStore(options ...StoreOption) *Store {
	ret := &Store{}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *Store) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *Store) SetConversationID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = id
}

// Reset replaces the whole history, e.g. when switching conversations.
func (s *Store) Reset(messages ...*Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append([]*Message(nil), messages...)
	s.version++
}

// Append adds a message at the end of the history. The only validation is the
// single-streaming invariant; everything else is the caller's contract.
func (s *Store) Append(msg *Message) error {
	if msg == nil {
		return errors.New("message is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Streaming && s.streamingIndexLocked() >= 0 {
		return ErrStreamingConflict
	}
	s.messages = append(s.messages, msg)
	s.version++
	log.Trace().
		Str("conversation_id", s.conversationID).
		Str("role", string(msg.Role)).
		Bool("streaming", msg.Streaming).
		Int("length", len(s.messages)).
		Msg("appended message")
	return nil
}

// TruncateAfter retains messages [0..index] and discards everything after.
// Applying it twice with the same index is a no-op the second time.
func (s *Store) TruncateAfter(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 {
		return ErrIndexOutOfRange
	}
	if index >= len(s.messages)-1 {
		return nil
	}
	for _, msg := range s.messages[index+1:] {
		if msg.Streaming {
			return ErrMessageLocked
		}
	}
	dropped := len(s.messages) - index - 1
	s.messages = s.messages[:index+1]
	s.version++
	log.Debug().
		Str("conversation_id", s.conversationID).
		Int("index", index).
		Int("dropped", dropped).
		Msg("truncated history")
	return nil
}

// ReplaceContent rewrites a user message's content in place. It is the edit
// primitive and is rejected while any stream is in flight, since the stream's
// anchoring user message must stay immutable.
func (s *Store) ReplaceContent(index int, newContent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.messages) {
		return ErrIndexOutOfRange
	}
	if s.streamingIndexLocked() >= 0 {
		return ErrMessageLocked
	}
	msg := s.messages[index]
	if msg.Role != RoleUser {
		return ErrNotUserMessage
	}
	msg.Content = newContent
	msg.LastUpdate = time.Now()
	s.version++
	return nil
}

// AppendContent applies a content delta to the streaming message at index.
// The first content delta permanently ends the message's thinking phase.
func (s *Store) AppendContent(index int, delta string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, err := s.streamingAtLocked(index)
	if err != nil {
		return err
	}
	msg.Content += delta
	msg.IsThinking = false
	msg.LastUpdate = time.Now()
	s.version++
	return nil
}

// AppendThinking applies a thinking delta to the streaming message at index.
// IsThinking is never re-enabled: a thinking delta that arrives after the
// first content delta still lands in the thinking text, but the message stays
// out of the thinking phase.
func (s *Store) AppendThinking(index int, delta string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, err := s.streamingAtLocked(index)
	if err != nil {
		return err
	}
	msg.Thinking += delta
	msg.LastUpdate = time.Now()
	s.version++
	return nil
}

// FinalizeOption adjusts how a streaming message is sealed.
type FinalizeOption func(*Message)

func WithError(reason string) FinalizeOption {
	return func(m *Message) {
		m.Error = reason
	}
}

func WithInterrupted() FinalizeOption {
	return func(m *Message) {
		m.Interrupted = true
	}
}

// Finalize clears the streaming flag on the message at index, preserving
// whatever content and thinking accumulated. Finalizing twice is an error.
func (s *Store) Finalize(index int, options ...FinalizeOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, err := s.streamingAtLocked(index)
	if err != nil {
		return err
	}
	for _, option := range options {
		option(msg)
	}
	msg.Streaming = false
	msg.IsThinking = false
	msg.LastUpdate = time.Now()
	s.version++
	return nil
}

// List returns a read-only snapshot of the finalized history, excluding any
// live streaming message.
func (s *Store) List() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]*Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if msg.Streaming {
			continue
		}
		ret = append(ret, msg.clone())
	}
	return ret
}

// Current returns a snapshot of the full history including the live
// streaming message, if any.
func (s *Store) Current() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]*Message, len(s.messages))
	for i, msg := range s.messages {
		ret[i] = msg.clone()
	}
	return ret
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// At returns a snapshot of the message at index.
func (s *Store) At(index int) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.messages) {
		return nil, ErrIndexOutOfRange
	}
	return s.messages[index].clone(), nil
}

// StreamingIndex returns the index of the live streaming message, or -1.
func (s *Store) StreamingIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamingIndexLocked()
}

func (s *Store) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// SaveToFile persists the current history as indented JSON.
func (s *Store) SaveToFile(filename string) error {
	msgs := s.Current()
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(msgs)
}

func (s *Store) streamingIndexLocked() int {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Streaming {
			return i
		}
	}
	return -1
}

func (s *Store) streamingAtLocked(index int) (*Message, error) {
	if index < 0 || index >= len(s.messages) {
		return nil, ErrIndexOutOfRange
	}
	msg := s.messages[index]
	if !msg.Streaming {
		return nil, ErrMessageFinalized
	}
	return msg, nil
}
