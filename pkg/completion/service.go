package completion

import (
	"context"

	"github.com/go-go-golems/parley/pkg/conversation"
)

// Request describes one assistant turn. History carries the conversation
// context including the anchoring user message; Prompt duplicates that
// message's text for services that only want the last input.
type Request struct {
	ConversationID  string
	TurnID          string
	Prompt          string
	History         []*conversation.Message
	ThinkingEnabled bool
	ModelID         string
}

// Service is a completion backend. Complete publishes the turn's delta
// events to the sinks carried on ctx, in arrival order, closing the turn
// with exactly one final, error, or interrupt event, and returns once the
// terminal event has been published. Transport framing, auth, and timeout
// handling live behind this interface; a stalled connection must surface as
// an error event.
type Service interface {
	Complete(ctx context.Context, req Request) error
}
