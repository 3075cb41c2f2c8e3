package controller

import (
	"github.com/pkg/errors"

	"github.com/go-go-golems/parley/pkg/conversation"
)

var (
	// ErrNoActiveConversation indicates a send without an active conversation.
	ErrNoActiveConversation = errors.New("no active conversation")
	// ErrNoUserMessageFound indicates a regenerate whose backward scan found
	// no user message before the given index.
	ErrNoUserMessageFound = errors.New("no user message found before index")
	// ErrInvalidTarget indicates an edit whose target is not a user message.
	ErrInvalidTarget = errors.New("edit target is not a user message")

	// ErrStreamInFlight indicates a mutating operation attempted while a
	// stream is open. The operation is rejected synchronously, never queued.
	ErrStreamInFlight = errors.New("a response is still in progress")
	// ErrNotStreaming indicates a cancel with no stream in flight.
	ErrNotStreaming = errors.New("no stream in flight")
)

// IsValidationError reports whether the operation was aborted before any
// mutation because its preconditions failed.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoActiveConversation) ||
		errors.Is(err, ErrNoUserMessageFound) ||
		errors.Is(err, ErrInvalidTarget) ||
		errors.Is(err, conversation.ErrIndexOutOfRange)
}

// IsConcurrencyError reports whether the operation was rejected because a
// stream is already in flight.
func IsConcurrencyError(err error) bool {
	return errors.Is(err, ErrStreamInFlight)
}
