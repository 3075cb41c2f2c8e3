package events

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeStart opens an assistant turn; exactly one final or error
	// event closes it, and nothing follows the terminal event.
	EventTypeStart             EventType = "start"
	EventTypeFinal             EventType = "final"
	EventTypePartialCompletion EventType = "partial"
	// Separate partial stream for reasoning/thinking text
	EventTypePartialThinking EventType = "partial-thinking"
	EventTypeError           EventType = "error"
	EventTypeInterrupt       EventType = "interrupt"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// raw JSON this event was deserialized from, if it came off the wire
	payload []byte
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

var _ Event = &EventImpl{}

type EventStreamStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventStreamStart {
	return &EventStreamStart{
		EventImpl: EventImpl{Type_: EventTypeStart, Metadata_: metadata},
	}
}

var _ Event = &EventStreamStart{}

// EventPartialCompletion carries one content delta plus the full completion
// accumulated so far.
type EventPartialCompletion struct {
	EventImpl
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl:  EventImpl{Type_: EventTypePartialCompletion, Metadata_: metadata},
		Delta:      delta,
		Completion: completion,
	}
}

var _ Event = &EventPartialCompletion{}

// EventThinkingPartial mirrors EventPartialCompletion but is dedicated to
// reasoning/thinking text.
type EventThinkingPartial struct {
	EventImpl
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

func NewThinkingPartialEvent(metadata EventMetadata, delta string, completion string) *EventThinkingPartial {
	return &EventThinkingPartial{
		EventImpl:  EventImpl{Type_: EventTypePartialThinking, Metadata_: metadata},
		Delta:      delta,
		Completion: completion,
	}
}

var _ Event = &EventThinkingPartial{}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Text:      text,
	}
}

var _ Event = &EventFinal{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		ErrorString: err.Error(),
	}
}

var _ Event = &EventError{}

type EventInterrupt struct {
	EventImpl
	Text string `json:"text"`
}

func NewInterruptEvent(metadata EventMetadata, text string) *EventInterrupt {
	return &EventInterrupt{
		EventImpl: EventImpl{Type_: EventTypeInterrupt, Metadata_: metadata},
		Text:      text,
	}
}

var _ Event = &EventInterrupt{}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// EventMetadata is carried on every event of a turn and identifies which
// conversation and turn the event belongs to.
type EventMetadata struct {
	ID             uuid.UUID `json:"message_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	TurnID         string    `json:"turn_id,omitempty"`
	Model          string    `json:"model,omitempty"`
	StopReason     *string   `json:"stop_reason,omitempty"`
	Usage          *Usage    `json:"usage,omitempty"`

	Extra map[string]interface{} `json:"extra,omitempty"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.ConversationID != "" {
		e.Str("conversation_id", em.ConversationID)
	}
	if em.TurnID != "" {
		e.Str("turn_id", em.TurnID)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.StopReason != nil && *em.StopReason != "" {
		e.Str("stop_reason", *em.StopReason)
	}
	if em.Usage != nil {
		e.Int("input_tokens", em.Usage.InputTokens)
		e.Int("output_tokens", em.Usage.OutputTokens)
	}
	if len(em.Extra) > 0 {
		e.Dict("extra", zerolog.Dict().Fields(em.Extra))
	}
}

// ToTypedEvent re-reads the raw payload of a decoded event into a concrete
// event struct.
func ToTypedEvent[T any](e *EventImpl) (*T, bool) {
	var ret *T
	if err := json.Unmarshal(e.payload, &ret); err != nil {
		return nil, false
	}
	return ret, true
}

func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	e.payload = b

	switch e.Type_ {
	case EventTypeStart:
		ret, ok := ToTypedEvent[EventStreamStart](e)
		if !ok {
			return nil, errors.New("could not cast event to EventStreamStart")
		}
		ret.payload = b
		return ret, nil
	case EventTypePartialCompletion:
		ret, ok := ToTypedEvent[EventPartialCompletion](e)
		if !ok {
			return nil, errors.New("could not cast event to EventPartialCompletion")
		}
		ret.payload = b
		return ret, nil
	case EventTypePartialThinking:
		ret, ok := ToTypedEvent[EventThinkingPartial](e)
		if !ok {
			return nil, errors.New("could not cast event to EventThinkingPartial")
		}
		ret.payload = b
		return ret, nil
	case EventTypeFinal:
		ret, ok := ToTypedEvent[EventFinal](e)
		if !ok {
			return nil, errors.New("could not cast event to EventFinal")
		}
		ret.payload = b
		return ret, nil
	case EventTypeError:
		ret, ok := ToTypedEvent[EventError](e)
		if !ok {
			return nil, errors.New("could not cast event to EventError")
		}
		ret.payload = b
		return ret, nil
	case EventTypeInterrupt:
		ret, ok := ToTypedEvent[EventInterrupt](e)
		if !ok {
			return nil, errors.New("could not cast event to EventInterrupt")
		}
		ret.payload = b
		return ret, nil
	}

	return nil, errors.Errorf("unknown event type %q", e.Type_)
}

// IsTerminal reports whether the event closes its turn.
func IsTerminal(e Event) bool {
	switch e.Type() {
	case EventTypeFinal, EventTypeError, EventTypeInterrupt:
		return true
	case EventTypeStart, EventTypePartialCompletion, EventTypePartialThinking:
		return false
	}
	return false
}
