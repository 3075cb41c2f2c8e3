package ingest

// Package ingest folds one stream of delta events into the pending assistant
// message of a conversation store. One Ingestor serves exactly one turn; it
// applies deltas strictly in arrival order and holds no buffering or
// reordering logic. The controller guarantees no second stream opens while
// one is in flight, so the ingestor never sees interleaved turns.

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/events"
)

type State string

const (
	StateIdle              State = "idle"
	StateOpen              State = "open"
	StateReceivingThinking State = "receiving-thinking"
	StateReceivingContent  State = "receiving-content"
	StateFinalized         State = "finalized"
)

var (
	// ErrNotOpen indicates a delta applied before Start or after finalization.
	ErrNotOpen = errors.New("ingestor has no open stream")
	// ErrAlreadyOpen indicates Start called while a stream is open.
	ErrAlreadyOpen = errors.New("ingestor already has an open stream")
)

// Outcome describes how a stream terminated.
type Outcome struct {
	// Err is the stream failure reason; empty on success.
	Err string
	// Interrupted is set when the stream was cancelled rather than closed by
	// a terminal event from the backend.
	Interrupted bool
	// Content and Thinking are the final accumulated texts.
	Content  string
	Thinking string
}

func (o Outcome) Success() bool {
	return o.Err == "" && !o.Interrupted
}

// Ingestor applies one turn's delta events to the store.
type Ingestor struct {
	store *conversation.Store

	state State
	index int
}

func New(store *conversation.Store) *Ingestor {
	return &Ingestor{
		store: store,
		state: StateIdle,
		index: -1,
	}
}

func (ing *Ingestor) State() State {
	return ing.state
}

// Start appends the pending assistant message to the store and opens the
// stream. The message must carry Streaming=true (see
// conversation.NewPendingAssistantMessage).
func (ing *Ingestor) Start(msg *conversation.Message) error {
	if ing.state != StateIdle {
		return ErrAlreadyOpen
	}
	if err := ing.store.Append(msg); err != nil {
		return err
	}
	ing.index = ing.store.Len() - 1
	ing.state = StateOpen
	log.Debug().
		Str("conversation_id", ing.store.ConversationID()).
		Int("index", ing.index).
		Msg("stream opened")
	return nil
}

// OnThinkingDelta appends thinking text to the pending message. After the
// first content delta the thinking phase is over for good; a late thinking
// delta still lands in the thinking text but does not re-enter the phase.
func (ing *Ingestor) OnThinkingDelta(text string) error {
	if !ing.open() {
		log.Debug().Str("state", string(ing.state)).Msg("thinking delta dropped")
		return ErrNotOpen
	}
	msg, err := ing.store.At(ing.index)
	if err != nil {
		return err
	}
	if err := ing.store.AppendThinking(ing.index, text); err != nil {
		return err
	}
	if msg.IsThinking {
		ing.state = StateReceivingThinking
	} else {
		log.Debug().Int("index", ing.index).Msg("late thinking delta appended outside thinking phase")
	}
	return nil
}

// OnContentDelta appends answer text to the pending message and permanently
// flips it out of the thinking phase.
func (ing *Ingestor) OnContentDelta(text string) error {
	if !ing.open() {
		log.Debug().Str("state", string(ing.state)).Msg("content delta dropped")
		return ErrNotOpen
	}
	if err := ing.store.AppendContent(ing.index, text); err != nil {
		return err
	}
	ing.state = StateReceivingContent
	return nil
}

// OnDone finalizes the pending message successfully.
func (ing *Ingestor) OnDone() error {
	return ing.finalize()
}

// OnError finalizes the pending message, preserving accumulated content and
// thinking and attaching the failure reason.
func (ing *Ingestor) OnError(reason string) error {
	return ing.finalize(conversation.WithError(reason))
}

// OnInterrupt finalizes the pending message after cancellation. Partial
// content stays exactly as accumulated; there is no rollback.
func (ing *Ingestor) OnInterrupt() error {
	return ing.finalize(conversation.WithInterrupted())
}

func (ing *Ingestor) finalize(options ...conversation.FinalizeOption) error {
	if !ing.open() {
		return ErrNotOpen
	}
	if err := ing.store.Finalize(ing.index, options...); err != nil {
		return err
	}
	ing.state = StateFinalized
	log.Debug().
		Str("conversation_id", ing.store.ConversationID()).
		Int("index", ing.index).
		Msg("stream finalized")
	return nil
}

// Apply dispatches a single event to the matching handler. Start events are
// acknowledged without mutation; unknown event types are dropped with a log
// line so one bad producer cannot wedge a stream.
func (ing *Ingestor) Apply(e events.Event) error {
	switch ev := e.(type) {
	case *events.EventStreamStart:
		return nil
	case *events.EventThinkingPartial:
		return ing.OnThinkingDelta(ev.Delta)
	case *events.EventPartialCompletion:
		return ing.OnContentDelta(ev.Delta)
	case *events.EventFinal:
		return ing.OnDone()
	case *events.EventError:
		return ing.OnError(ev.ErrorString)
	case *events.EventInterrupt:
		return ing.OnInterrupt()
	default:
		log.Warn().Str("event_type", string(e.Type())).Msg("unhandled event type in ingestor")
		return nil
	}
}

// Run consumes events from ch until a terminal event arrives or the channel
// closes, then reports the outcome. Context cancellation finalizes the
// pending message as interrupted. Run is the single consumer goroutine per
// open stream.
func (ing *Ingestor) Run(ctx context.Context, ch <-chan events.Event) (Outcome, error) {
	if !ing.open() {
		return Outcome{}, ErrNotOpen
	}
	for {
		select {
		case <-ctx.Done():
			// Deltas that were already delivered define the final content;
			// drain them before sealing the message.
			for {
				select {
				case e, ok := <-ch:
					if !ok {
						if err := ing.OnInterrupt(); err != nil {
							return Outcome{}, err
						}
						return ing.outcome()
					}
					if err := ing.Apply(e); err != nil {
						return Outcome{}, err
					}
					if events.IsTerminal(e) {
						return ing.outcome()
					}
					continue
				default:
				}
				break
			}
			if err := ing.OnInterrupt(); err != nil {
				return Outcome{}, err
			}
			return ing.outcome()
		case e, ok := <-ch:
			if !ok {
				// Producer went away without a terminal event; treat it as an
				// interrupt so the message is not left streaming forever.
				log.Warn().Int("index", ing.index).Msg("event channel closed without terminal event")
				if err := ing.OnInterrupt(); err != nil {
					return Outcome{}, err
				}
				return ing.outcome()
			}
			if err := ing.Apply(e); err != nil {
				return Outcome{}, err
			}
			if events.IsTerminal(e) {
				return ing.outcome()
			}
		}
	}
}

func (ing *Ingestor) outcome() (Outcome, error) {
	msg, err := ing.store.At(ing.index)
	if err != nil {
		return Outcome{}, err
	}
	ing.state = StateIdle
	return Outcome{
		Err:         msg.Error,
		Interrupted: msg.Interrupted,
		Content:     msg.Content,
		Thinking:    msg.Thinking,
	}, nil
}

func (ing *Ingestor) open() bool {
	switch ing.state {
	case StateOpen, StateReceivingThinking, StateReceivingContent:
		return true
	case StateIdle, StateFinalized:
		return false
	}
	return false
}
