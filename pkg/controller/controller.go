package controller

// Package controller orchestrates user-initiated conversation operations.
// Send, edit, and regenerate validate synchronously, mutate the store,
// and open at most one stream at a time; delta application is delegated to
// one ingestor goroutine per open stream. Post-stream side effects (title
// generation, persistence) never roll back or surface as user errors.

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/completion"
	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/directory"
	"github.com/go-go-golems/parley/pkg/events"
	"github.com/go-go-golems/parley/pkg/ingest"
)

const streamBufferSize = 64

type Controller struct {
	store  *conversation.Store
	svc    completion.Service
	dir    directory.Directory
	flight *FlightState

	// sinks receive every stream event in addition to the per-stream
	// ingestor channel, e.g. a watermill sink feeding UI handlers.
	sinks []events.EventSink

	modelID         string
	thinkingEnabled bool
	kind            string

	wg sync.WaitGroup
}

type Option func(*Controller)

func WithStore(store *conversation.Store) Option {
	return func(c *Controller) {
		c.store = store
	}
}

func WithDirectory(dir directory.Directory) Option {
	return func(c *Controller) {
		c.dir = dir
	}
}

func WithModel(modelID string) Option {
	return func(c *Controller) {
		c.modelID = modelID
	}
}

func WithThinking(enabled bool) Option {
	return func(c *Controller) {
		c.thinkingEnabled = enabled
	}
}

// WithKind sets the conversation type tag used when creating conversations.
func WithKind(kind string) Option {
	return func(c *Controller) {
		c.kind = kind
	}
}

func WithEventSinks(sinks ...events.EventSink) Option {
	return func(c *Controller) {
		c.sinks = append(c.sinks, sinks...)
	}
}

func NewController(svc completion.Service, options ...Option) *Controller {
	ret := &Controller{
		svc:    svc,
		flight: NewFlightState(),
		kind:   "chat",
	}
	for _, option := range options {
		option(ret)
	}
	if ret.store == nil {
		ret.store = conversation.NewStore()
	}
	return ret
}

func (c *Controller) Store() *conversation.Store {
	return c.store
}

func (c *Controller) ActiveConversationID() string {
	return c.store.ConversationID()
}

func (c *Controller) IsStreaming() bool {
	return c.flight.InFlight()
}

// StartConversation creates a new conversation in the directory and makes it
// the active one.
func (c *Controller) StartConversation(ctx context.Context, title string) (*directory.Conversation, error) {
	if c.dir == nil {
		return nil, errors.New("no directory configured")
	}
	if c.flight.InFlight() {
		return nil, ErrStreamInFlight
	}
	conv, err := c.dir.Create(ctx, title, c.kind)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}
	c.store.Reset()
	c.store.SetConversationID(conv.ID)
	log.Debug().Str("conversation_id", conv.ID).Msg("started conversation")
	return conv, nil
}

// OpenConversation loads an existing conversation's history into the store
// and makes it the active one.
func (c *Controller) OpenConversation(ctx context.Context, id string) error {
	if c.dir == nil {
		return errors.New("no directory configured")
	}
	if c.flight.InFlight() {
		return ErrStreamInFlight
	}
	msgs, err := c.dir.FetchMessages(ctx, id)
	if err != nil {
		return errors.Wrap(err, "failed to fetch messages")
	}
	c.store.Reset(msgs...)
	c.store.SetConversationID(id)
	log.Debug().Str("conversation_id", id).Int("messages", len(msgs)).Msg("opened conversation")
	return nil
}

// Send appends a user message and opens a stream for its reply. It fails
// with ErrNoActiveConversation when no conversation is active and with
// ErrStreamInFlight while a stream is open; neither failure mutates state.
func (c *Controller) Send(ctx context.Context, text string) error {
	if err := c.flight.Begin(); err != nil {
		return err
	}
	if c.store.ConversationID() == "" {
		c.flight.Finish()
		return ErrNoActiveConversation
	}
	if err := c.store.Append(conversation.NewUserMessage(text)); err != nil {
		c.flight.Finish()
		return err
	}
	return c.startStream(ctx, text)
}

// Regenerate scans strictly backward from index-1 for the nearest user
// message, truncates the history to it (dropping the stale reply and
// everything after), and opens a fresh stream from its content.
func (c *Controller) Regenerate(ctx context.Context, index int) error {
	if err := c.flight.Begin(); err != nil {
		return err
	}
	msgs := c.store.Current()
	if index < 0 || index > len(msgs) {
		c.flight.Finish()
		return errors.Wrapf(conversation.ErrIndexOutOfRange, "regenerate index %d", index)
	}
	userIndex := -1
	for i := index - 1; i >= 0; i-- {
		if msgs[i].Role == conversation.RoleUser {
			userIndex = i
			break
		}
	}
	if userIndex < 0 {
		c.flight.Finish()
		return ErrNoUserMessageFound
	}
	if err := c.store.TruncateAfter(userIndex); err != nil {
		c.flight.Finish()
		return err
	}
	return c.startStream(ctx, msgs[userIndex].Content)
}

// Edit replaces a user message's content, truncates everything after it
// (the conversation forks at that point), and opens a fresh stream from the
// new content.
func (c *Controller) Edit(ctx context.Context, index int, newContent string) error {
	if err := c.flight.Begin(); err != nil {
		return err
	}
	msg, err := c.store.At(index)
	if err != nil {
		c.flight.Finish()
		return errors.Wrapf(ErrInvalidTarget, "edit index %d", index)
	}
	if msg.Role != conversation.RoleUser {
		c.flight.Finish()
		return ErrInvalidTarget
	}
	if err := c.store.ReplaceContent(index, newContent); err != nil {
		c.flight.Finish()
		return err
	}
	if err := c.store.TruncateAfter(index); err != nil {
		c.flight.Finish()
		return err
	}
	return c.startStream(ctx, newContent)
}

// Cancel aborts the open stream. The partially built message is finalized
// exactly as accumulated, marked non-streaming; there is no rollback.
func (c *Controller) Cancel() error {
	return c.flight.Cancel()
}

// Wait blocks until the current stream goroutine (if any) has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// startStream is called with the flight slot held; it releases the slot when
// the stream terminates.
func (c *Controller) startStream(ctx context.Context, prompt string) error {
	ing := ingest.New(c.store)
	if err := ing.Start(conversation.NewPendingAssistantMessage()); err != nil {
		c.flight.Finish()
		return err
	}

	req := completion.Request{
		ConversationID:  c.store.ConversationID(),
		TurnID:          uuid.NewString(),
		Prompt:          prompt,
		History:         c.store.List(),
		ThinkingEnabled: c.thinkingEnabled,
		ModelID:         c.modelID,
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.flight.SetCancel(cancel)

	sink := events.NewChannelSink(streamBufferSize)
	publishCtx := events.WithEventSinks(runCtx, append(append([]events.EventSink{}, c.sinks...), sink)...)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		go func() {
			defer sink.Close()
			if err := c.svc.Complete(publishCtx, req); err != nil {
				// The terminal error/interrupt event already carries this to
				// the ingestor; nothing to surface here.
				log.Debug().Err(err).Str("turn_id", req.TurnID).Msg("completion service returned error")
			}
		}()

		outcome, err := ing.Run(runCtx, sink.Events())
		if err != nil {
			log.Error().Err(err).Str("turn_id", req.TurnID).Msg("ingestor failed")
			c.flight.Finish()
			return
		}
		if outcome.Success() {
			c.afterStream(runCtx)
		}
		c.flight.Finish()
	}()

	return nil
}

// afterStream runs the post-stream side effects of a successful turn:
// persisting the completed exchange and, when it was the conversation's
// first, requesting title generation. Failures are logged and otherwise
// ignored; they never surface as user errors.
func (c *Controller) afterStream(ctx context.Context) {
	if c.dir == nil {
		return
	}
	id := c.store.ConversationID()
	msgs := c.store.List()
	if len(msgs) < 2 {
		return
	}

	if err := c.dir.ReplaceMessages(ctx, id, msgs...); err != nil {
		log.Warn().Err(err).Str("conversation_id", id).Msg("failed to persist history")
	}

	if len(msgs) == 2 && msgs[0].Role == conversation.RoleUser {
		if err := c.dir.GenerateTitle(ctx, id, msgs[0].Content); err != nil {
			log.Warn().Err(err).Str("conversation_id", id).Msg("title generation failed")
		}
	}
}
