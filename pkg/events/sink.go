package events

import (
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// EventSink represents a destination for stream events. Implementations can
// publish events to different backends like watermill, logging systems, or an
// in-process channel.
type EventSink interface {
	// PublishEvent publishes an event to the sink.
	// Returns an error if the event could not be published.
	PublishEvent(event Event) error
}

// NullSink is a no-op EventSink implementation that discards all events.
// Useful for testing or when event publishing is not desired.
type NullSink struct{}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (n *NullSink) PublishEvent(event Event) error {
	return nil
}

var _ EventSink = (*NullSink)(nil)

// WatermillSink publishes events to a watermill Publisher. This allows events
// to be distributed through the message bus to multiple subscribers.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

// PublishEvent serializes the event to JSON and sends it as a watermill
// message on the sink's topic.
func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := w.publisher.Publish(w.topic, msg); err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type())).Msg("published event to watermill")
	return nil
}

var _ EventSink = (*WatermillSink)(nil)

// ChannelSink delivers typed events to a channel. One ChannelSink serves
// exactly one stream: the producer publishes deltas in arrival order, the
// consumer ranges over Events until the sink is closed after the terminal
// event. Publishing blocks when the buffer is full, so the transport's
// ordering carries through unchanged.
type ChannelSink struct {
	ch chan Event

	mu     sync.Mutex
	closed bool
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{
		ch: make(chan Event, buffer),
	}
}

func (c *ChannelSink) PublishEvent(event Event) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		log.Debug().Str("event_type", string(event.Type())).Msg("event dropped on closed channel sink")
		return nil
	}
	c.mu.Unlock()
	c.ch <- event
	return nil
}

// Events returns the receive side of the sink.
func (c *ChannelSink) Events() <-chan Event {
	return c.ch
}

// Close marks the sink closed and closes the event channel. Events published
// after Close are discarded.
func (c *ChannelSink) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

var _ EventSink = (*ChannelSink)(nil)
