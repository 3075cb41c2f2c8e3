package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"
)

// EventRouter fans stream events out to UI-side handlers over an in-process
// watermill pub/sub. The engine publishes through a WatermillSink; handlers
// (printers, title listeners, loggers) subscribe by topic.
type EventRouter struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
	verbose    bool
}

type EventRouterOption func(*EventRouter)

func WithLogger(logger watermill.LoggerAdapter) EventRouterOption {
	return func(r *EventRouter) {
		r.logger = logger
	}
}

func WithVerbose(verbose bool) EventRouterOption {
	return func(r *EventRouter) {
		r.verbose = verbose
	}
}

func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	ret := &EventRouter{
		logger: watermill.NopLogger{},
	}

	for _, o := range options {
		o(ret)
	}

	goPubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	ret.Publisher = goPubSub
	ret.Subscriber = goPubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}

	ret.router = router

	return ret, nil
}

func (e *EventRouter) Close() error {
	log.Debug().Msg("closing publisher")
	if err := e.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close pubsub")
		// not returning just yet
	}

	log.Debug().Msg("closing router")
	if err := e.router.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close router")
		return err
	}

	return nil
}

func (e *EventRouter) AddHandler(name string, topic string, f func(msg *message.Message) error) {
	e.router.AddNoPublisherHandler(name, topic, e.Subscriber, f)
}

// DumpRawEvents is a debugging handler that pretty-prints every event payload.
func (e *EventRouter) DumpRawEvents(msg *message.Message) error {
	defer msg.Ack()

	var s map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &s); err != nil {
		return err
	}
	if !e.verbose {
		if meta, ok := s["meta"].(map[string]interface{}); ok {
			s["id"] = meta["message_id"]
		}
		delete(s, "meta")
	}
	s_, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(s_))
	return nil
}

// Running is closed once all handlers are up; wait on it before publishing.
func (e *EventRouter) Running() chan struct{} {
	return e.router.Running()
}

func (e *EventRouter) IsRunning() bool {
	return e.router.IsRunning()
}

func (e *EventRouter) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}
