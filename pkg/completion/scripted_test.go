package completion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/parley/pkg/events"
)

type recordingSink struct {
	events []events.Event
}

func (r *recordingSink) PublishEvent(e events.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) types() []events.EventType {
	ret := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		ret[i] = e.Type()
	}
	return ret
}

func TestScriptedServicePublishesInOrderWithFinal(t *testing.T) {
	svc := NewScriptedService(Script(Thinking("T1"), Content("C1"), Content("C2")))
	sink := &recordingSink{}
	ctx := events.WithEventSinks(context.Background(), sink)

	require.NoError(t, svc.Complete(ctx, Request{ConversationID: "c-1", Prompt: "hi"}))

	require.Equal(t, []events.EventType{
		events.EventTypeStart,
		events.EventTypePartialThinking,
		events.EventTypePartialCompletion,
		events.EventTypePartialCompletion,
		events.EventTypeFinal,
	}, sink.types())

	final, ok := sink.events[len(sink.events)-1].(*events.EventFinal)
	require.True(t, ok)
	require.Equal(t, "C1C2", final.Text)
}

func TestScriptedServiceErrorStepTerminatesTurn(t *testing.T) {
	svc := NewScriptedService(Script(Content("partial result"), Fail("network")))
	sink := &recordingSink{}
	ctx := events.WithEventSinks(context.Background(), sink)

	require.NoError(t, svc.Complete(ctx, Request{}))

	require.Equal(t, []events.EventType{
		events.EventTypeStart,
		events.EventTypePartialCompletion,
		events.EventTypeError,
	}, sink.types())
}

func TestScriptedServiceCancellationPublishesInterrupt(t *testing.T) {
	gate := make(chan struct{})
	svc := NewScriptedService(Script(Content("C1"), Gate(gate), Content("C2")))
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(events.WithEventSinks(context.Background(), sink))
	done := make(chan error, 1)
	go func() {
		done <- svc.Complete(ctx, Request{})
	}()
	cancel()

	err := <-done
	require.ErrorIs(t, err, context.Canceled)
	last := sink.events[len(sink.events)-1]
	require.Equal(t, events.EventTypeInterrupt, last.Type())
}

func TestScriptedServicePlaysScriptsInSequence(t *testing.T) {
	svc := NewScriptedService(
		Script(Content("first")),
		Script(Content("second")),
	)
	sink := &recordingSink{}
	ctx := events.WithEventSinks(context.Background(), sink)

	require.NoError(t, svc.Complete(ctx, Request{}))
	require.NoError(t, svc.Complete(ctx, Request{}))
	require.Equal(t, 2, svc.Calls())

	var finals []string
	for _, e := range sink.events {
		if f, ok := e.(*events.EventFinal); ok {
			finals = append(finals, f.Text)
		}
	}
	require.Equal(t, []string{"first", "second"}, finals)
}
