package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestNewEventFromJsonDispatchesByType(t *testing.T) {
	meta := EventMetadata{ID: uuid.New(), ConversationID: "c-1", TurnID: "t-1"}

	partial := NewPartialCompletionEvent(meta, "hi", "hi")
	b, err := json.Marshal(partial)
	require.NoError(t, err)

	decoded, err := NewEventFromJson(b)
	require.NoError(t, err)

	typed, ok := decoded.(*EventPartialCompletion)
	require.True(t, ok)
	require.Equal(t, "hi", typed.Delta)
	require.Equal(t, "c-1", typed.Metadata().ConversationID)
	require.Equal(t, b, typed.Payload())
}

func TestNewEventFromJsonRejectsUnknownType(t *testing.T) {
	_, err := NewEventFromJson([]byte(`{"type":"bogus"}`))
	require.Error(t, err)
}

func TestIsTerminal(t *testing.T) {
	meta := EventMetadata{ID: uuid.New()}

	require.False(t, IsTerminal(NewStartEvent(meta)))
	require.False(t, IsTerminal(NewPartialCompletionEvent(meta, "a", "a")))
	require.False(t, IsTerminal(NewThinkingPartialEvent(meta, "t", "t")))
	require.True(t, IsTerminal(NewFinalEvent(meta, "done")))
	require.True(t, IsTerminal(NewErrorEvent(meta, errors.New("boom"))))
	require.True(t, IsTerminal(NewInterruptEvent(meta, "partial")))
}

func TestChannelSinkDeliversInOrderAndDropsAfterClose(t *testing.T) {
	meta := EventMetadata{ID: uuid.New()}
	sink := NewChannelSink(4)

	require.NoError(t, sink.PublishEvent(NewPartialCompletionEvent(meta, "a", "a")))
	require.NoError(t, sink.PublishEvent(NewFinalEvent(meta, "a")))
	sink.Close()
	require.NoError(t, sink.PublishEvent(NewPartialCompletionEvent(meta, "late", "late")))

	var types []EventType
	for e := range sink.Events() {
		types = append(types, e.Type())
	}
	require.Equal(t, []EventType{EventTypePartialCompletion, EventTypeFinal}, types)
}
