package ingest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/events"
)

func openIngestor(t *testing.T) (*conversation.Store, *Ingestor) {
	t.Helper()
	store := conversation.NewStore(conversation.WithMessages(conversation.NewUserMessage("question")))
	ing := New(store)
	require.NoError(t, ing.Start(conversation.NewPendingAssistantMessage()))
	return store, ing
}

func TestDeltaOrdering(t *testing.T) {
	store, ing := openIngestor(t)

	require.NoError(t, ing.OnThinkingDelta("T1"))
	require.NoError(t, ing.OnThinkingDelta("T2"))
	require.NoError(t, ing.OnContentDelta("C1"))
	require.NoError(t, ing.OnContentDelta("C2"))
	require.NoError(t, ing.OnDone())

	msg, err := store.At(1)
	require.NoError(t, err)
	require.Equal(t, "T1T2", msg.Thinking)
	require.Equal(t, "C1C2", msg.Content)
	require.False(t, msg.IsThinking)
	require.False(t, msg.Streaming)
}

func TestThinkingDeltaAfterContentDoesNotReenterThinking(t *testing.T) {
	store, ing := openIngestor(t)

	require.NoError(t, ing.OnThinkingDelta("T1"))
	require.NoError(t, ing.OnContentDelta("C1"))
	require.Equal(t, StateReceivingContent, ing.State())

	require.NoError(t, ing.OnThinkingDelta("T-late"))
	require.Equal(t, StateReceivingContent, ing.State())

	msg, err := store.At(1)
	require.NoError(t, err)
	require.Equal(t, "T1T-late", msg.Thinking)
	require.False(t, msg.IsThinking)
}

func TestErrorPreservesPartialContent(t *testing.T) {
	store, ing := openIngestor(t)

	require.NoError(t, ing.OnContentDelta("partial result"))
	require.NoError(t, ing.OnError("network"))

	msg, err := store.At(1)
	require.NoError(t, err)
	require.Equal(t, "partial result", msg.Content)
	require.Equal(t, "network", msg.Error)
	require.False(t, msg.Streaming)
}

func TestDeltasAfterFinalizationAreRejected(t *testing.T) {
	_, ing := openIngestor(t)

	require.NoError(t, ing.OnDone())
	require.ErrorIs(t, ing.OnContentDelta("late"), ErrNotOpen)
	require.ErrorIs(t, ing.OnThinkingDelta("late"), ErrNotOpen)
	require.ErrorIs(t, ing.OnDone(), ErrNotOpen)
}

func TestStartRejectsSecondStream(t *testing.T) {
	_, ing := openIngestor(t)
	require.ErrorIs(t, ing.Start(conversation.NewPendingAssistantMessage()), ErrAlreadyOpen)
}

func TestRunConsumesUntilFinal(t *testing.T) {
	store, ing := openIngestor(t)
	meta := events.EventMetadata{ID: uuid.New()}

	sink := events.NewChannelSink(8)
	require.NoError(t, sink.PublishEvent(events.NewStartEvent(meta)))
	require.NoError(t, sink.PublishEvent(events.NewThinkingPartialEvent(meta, "T1", "T1")))
	require.NoError(t, sink.PublishEvent(events.NewPartialCompletionEvent(meta, "C1", "C1")))
	require.NoError(t, sink.PublishEvent(events.NewFinalEvent(meta, "C1")))

	outcome, err := ing.Run(context.Background(), sink.Events())
	require.NoError(t, err)
	require.True(t, outcome.Success())
	require.Equal(t, "C1", outcome.Content)
	require.Equal(t, "T1", outcome.Thinking)
	require.Equal(t, StateIdle, ing.State())
	require.Equal(t, -1, store.StreamingIndex())
}

func TestRunFinalizesAsInterruptedOnCancel(t *testing.T) {
	store, ing := openIngestor(t)
	require.NoError(t, ing.OnContentDelta("part"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := ing.Run(ctx, make(chan events.Event))
	require.NoError(t, err)
	require.True(t, outcome.Interrupted)
	require.Equal(t, "part", outcome.Content)

	msg, err := store.At(1)
	require.NoError(t, err)
	require.False(t, msg.Streaming)
	require.True(t, msg.Interrupted)
	require.Equal(t, "part", msg.Content)
}

func TestRunFinalizesWhenChannelClosesWithoutTerminal(t *testing.T) {
	_, ing := openIngestor(t)

	sink := events.NewChannelSink(2)
	require.NoError(t, sink.PublishEvent(events.NewPartialCompletionEvent(events.EventMetadata{}, "C1", "C1")))
	sink.Close()

	outcome, err := ing.Run(context.Background(), sink.Events())
	require.NoError(t, err)
	require.True(t, outcome.Interrupted)
	require.Equal(t, "C1", outcome.Content)
}
