package conversation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendRejectsSecondStreamingMessage(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(NewUserMessage("hello")))
	require.NoError(t, s.Append(NewPendingAssistantMessage()))

	err := s.Append(NewPendingAssistantMessage())
	require.ErrorIs(t, err, ErrStreamingConflict)
	require.Equal(t, 2, s.Len())
}

func TestTruncateAfterIsIdempotent(t *testing.T) {
	s := NewStore(WithMessages(
		NewUserMessage("a"),
		NewMessage(RoleAssistant, "b"),
		NewUserMessage("c"),
		NewMessage(RoleAssistant, "d"),
	))

	require.NoError(t, s.TruncateAfter(1))
	require.Equal(t, 2, s.Len())
	v := s.Version()

	require.NoError(t, s.TruncateAfter(1))
	require.Equal(t, 2, s.Len())
	require.Equal(t, v, s.Version())
}

func TestTruncateAfterRejectsNegativeIndex(t *testing.T) {
	s := NewStore(WithMessages(NewUserMessage("a")))
	require.ErrorIs(t, s.TruncateAfter(-1), ErrIndexOutOfRange)
}

func TestTruncateAfterRefusesToDropStreamingMessage(t *testing.T) {
	s := NewStore(WithMessages(NewUserMessage("a")))
	require.NoError(t, s.Append(NewPendingAssistantMessage()))

	require.ErrorIs(t, s.TruncateAfter(0), ErrMessageLocked)
	require.Equal(t, 2, s.Len())
}

func TestReplaceContentOnUserMessage(t *testing.T) {
	s := NewStore(WithMessages(NewUserMessage("a"), NewMessage(RoleAssistant, "b")))

	require.NoError(t, s.ReplaceContent(0, "a2"))
	msg, err := s.At(0)
	require.NoError(t, err)
	require.Equal(t, "a2", msg.Content)
}

func TestReplaceContentRejectsAssistantMessage(t *testing.T) {
	s := NewStore(WithMessages(NewUserMessage("a"), NewMessage(RoleAssistant, "b")))
	require.ErrorIs(t, s.ReplaceContent(1, "nope"), ErrNotUserMessage)
}

func TestReplaceContentRejectedWhileStreaming(t *testing.T) {
	s := NewStore(WithMessages(NewUserMessage("a")))
	require.NoError(t, s.Append(NewPendingAssistantMessage()))

	require.ErrorIs(t, s.ReplaceContent(0, "a2"), ErrMessageLocked)
}

func TestContentDeltaEndsThinkingPhase(t *testing.T) {
	s := NewStore(WithMessages(NewUserMessage("q")))
	require.NoError(t, s.Append(NewPendingAssistantMessage()))

	require.NoError(t, s.AppendThinking(1, "T1"))
	require.NoError(t, s.AppendThinking(1, "T2"))
	require.NoError(t, s.AppendContent(1, "C1"))
	require.NoError(t, s.AppendContent(1, "C2"))

	msg, err := s.At(1)
	require.NoError(t, err)
	require.Equal(t, "T1T2", msg.Thinking)
	require.Equal(t, "C1C2", msg.Content)
	require.False(t, msg.IsThinking)
}

func TestLateThinkingDeltaDoesNotReenterThinkingPhase(t *testing.T) {
	s := NewStore(WithMessages(NewUserMessage("q")))
	require.NoError(t, s.Append(NewPendingAssistantMessage()))

	require.NoError(t, s.AppendContent(1, "C1"))
	require.NoError(t, s.AppendThinking(1, "T-late"))

	msg, err := s.At(1)
	require.NoError(t, err)
	require.Equal(t, "T-late", msg.Thinking)
	require.False(t, msg.IsThinking)
}

func TestFinalizeSealsMessage(t *testing.T) {
	s := NewStore(WithMessages(NewUserMessage("q")))
	require.NoError(t, s.Append(NewPendingAssistantMessage()))
	require.NoError(t, s.AppendContent(1, "partial result"))

	require.NoError(t, s.Finalize(1, WithError("network")))

	msg, err := s.At(1)
	require.NoError(t, err)
	require.False(t, msg.Streaming)
	require.Equal(t, "partial result", msg.Content)
	require.Equal(t, "network", msg.Error)

	require.ErrorIs(t, s.AppendContent(1, "more"), ErrMessageFinalized)
	require.ErrorIs(t, s.Finalize(1), ErrMessageFinalized)
}

func TestListExcludesStreamingMessageCurrentIncludesIt(t *testing.T) {
	s := NewStore(WithMessages(NewUserMessage("q")))
	require.NoError(t, s.Append(NewPendingAssistantMessage()))

	require.Len(t, s.List(), 1)
	require.Len(t, s.Current(), 2)
	require.Equal(t, 1, s.StreamingIndex())

	require.NoError(t, s.Finalize(1))
	require.Len(t, s.List(), 2)
	require.Equal(t, -1, s.StreamingIndex())
}

func TestSnapshotsAreCopies(t *testing.T) {
	s := NewStore(WithMessages(NewUserMessage("a")))
	list := s.List()
	list[0].Content = "mutated"

	msg, err := s.At(0)
	require.NoError(t, err)
	require.Equal(t, "a", msg.Content)
}
