package directory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/parley/pkg/conversation"
)

func testDirectory(t *testing.T, options ...SQLiteOption) *SQLiteDirectory {
	t.Helper()
	d, err := NewSQLiteDirectory(filepath.Join(t.TempDir(), "parley.db"), options...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d
}

func TestCreateListRemove(t *testing.T) {
	d := testDirectory(t)
	ctx := context.Background()

	c1, err := d.Create(ctx, "first", "chat")
	require.NoError(t, err)
	_, err = d.Create(ctx, "second", "scratch")
	require.NoError(t, err)

	all, err := d.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	chats, err := d.List(ctx, "chat")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Equal(t, c1.ID, chats[0].ID)

	require.NoError(t, d.Remove(ctx, c1.ID))
	_, err = d.Get(ctx, c1.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMessagesRoundTrip(t *testing.T) {
	d := testDirectory(t)
	ctx := context.Background()

	c, err := d.Create(ctx, "", "chat")
	require.NoError(t, err)

	user := conversation.NewUserMessage("hello")
	assistant := conversation.NewMessage(conversation.RoleAssistant, "hi there")
	assistant.Thinking = "let me think"
	require.NoError(t, d.AppendMessages(ctx, c.ID, user, assistant))

	msgs, err := d.FetchMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, conversation.RoleUser, msgs[0].Role)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, user.ID, msgs[0].ID)
	require.Equal(t, "hi there", msgs[1].Content)
	require.Equal(t, "let me think", msgs[1].Thinking)
}

func TestReplaceMessagesDropsForkedTail(t *testing.T) {
	d := testDirectory(t)
	ctx := context.Background()

	c, err := d.Create(ctx, "", "chat")
	require.NoError(t, err)
	require.NoError(t, d.AppendMessages(ctx, c.ID,
		conversation.NewUserMessage("a"),
		conversation.NewMessage(conversation.RoleAssistant, "b"),
		conversation.NewUserMessage("c"),
		conversation.NewMessage(conversation.RoleAssistant, "d"),
	))

	require.NoError(t, d.ReplaceMessages(ctx, c.ID,
		conversation.NewUserMessage("a2"),
		conversation.NewMessage(conversation.RoleAssistant, "b2"),
	))

	msgs, err := d.FetchMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "a2", msgs[0].Content)
	require.Equal(t, "b2", msgs[1].Content)
}

func TestRenameUnknownConversation(t *testing.T) {
	d := testDirectory(t)
	require.ErrorIs(t, d.Rename(context.Background(), "nope", "title"), ErrNotFound)
}

type fixedTitler struct {
	title string
}

func (f fixedTitler) Title(_ context.Context, _ string) (string, error) {
	return f.title, nil
}

func TestGenerateTitleUsesTitler(t *testing.T) {
	d := testDirectory(t, WithTitler(fixedTitler{title: "Weather talk"}))
	ctx := context.Background()

	c, err := d.Create(ctx, "", "chat")
	require.NoError(t, err)
	require.NoError(t, d.GenerateTitle(ctx, c.ID, "what's the weather like?"))

	got, err := d.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "Weather talk", got.Title)
}

func TestHeuristicTitle(t *testing.T) {
	require.Equal(t, "New conversation", HeuristicTitle("   "))
	require.Equal(t, "hello world", HeuristicTitle("hello   world"))

	long := HeuristicTitle("this is a rather long first message that keeps going well past the cutoff point")
	require.LessOrEqual(t, len(long), maxHeuristicTitleLen+len("…"))
	require.True(t, len(long) > 0)
}
