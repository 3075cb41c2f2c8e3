package directory

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"

	"github.com/go-go-golems/parley/pkg/conversation"
)

// Conversation is the directory's metadata record. The state engine holds
// only the identifier and a cached message list; everything else lives here.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrNotFound indicates a conversation ID the directory does not know.
var ErrNotFound = errors.New("conversation not found")

// Directory manages conversation metadata and persisted histories. Transport
// and storage format are implementation details behind this interface.
type Directory interface {
	Create(ctx context.Context, title string, kind string) (*Conversation, error)
	List(ctx context.Context, kind string) ([]*Conversation, error)
	Get(ctx context.Context, id string) (*Conversation, error)
	FetchMessages(ctx context.Context, id string) ([]*conversation.Message, error)
	AppendMessages(ctx context.Context, id string, msgs ...*conversation.Message) error
	// ReplaceMessages overwrites the persisted history. Edit and regenerate
	// fork the conversation, so the stored tail must be dropped with it.
	ReplaceMessages(ctx context.Context, id string, msgs ...*conversation.Message) error
	Rename(ctx context.Context, id string, title string) error
	Remove(ctx context.Context, id string) error

	// GenerateTitle derives and stores a title from the first user message.
	// It is a side effect: it may fail independently of the conversation's
	// validity, and callers are expected to log and move on.
	GenerateTitle(ctx context.Context, id string, firstUserText string) error
}

// Titler produces a conversation title from the first user message.
type Titler interface {
	Title(ctx context.Context, firstUserText string) (string, error)
}

const maxHeuristicTitleLen = 48

// HeuristicTitle derives a title by clipping the first user message at a
// word boundary. It is the fallback when no model-backed Titler is wired.
func HeuristicTitle(firstUserText string) string {
	title := strings.Join(strings.Fields(firstUserText), " ")
	if title == "" {
		return "New conversation"
	}
	if len(title) <= maxHeuristicTitleLen {
		return title
	}
	cut := title[:maxHeuristicTitleLen]
	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
