package directory

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/conversation"
)

// SQLiteDirectory implements Directory using a SQLite database.
type SQLiteDirectory struct {
	db     *sql.DB
	titler Titler
}

type SQLiteOption func(*SQLiteDirectory)

// WithTitler wires a model-backed titler; without one, GenerateTitle falls
// back to clipping the first user message.
func WithTitler(t Titler) SQLiteOption {
	return func(d *SQLiteDirectory) {
		d.titler = t
	}
}

func NewSQLiteDirectory(dsn string, options ...SQLiteOption) (*SQLiteDirectory, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	d := &SQLiteDirectory{db: db}
	for _, option := range options {
		option(d)
	}
	if err := d.migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *SQLiteDirectory) Close() error {
	return d.db.Close()
}

func (d *SQLiteDirectory) migrate() error {
	_, err := d.db.Exec(`
CREATE TABLE IF NOT EXISTS conversations (
  id TEXT PRIMARY KEY,
  title TEXT,
  kind TEXT,
  created_at TIMESTAMP,
  updated_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  conversation_id TEXT,
  message_id TEXT,
  role TEXT,
  content TEXT,
  thinking TEXT,
  error TEXT,
  interrupted INTEGER DEFAULT 0,
  at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_id_at ON messages(conversation_id, at);
`)
	return err
}

func (d *SQLiteDirectory) Create(ctx context.Context, title string, kind string) (*Conversation, error) {
	now := time.Now()
	c := &Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, kind, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Kind, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}
	return c, nil
}

func (d *SQLiteDirectory) List(ctx context.Context, kind string) ([]*Conversation, error) {
	query := `SELECT id, title, kind, created_at, updated_at FROM conversations`
	args := []interface{}{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var ret []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, c)
	}
	return ret, rows.Err()
}

func (d *SQLiteDirectory) Get(ctx context.Context, id string) (*Conversation, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, title, kind, created_at, updated_at FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (d *SQLiteDirectory) FetchMessages(ctx context.Context, id string) ([]*conversation.Message, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT message_id, role, content, thinking, error, interrupted, at FROM messages WHERE conversation_id = ? ORDER BY at ASC, id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var ret []*conversation.Message
	for rows.Next() {
		var messageID, role, content, thinking, errStr, at string
		var interrupted int
		if err := rows.Scan(&messageID, &role, &content, &thinking, &errStr, &interrupted, &at); err != nil {
			return nil, err
		}
		t, _ := time.Parse(time.RFC3339Nano, at)
		msgID, err := uuid.Parse(messageID)
		if err != nil {
			msgID = uuid.New()
		}
		msg := conversation.NewMessage(conversation.Role(role), content,
			conversation.WithID(msgID), conversation.WithTime(t))
		msg.Thinking = thinking
		msg.Error = errStr
		msg.Interrupted = interrupted != 0
		ret = append(ret, msg)
	}
	return ret, rows.Err()
}

func (d *SQLiteDirectory) AppendMessages(ctx context.Context, id string, msgs ...*conversation.Message) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		interrupted := 0
		if msg.Interrupted {
			interrupted = 1
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, message_id, role, content, thinking, error, interrupted, at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, msg.ID.String(), string(msg.Role), msg.Content, msg.Thinking, msg.Error, interrupted,
			msg.Time.Format(time.RFC3339Nano))
		if err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "failed to append message")
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().Format(time.RFC3339Nano), id); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (d *SQLiteDirectory) ReplaceMessages(ctx context.Context, id string, msgs ...*conversation.Message) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, msg := range msgs {
		interrupted := 0
		if msg.Interrupted {
			interrupted = 1
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, message_id, role, content, thinking, error, interrupted, at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, msg.ID.String(), string(msg.Role), msg.Content, msg.Thinking, msg.Error, interrupted,
			msg.Time.Format(time.RFC3339Nano))
		if err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "failed to replace messages")
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().Format(time.RFC3339Nano), id); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (d *SQLiteDirectory) Rename(ctx context.Context, id string, title string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *SQLiteDirectory) Remove(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (d *SQLiteDirectory) GenerateTitle(ctx context.Context, id string, firstUserText string) error {
	title := ""
	if d.titler != nil {
		generated, err := d.titler.Title(ctx, firstUserText)
		if err != nil {
			log.Warn().Err(err).Str("conversation_id", id).Msg("titler failed, falling back to heuristic")
		} else {
			title = generated
		}
	}
	if title == "" {
		title = HeuristicTitle(firstUserText)
	}
	return d.Rename(ctx, id, title)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	var createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.Title, &c.Kind, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &c, nil
}

var _ Directory = (*SQLiteDirectory)(nil)
