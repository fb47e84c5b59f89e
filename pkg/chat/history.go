package chat

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mikeboe/querymind/pkg/database"
)

// History mirrors a session's messages to durable storage.
type History interface {
	// Save stores one message. It returns nil when nothing was stored.
	Save(ctx context.Context, content string, isUser bool) *database.MessageRow
	// Load rebuilds stored conversations, most recent first.
	Load(ctx context.Context) []Conversation
	// Clear deletes everything stored for the session.
	Clear(ctx context.Context) error
}

// MessageStore is the table the remote history reads and writes.
// *database.PostgresDB implements it.
type MessageStore interface {
	InsertMessage(ctx context.Context, userID, content string, isUser bool) (*database.MessageRow, error)
	ListMessages(ctx context.Context, userID string) ([]database.MessageRow, error)
	DeleteMessages(ctx context.Context, userID string) error
}

// StorageError reports a failed persistence operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewHistory returns the remote history for a signed-in user and the no-op
// history otherwise.
func NewHistory(store MessageStore, userID string, logger *slog.Logger) History {
	if store == nil || userID == "" {
		return NopHistory{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteHistory{Store: store, UserID: userID, Logger: logger}
}

// NopHistory keeps nothing; anonymous sessions live only in memory.
type NopHistory struct{}

func (NopHistory) Save(context.Context, string, bool) *database.MessageRow { return nil }
func (NopHistory) Load(context.Context) []Conversation                     { return nil }
func (NopHistory) Clear(context.Context) error                             { return nil }

type RemoteHistory struct {
	Store  MessageStore
	UserID string
	Logger *slog.Logger
}

func (h *RemoteHistory) Save(ctx context.Context, content string, isUser bool) *database.MessageRow {
	if h.UserID == "" {
		return nil
	}
	row, err := h.Store.InsertMessage(ctx, h.UserID, content, isUser)
	if err != nil {
		h.Logger.Error("Error saving message", "error", &StorageError{Op: "save message", Err: err}, "is_user", isUser)
		return nil
	}
	return row
}

func (h *RemoteHistory) Load(ctx context.Context) []Conversation {
	convs, err := h.load(ctx)
	if err != nil {
		h.Logger.Error("Error loading conversation history", "error", err)
		return nil
	}
	return convs
}

func (h *RemoteHistory) load(ctx context.Context) ([]Conversation, error) {
	if h.UserID == "" {
		return nil, nil
	}
	rows, err := h.Store.ListMessages(ctx, h.UserID)
	if err != nil {
		return nil, &StorageError{Op: "load history", Err: err}
	}
	return rebuildConversations(rows), nil
}

func (h *RemoteHistory) Clear(ctx context.Context) error {
	if h.UserID == "" {
		return nil
	}
	if err := h.Store.DeleteMessages(ctx, h.UserID); err != nil {
		return &StorageError{Op: "clear history", Err: err}
	}
	return nil
}

// rebuildConversations pairs rows two by two: an even row must be authored by
// the user and anchors a conversation together with the row after it. Pairs
// anchored on an assistant row are dropped. Stored conversations therefore
// never hold more than one exchange.
func rebuildConversations(rows []database.MessageRow) []Conversation {
	var convs []Conversation
	for i := 0; i < len(rows); i += 2 {
		userRow := rows[i]
		if !userRow.IsUser {
			continue
		}

		conv := Conversation{
			ID:        userRow.ID.String(),
			Query:     userRow.Content,
			Timestamp: userRow.CreatedAt,
			Preview:   Preview(userRow.Content),
			Messages:  []Message{rowToMessage(userRow)},
		}
		if i+1 < len(rows) {
			conv.Messages = append(conv.Messages, rowToMessage(rows[i+1]))
		}
		convs = append(convs, conv)
	}
	slices.Reverse(convs)
	return convs
}

func rowToMessage(row database.MessageRow) Message {
	return Message{
		ID:        row.ID.String(),
		Content:   row.Content,
		IsUser:    row.IsUser,
		Timestamp: row.CreatedAt,
	}
}
