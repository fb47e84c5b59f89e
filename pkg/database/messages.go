package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MessageRow is one stored chat message.
type MessageRow struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Content   string    `db:"content" json:"content"`
	IsUser    bool      `db:"is_user" json:"is_user"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// InsertMessage stores a message and returns the row with the id and
// creation time stamped by the database.
func (db *PostgresDB) InsertMessage(ctx context.Context, userID, content string, isUser bool) (*MessageRow, error) {
	query := `
		INSERT INTO chat_messages (user_id, content, is_user)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, content, is_user, created_at
	`

	row := &MessageRow{}
	err := db.Pool.QueryRow(ctx, query, userID, content, isUser).Scan(
		&row.ID, &row.UserID, &row.Content, &row.IsUser, &row.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return row, nil
}

// ListMessages returns every message of a user, oldest first.
func (db *PostgresDB) ListMessages(ctx context.Context, userID string) ([]MessageRow, error) {
	query := `
		SELECT id, user_id, content, is_user, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	rows, err := db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	msgs, err := pgx.CollectRows(rows, pgx.RowToStructByName[MessageRow])
	if err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}
	return msgs, nil
}

// DeleteMessages removes every message of a user.
func (db *PostgresDB) DeleteMessages(ctx context.Context, userID string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM chat_messages WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}
