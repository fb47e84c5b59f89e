package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mikeboe/querymind/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	rows      []database.MessageRow
	insertErr error
	listErr   error
	deleteErr error
	inserts   int
	lists     int
	deletes   int
}

func (s *fakeStore) InsertMessage(ctx context.Context, userID, content string, isUser bool) (*database.MessageRow, error) {
	s.inserts++
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	row := database.MessageRow{
		ID:        uuid.New(),
		UserID:    userID,
		Content:   content,
		IsUser:    isUser,
		CreatedAt: time.Unix(int64(len(s.rows)), 0),
	}
	s.rows = append(s.rows, row)
	return &row, nil
}

func (s *fakeStore) ListMessages(ctx context.Context, userID string) ([]database.MessageRow, error) {
	s.lists++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []database.MessageRow
	for _, r := range s.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteMessages(ctx context.Context, userID string) error {
	s.deletes++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	return nil
}

func row(content string, isUser bool, sec int64) database.MessageRow {
	return database.MessageRow{
		ID:        uuid.New(),
		UserID:    "u1",
		Content:   content,
		IsUser:    isUser,
		CreatedAt: time.Unix(sec, 0),
	}
}

func TestNewHistorySelectsPort(t *testing.T) {
	store := &fakeStore{}

	assert.IsType(t, NopHistory{}, NewHistory(store, "", nil))
	assert.IsType(t, NopHistory{}, NewHistory(nil, "u1", nil))
	assert.IsType(t, &RemoteHistory{}, NewHistory(store, "u1", nil))
}

func TestNopHistoryDoesNothing(t *testing.T) {
	h := NopHistory{}
	ctx := context.Background()

	assert.Nil(t, h.Save(ctx, "hi", true))
	assert.Nil(t, h.Load(ctx))
	assert.NoError(t, h.Clear(ctx))
}

func TestRemoteHistorySave(t *testing.T) {
	store := &fakeStore{}
	h := NewHistory(store, "u1", nil)

	saved := h.Save(context.Background(), "What is Go?", true)

	require.NotNil(t, saved)
	assert.Equal(t, "u1", saved.UserID)
	assert.Equal(t, "What is Go?", saved.Content)
	assert.True(t, saved.IsUser)
	assert.NotEqual(t, uuid.Nil, saved.ID)
}

func TestRemoteHistorySaveSwallowsErrors(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("connection reset")}
	h := NewHistory(store, "u1", nil)

	assert.Nil(t, h.Save(context.Background(), "hello", true))
	assert.Equal(t, 1, store.inserts)
}

func TestRemoteHistoryLoadPairsRows(t *testing.T) {
	u1, a1 := row("first question", true, 1), row("first answer", false, 2)
	u2, a2 := row("second question", true, 3), row("second answer", false, 4)
	store := &fakeStore{rows: []database.MessageRow{u1, a1, u2, a2}}

	convs := NewHistory(store, "u1", nil).Load(context.Background())

	require.Len(t, convs, 2)
	assert.Equal(t, u2.ID.String(), convs[0].ID)
	assert.Equal(t, u1.ID.String(), convs[1].ID)

	for i, pair := range [][2]database.MessageRow{{u2, a2}, {u1, a1}} {
		conv := convs[i]
		require.Len(t, conv.Messages, 2)
		assert.Equal(t, pair[0].Content, conv.Query)
		assert.Equal(t, pair[0].CreatedAt, conv.Timestamp)
		assert.Equal(t, pair[0].Content, conv.Messages[0].Content)
		assert.True(t, conv.Messages[0].IsUser)
		assert.Equal(t, pair[1].Content, conv.Messages[1].Content)
		assert.False(t, conv.Messages[1].IsUser)
	}
}

func TestRebuildConversations(t *testing.T) {
	tests := []struct {
		name      string
		rows      []database.MessageRow
		wantQuery []string
		wantSizes []int
	}{
		{
			name: "empty",
		},
		{
			name:      "malformed leading pair is skipped",
			rows:      []database.MessageRow{row("orphan answer", false, 1), row("question", true, 2)},
			wantQuery: nil,
		},
		{
			name: "malformed pair between good ones",
			rows: []database.MessageRow{
				row("q1", true, 1), row("a1", false, 2),
				row("stray", false, 3), row("q-lost", true, 4),
				row("q2", true, 5), row("a2", false, 6),
			},
			wantQuery: []string{"q2", "q1"},
			wantSizes: []int{2, 2},
		},
		{
			name:      "trailing question without answer",
			rows:      []database.MessageRow{row("q1", true, 1), row("a1", false, 2), row("q2", true, 3)},
			wantQuery: []string{"q2", "q1"},
			wantSizes: []int{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			convs := rebuildConversations(tt.rows)
			require.Len(t, convs, len(tt.wantQuery))
			for i, c := range convs {
				assert.Equal(t, tt.wantQuery[i], c.Query)
				assert.Len(t, c.Messages, tt.wantSizes[i])
			}
		})
	}
}

func TestRemoteHistoryLoadSwallowsErrors(t *testing.T) {
	store := &fakeStore{listErr: errors.New("timeout")}

	assert.Nil(t, NewHistory(store, "u1", nil).Load(context.Background()))
}

func TestRemoteHistoryClear(t *testing.T) {
	store := &fakeStore{rows: []database.MessageRow{row("q", true, 1)}}

	require.NoError(t, NewHistory(store, "u1", nil).Clear(context.Background()))
	assert.Empty(t, store.rows)
}

func TestRemoteHistoryClearFailure(t *testing.T) {
	cause := errors.New("permission denied")
	store := &fakeStore{deleteErr: cause}

	err := NewHistory(store, "u1", nil).Clear(context.Background())

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "clear history", storageErr.Op)
	assert.ErrorIs(t, err, cause)
}
