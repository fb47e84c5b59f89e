package chat

import (
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mikeboe/querymind/pkg/rag"
)

const previewLength = 50

type Message struct {
	ID        string       `json:"id"`
	Content   string       `json:"content"`
	IsUser    bool         `json:"isUser"`
	Timestamp time.Time    `json:"timestamp"`
	Sources   []rag.Source `json:"sources,omitempty"`
}

// Conversation is one thread started by Query. Messages only ever grow.
type Conversation struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
	Preview   string    `json:"preview"`
	Messages  []Message `json:"messages"`
}

func newConversation(query string, now time.Time) *Conversation {
	return &Conversation{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Query:     query,
		Timestamp: now,
		Preview:   Preview(query),
		Messages:  []Message{},
	}
}

func newMessage(content string, isUser bool, sources []rag.Source, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		IsUser:    isUser,
		Timestamp: now,
		Sources:   sources,
	}
}

// Preview shortens a query to 50 characters plus an ellipsis.
func Preview(query string) string {
	runes := []rune(query)
	if len(runes) <= previewLength {
		return query
	}
	return string(runes[:previewLength]) + "..."
}

func (c *Conversation) clone() Conversation {
	out := *c
	out.Messages = slices.Clone(c.Messages)
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	return out
}

// upsertByID replaces the entry with the same id in place, or prepends conv.
func upsertByID(list []*Conversation, conv *Conversation) []*Conversation {
	for i, c := range list {
		if c.ID == conv.ID {
			list[i] = conv
			return list
		}
	}
	return append([]*Conversation{conv}, list...)
}
