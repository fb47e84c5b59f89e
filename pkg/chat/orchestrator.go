package chat

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mikeboe/querymind/pkg/rag"
)

var (
	ErrBusy       = errors.New("a query is already in flight")
	ErrEmptyQuery = errors.New("query is empty")
)

const (
	errorPrefix       = "Sorry, I encountered an error: "
	unexpectedErrText = "Sorry, I encountered an unexpected error. Please try again."
)

// Notice is a short user-facing status line, e.g. for a toast.
type Notice struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Destructive bool   `json:"destructive,omitempty"`
}

// Stream event types.
const (
	EventUserMessage      = "user_message"
	EventAssistantMessage = "assistant_message"
	EventNotice           = "notice"
	EventError            = "error"
	EventDone             = "done"
)

// StreamEvent is one step of a query as seen by an observer.
type StreamEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type Config struct {
	Asker   rag.Asker
	History History // nil means NopHistory
	Logger  *slog.Logger
	Notify  func(Notice)
	Now     func() time.Time
}

// Orchestrator owns the conversations of one session. Queries are serialized
// by the busy flag; reads are safe while a query is in flight.
type Orchestrator struct {
	asker   rag.Asker
	history History
	logger  *slog.Logger
	notify  func(Notice)
	now     func() time.Time

	busy atomic.Bool

	mu            sync.RWMutex
	conversations []*Conversation
	active        *Conversation
}

func NewOrchestrator(cfg Config) *Orchestrator {
	o := &Orchestrator{
		asker:   cfg.Asker,
		history: cfg.History,
		logger:  cfg.Logger,
		notify:  cfg.Notify,
		now:     cfg.Now,
	}
	if o.history == nil {
		o.history = NopHistory{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// SubmitQuery runs one question/answer round trip. Failures of the answer
// service end up as an assistant message; only ErrBusy and ErrEmptyQuery
// are returned.
func (o *Orchestrator) SubmitQuery(ctx context.Context, query string) error {
	return o.submit(ctx, query, func(StreamEvent) bool { return true })
}

// SubmitQueryStream is SubmitQuery reporting each step as it happens. The
// query runs to completion even if the consumer stops early.
func (o *Orchestrator) SubmitQueryStream(ctx context.Context, query string) iter.Seq[StreamEvent] {
	return func(yield func(StreamEvent) bool) {
		open := true
		emit := func(ev StreamEvent) bool {
			if open {
				open = yield(ev)
			}
			return open
		}
		if err := o.submit(ctx, query, emit); err != nil {
			emit(StreamEvent{Type: EventError, Payload: err.Error()})
			return
		}
		emit(StreamEvent{Type: EventDone, Payload: "done"})
	}
}

func (o *Orchestrator) submit(ctx context.Context, query string, emit func(StreamEvent) bool) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyQuery
	}
	if !o.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer o.busy.Store(false)

	o.mu.Lock()
	conv := o.active
	if conv == nil {
		conv = newConversation(query, o.now())
		o.active = conv
	}
	userMsg := newMessage(query, true, nil, o.now())
	conv.Messages = append(conv.Messages, userMsg)
	o.conversations = upsertByID(o.conversations, conv)
	o.mu.Unlock()
	emit(StreamEvent{Type: EventUserMessage, Payload: userMsg})

	o.history.Save(ctx, query, true)

	answer, err := o.asker.Ask(ctx, query)

	var reply Message
	var notice Notice
	if err != nil {
		o.logger.Error("Query error", "error", err, "conversation_id", conv.ID)
		reply = newMessage(errorText(err), false, nil, o.now())
		notice = Notice{
			Title:       "Query failed",
			Description: "There was an error processing your request. Please try again.",
			Destructive: true,
		}
	} else {
		reply = newMessage(answer.Text, false, answer.Sources, o.now())
		notice = Notice{Title: "Query completed", Description: "Response received successfully"}
	}

	o.mu.Lock()
	conv.Messages = append(conv.Messages, reply)
	o.conversations = upsertByID(o.conversations, conv)
	o.active = conv
	o.mu.Unlock()

	if err == nil {
		o.history.Save(ctx, answer.Text, false)
	}

	emit(StreamEvent{Type: EventAssistantMessage, Payload: reply})
	o.sendNotice(notice, emit)
	return nil
}

func errorText(err error) string {
	if msg := err.Error(); msg != "" {
		return errorPrefix + msg
	}
	return unexpectedErrText
}

// SelectConversation makes the conversation with id active. An unknown id
// leaves the active conversation unchanged and returns false.
func (o *Orchestrator) SelectConversation(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, c := range o.conversations {
		if c.ID == id {
			o.active = c
			return true
		}
	}
	return false
}

// StartNewConversation clears the active conversation; the next query opens
// a new one.
func (o *Orchestrator) StartNewConversation() {
	o.mu.Lock()
	o.active = nil
	o.mu.Unlock()
}

// ClearHistory deletes stored history first and only then forgets the
// in-memory conversations, so a failed delete leaves everything in place.
func (o *Orchestrator) ClearHistory(ctx context.Context) error {
	if err := o.history.Clear(ctx); err != nil {
		o.logger.Error("Error clearing history", "error", err)
		o.sendNotice(Notice{
			Title:       "Error",
			Description: "Failed to clear conversation history.",
			Destructive: true,
		}, nil)
		return err
	}

	o.mu.Lock()
	o.conversations = nil
	o.active = nil
	o.mu.Unlock()

	o.sendNotice(Notice{Title: "History cleared", Description: "Your conversation history has been deleted."}, nil)
	return nil
}

// historyLoader is implemented by histories that can tell an empty history
// apart from a failed read.
type historyLoader interface {
	load(ctx context.Context) ([]Conversation, error)
}

// LoadHistory replaces the conversation list with what the history holds. A
// failed read is logged and returned, and the current list is kept.
func (o *Orchestrator) LoadHistory(ctx context.Context) error {
	var loaded []Conversation
	if l, ok := o.history.(historyLoader); ok {
		var err error
		if loaded, err = l.load(ctx); err != nil {
			o.logger.Error("Error loading conversation history", "error", err)
			return err
		}
	} else {
		loaded = o.history.Load(ctx)
	}

	list := make([]*Conversation, 0, len(loaded))
	for i := range loaded {
		list = append(list, &loaded[i])
	}

	o.mu.Lock()
	o.conversations = list
	o.mu.Unlock()

	o.logger.Info("Loaded conversation history", "conversations", len(list))
	return nil
}

// Conversations returns a copy of the list, most recent first.
func (o *Orchestrator) Conversations() []Conversation {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]Conversation, 0, len(o.conversations))
	for _, c := range o.conversations {
		out = append(out, c.clone())
	}
	return out
}

// Active returns a copy of the active conversation, or nil.
func (o *Orchestrator) Active() *Conversation {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.active == nil {
		return nil
	}
	c := o.active.clone()
	return &c
}

func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

func (o *Orchestrator) sendNotice(n Notice, emit func(StreamEvent) bool) {
	if o.notify != nil {
		o.notify(n)
	}
	if emit != nil {
		emit(StreamEvent{Type: EventNotice, Payload: n})
	}
}
