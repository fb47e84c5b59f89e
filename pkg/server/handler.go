package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mikeboe/querymind/pkg/chat"
)

const (
	userIDHeader    = "X-User-ID"
	sessionIDHeader = "X-Session-ID"
	identityKey     = "identity"
)

type Handler struct {
	Sessions *Sessions
}

func NewHandler(s *Sessions) *Handler {
	return &Handler{Sessions: s}
}

type QueryRequest struct {
	Question string `json:"question"`
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	mcpHandler := gin.WrapH(h.MCPHandler())
	r.POST("/mcp", mcpHandler)
	r.GET("/mcp", mcpHandler)
	r.DELETE("/mcp", mcpHandler)

	r.GET("/api/health", h.health)

	api := r.Group("/api", identify)
	{
		api.POST("/query", h.query)
		api.POST("/query/stream", h.queryStream)

		api.GET("/conversations", h.listConversations)
		api.DELETE("/conversations", h.clearHistory)
		api.GET("/conversations/active", h.activeConversation)
		api.POST("/conversations/new", h.newConversation)
		api.POST("/conversations/:id/select", h.selectConversation)
	}
}

// identify resolves who is calling. The user id is trusted as set by the
// auth proxy in front of this service.
func identify(c *gin.Context) {
	id := Identity{
		UserID:    c.GetHeader(userIDHeader),
		SessionID: c.GetHeader(sessionIDHeader),
	}
	if id.SessionID != "" {
		c.Header(sessionIDHeader, id.SessionID)
	}
	c.Set(identityKey, id)
	c.Next()
}

// session returns the caller's orchestrator for requests other than queries.
// Anonymous callers without a live session get nil; only a query opens one.
func (h *Handler) session(c *gin.Context) *chat.Orchestrator {
	id, _ := c.MustGet(identityKey).(Identity)
	if id.UserID != "" {
		return h.Sessions.Get(c.Request.Context(), id)
	}
	o, _ := h.Sessions.Lookup(id)
	return o
}

// querySession returns the caller's orchestrator, opening a session and
// minting a session id for anonymous callers that have none.
func (h *Handler) querySession(c *gin.Context) *chat.Orchestrator {
	id, _ := c.MustGet(identityKey).(Identity)
	if id.UserID == "" && id.SessionID == "" {
		id.SessionID = uuid.NewString()
		c.Header(sessionIDHeader, id.SessionID)
	}
	return h.Sessions.Get(c.Request.Context(), id)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.Sessions.Len()})
}

func (h *Handler) query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// A dropped client does not abort a query already sent.
	ctx := context.WithoutCancel(c.Request.Context())

	o := h.querySession(c)
	if err := o.SubmitQuery(ctx, req.Question); err != nil {
		c.JSON(guardStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, o.Active())
}

func (h *Handler) queryStream(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	o := h.querySession(c)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Transfer-Encoding", "chunked")

	for event := range o.SubmitQueryStream(ctx, req.Question) {
		data, err := json.Marshal(event)
		if err != nil {
			return
		}
		_, _ = c.Writer.Write([]byte("data: "))
		_, _ = c.Writer.Write(data)
		_, _ = c.Writer.Write([]byte("\n\n"))
		c.Writer.Flush()
	}
}

func (h *Handler) listConversations(c *gin.Context) {
	convs := []chat.Conversation{}
	if o := h.session(c); o != nil {
		convs = o.Conversations()
	}
	c.JSON(http.StatusOK, convs)
}

func (h *Handler) activeConversation(c *gin.Context) {
	var active *chat.Conversation
	if o := h.session(c); o != nil {
		active = o.Active()
	}
	c.JSON(http.StatusOK, active)
}

func (h *Handler) newConversation(c *gin.Context) {
	if o := h.session(c); o != nil {
		o.StartNewConversation()
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) selectConversation(c *gin.Context) {
	o := h.session(c)
	if o == nil || !o.SelectConversation(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	c.JSON(http.StatusOK, o.Active())
}

func (h *Handler) clearHistory(c *gin.Context) {
	o := h.session(c)
	if o == nil {
		c.Status(http.StatusNoContent)
		return
	}
	if err := o.ClearHistory(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": err.Error(),
			"notice": chat.Notice{
				Title:       "Error",
				Description: "Failed to clear conversation history.",
				Destructive: true,
			},
		})
		return
	}
	c.Status(http.StatusNoContent)
}

func guardStatus(err error) int {
	switch {
	case errors.Is(err, chat.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, chat.ErrEmptyQuery):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
