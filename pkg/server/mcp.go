package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/mikeboe/querymind/pkg/rag"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type AskArgs struct {
	Question string `json:"question" jsonschema:"the question to answer"`
}

type AskResult struct {
	Text    string       `json:"text"`
	Sources []rag.Source `json:"sources"`
}

// MCPHandler exposes the answer service as an MCP tool. Tool calls are
// stateless and never touch a chat session.
func (h *Handler) MCPHandler() http.Handler {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "querymind-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_question",
		Description: "Answer a question with the retrieval-augmented knowledge base and return citations.",
	}, h.askTool)

	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

func (h *Handler) askTool(ctx context.Context, req *mcp.CallToolRequest, args AskArgs) (*mcp.CallToolResult, AskResult, error) {
	question := strings.TrimSpace(args.Question)
	if question == "" {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "question is empty"}},
		}, AskResult{}, nil
	}

	answer, err := h.Sessions.Asker.Ask(ctx, question)
	if err != nil {
		h.Sessions.Logger.Error("MCP ask failed", "error", err)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		}, AskResult{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: formatAnswer(answer)}},
	}, AskResult{Text: answer.Text, Sources: answer.Sources}, nil
}

func formatAnswer(answer rag.Answer) string {
	var sb strings.Builder
	sb.WriteString(answer.Text)
	for i, s := range answer.Sources {
		if i == 0 {
			sb.WriteString("\n\nSources:")
		}
		sb.WriteString("\n- ")
		label := s.Title
		if label == "" {
			label = s.URL
		}
		sb.WriteString(label)
		if s.Title != "" && s.URL != "" {
			sb.WriteString(" (" + s.URL + ")")
		}
	}
	return sb.String()
}
