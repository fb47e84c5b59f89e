package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"
)

// Client posts questions to a Flowise-style prediction endpoint.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		Endpoint:   endpoint,
		HTTPClient: httpClient,
		Logger:     slog.Default(),
	}
}

type askRequest struct {
	Question string `json:"question"`
}

// Ask sends the question and normalizes whatever shape the endpoint returns.
// The caller is responsible for trimming; no retry is attempted.
func (c *Client) Ask(ctx context.Context, question string) (Answer, error) {
	body, err := json.Marshal(askRequest{Question: question})
	if err != nil {
		return Answer{}, fmt.Errorf("failed to marshal question: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Answer{}, &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Answer{}, &TransportError{Err: fmt.Errorf("failed to reach rag endpoint: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.Logger.Error("RAG endpoint returned non-success status", "status", resp.StatusCode)
		return Answer{}, &TransportError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Answer{}, &TransportError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if !gjson.ValidBytes(data) {
		return Answer{}, &TransportError{Err: fmt.Errorf("failed to decode response: invalid JSON")}
	}

	return parseAnswer(data), nil
}

func parseAnswer(data []byte) Answer {
	parsed := gjson.ParseBytes(data)

	text := FallbackText
	for _, field := range []string{"text", "answer", "response"} {
		if v := parsed.Get(field); truthy(v) {
			text = v.String()
			break
		}
	}

	sources := []Source{}
	for _, field := range []string{"sources", "sourceDocuments"} {
		v := parsed.Get(field)
		if !truthy(v) {
			continue
		}
		if v.IsArray() {
			for _, item := range v.Array() {
				sources = append(sources, parseSource(item))
			}
		}
		break
	}

	return Answer{Text: text, Sources: sources}
}

// parseSource accepts both the plain {title,url,snippet} shape and Flowise
// documents ({pageContent, metadata}).
func parseSource(item gjson.Result) Source {
	return Source{
		Title:   firstString(item, "title", "metadata.title"),
		URL:     firstString(item, "url", "metadata.source", "metadata.url"),
		Snippet: firstString(item, "snippet", "pageContent"),
	}
}

func firstString(item gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := item.Get(path); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

// truthy mirrors the loose falsy rules the endpoint contract was written
// against. Arrays and objects are truthy even when empty.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	case gjson.True, gjson.JSON:
		return true
	default:
		return false
	}
}
