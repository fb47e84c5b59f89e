package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ModelAsker answers questions straight from a language model, without
// retrieval. Answers never carry sources.
type ModelAsker struct {
	LLM llms.Model
}

func NewModelAsker(llm llms.Model) *ModelAsker {
	return &ModelAsker{LLM: llm}
}

func (a *ModelAsker) Ask(ctx context.Context, question string) (Answer, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, a.LLM, question)
	if err != nil {
		return Answer{}, &TransportError{Err: fmt.Errorf("failed to generate answer: %w", err)}
	}
	if strings.TrimSpace(text) == "" {
		text = FallbackText
	}
	return Answer{Text: text, Sources: []Source{}}, nil
}
