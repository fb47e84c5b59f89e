package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mikeboe/querymind/pkg/config"
	"github.com/mikeboe/querymind/pkg/rag"
)

// NewAsker picks the answer provider named in the config.
func NewAsker(ctx context.Context, cfg *config.RagConfig) (rag.Asker, error) {
	switch cfg.Provider {
	case config.ProviderRag, "":
		return rag.NewClient(cfg.Endpoint, &http.Client{Timeout: cfg.Timeout}), nil
	case config.ProviderGoogle:
		llm, err := GoogleAi(ctx, cfg.GoogleApiKey, ModelType(cfg.FastModel))
		if err != nil {
			return nil, err
		}
		return rag.NewModelAsker(llm), nil
	default:
		return nil, fmt.Errorf("unknown answer provider: %s", cfg.Provider)
	}
}
