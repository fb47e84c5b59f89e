package config

import "time"

// DefaultRagEndpoint is the Flowise prediction flow the client was built against.
const DefaultRagEndpoint = "https://livegigaichatbot.onrender.com/api/v1/prediction/300308c0-f14d-4ff1-a0a3-075c245eb74a"

const (
	ProviderRag    = "rag"
	ProviderGoogle = "google"
)

type RagConfig struct {
	Endpoint     string
	Timeout      time.Duration // zero means no client-side timeout
	Provider     string
	GoogleApiKey string
	FastModel    string
}

func LoadRagConfig() *RagConfig {
	return &RagConfig{
		Endpoint:     getEnv("RAG_ENDPOINT", DefaultRagEndpoint),
		Timeout:      getEnvAsDuration("RAG_TIMEOUT", 0),
		Provider:     getEnv("ANSWER_PROVIDER", ProviderRag),
		GoogleApiKey: getEnv("GOOGLE_API_KEY", ""),
		FastModel:    getEnv("FAST_MODEL", "gemini-3-flash-preview"),
	}
}
