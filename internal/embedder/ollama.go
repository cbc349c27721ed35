package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/ragchat-go/internal/chat"
	"github.com/54b3r/ragchat-go/internal/logging"
)

// DefaultOllamaURL is used when the ollama backend has no endpoint.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaEmbedder implements rag.Embedder using the Ollama /api/embed endpoint.
// It is safe for concurrent use. No API key is required.
type OllamaEmbedder struct {
	// host is the Ollama server base URL (e.g. "http://localhost:11434").
	host string
	// model is the embedding model tag (e.g. "nomic-embed-text").
	model string
	client *http.Client
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
// Endpoint defaults to DefaultOllamaURL.
func NewOllamaEmbedder(cfg *Config) (*OllamaEmbedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	host := strings.TrimRight(cfg.Endpoint, "/")
	if host == "" {
		host = DefaultOllamaURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &OllamaEmbedder{host: host, model: cfg.Model, client: client}, nil
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed returns the embedding vector for text. Every failure is returned as
// a chat.ServiceError for the "embedding" service.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	logging.FromContext(ctx).Info("embedding query",
		slog.String("text", text),
		slog.String("model", e.model),
	)

	payload, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: []string{text}})
	if err != nil {
		return nil, chat.NewServiceError("embedding", "embed", 0, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, chat.NewServiceError("embedding", "embed", 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, chat.NewServiceError("embedding", "embed", 0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	var result ollamaEmbedResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, chat.NewServiceError("embedding", "embed", resp.StatusCode, errors.New(msg))
	}
	if decodeErr != nil {
		return nil, chat.NewServiceError("embedding", "embed", resp.StatusCode, fmt.Errorf("decode response: %w", decodeErr))
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, chat.NewServiceError("embedding", "embed", 0, errors.New("empty embedding in response"))
	}

	return result.Embeddings[0], nil
}

// String is used in startup logs.
func (e *OllamaEmbedder) String() string {
	return fmt.Sprintf("ollama-embedder(%s)", e.model)
}
