// Package embedder provides the rag.Embedder implementation that turns a
// user question into a dense vector via the OpenAI or Azure OpenAI
// embeddings API.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/54b3r/ragchat-go/internal/chat"
	"github.com/54b3r/ragchat-go/internal/logging"
)

// OpenAIEmbedder implements rag.Embedder using the go-openai client.
// It is safe for concurrent use.
type OpenAIEmbedder struct {
	// client is the configured go-openai client (Azure or OpenAI flavoured).
	client *openai.Client
	// model is the embedding model name, or the deployment name on Azure.
	model string
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *Config) (*OpenAIEmbedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg.clientConfig()),
		model:  cfg.Model,
	}, nil
}

// Embed returns the embedding vector for text. Every failure is returned as
// a chat.ServiceError for the "embedding" service.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	logging.FromContext(ctx).Info("embedding query",
		slog.String("text", text),
		slog.String("model", e.model),
	)

	rsp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, chat.NewServiceError("embedding", "embed", statusOf(err), err)
	}

	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, chat.NewServiceError("embedding", "embed", 0, errors.New("empty embedding in response"))
	}

	return rsp.Data[0].Embedding, nil
}

// statusOf extracts the HTTP status code from a go-openai error, or 0 when
// the request never produced a response.
func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// String is used in startup logs.
func (e *OpenAIEmbedder) String() string {
	return fmt.Sprintf("openai-embedder(%s)", e.model)
}
