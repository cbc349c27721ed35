package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/ragchat-go/internal/config"
	"github.com/54b3r/ragchat-go/internal/embedder"
	"github.com/54b3r/ragchat-go/internal/pipeline"
	"github.com/54b3r/ragchat-go/internal/provider"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/server"
)

// stack is the assembled turn pipeline plus the handles the commands need
// around it.
type stack struct {
	// controller runs turns.
	controller *pipeline.Controller
	// responder exposes the configured chat models.
	responder *provider.Responder
	// pingers probe the search backend and completion endpoint.
	pingers []server.Pinger
	// close releases backend connections. Always non-nil.
	close func()
}

// retrieverPinger is satisfied by every search backend.
type retrieverPinger interface {
	rag.Retriever
	server.Pinger
}

// buildStack constructs the embedder, retriever, responder and controller
// from s. observer may be nil.
func buildStack(ctx context.Context, s *config.Settings, log *slog.Logger, observer pipeline.Observer) (*stack, error) {
	emb, err := embedder.New(&embedder.Config{
		Backend:    embedder.Backend(s.OpenAIBackend),
		Endpoint:   s.OpenAIEndpoint,
		APIKey:     s.OpenAIKey,
		APIVersion: s.OpenAIVersion,
		Model:      s.EmbeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	providerCfg := &provider.Config{
		Backend:      provider.Backend(s.OpenAIBackend),
		Endpoint:     s.OpenAIEndpoint,
		APIKey:       s.OpenAIKey,
		APIVersion:   s.OpenAIVersion,
		Deployments:  s.Deployments,
		DefaultModel: s.DefaultModel,
		MaxTokens:    s.MaxTokens,
		Temperature:  s.Temperature,
	}
	responder, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}

	retriever, closeRetriever, err := buildRetriever(ctx, s)
	if err != nil {
		return nil, err
	}

	controller, err := pipeline.New(pipeline.Config{
		Embedder:     emb,
		Retriever:    retriever,
		Responder:    responder,
		TopK:         s.TopK,
		DefaultModel: s.DefaultModel,
		Observer:     observer,
	})
	if err != nil {
		closeRetriever()
		return nil, err
	}

	log.Info("pipeline initialised",
		slog.String("openai_backend", s.OpenAIBackend),
		slog.String("search_backend", s.SearchBackend),
		slog.String("embedder", fmt.Sprint(emb)),
		slog.String("default_model", string(s.DefaultModel)),
		slog.Int("top_k", s.TopK),
	)

	return &stack{
		controller: controller,
		responder:  responder,
		pingers:    []server.Pinger{retriever, provider.NewHealthChecker(providerCfg, nil)},
		close:      closeRetriever,
	}, nil
}

// buildRetriever constructs the search backend selected by SEARCH_BACKEND.
func buildRetriever(ctx context.Context, s *config.Settings) (retrieverPinger, func(), error) {
	switch s.SearchBackend {
	case config.BackendQdrant:
		r, err := rag.NewQdrantRetriever(ctx, &rag.QdrantConfig{
			Host:       s.QdrantHost,
			Port:       s.QdrantPort,
			Collection: s.QdrantCollection,
			APIKey:     s.QdrantAPIKey,
			UseTLS:     s.QdrantTLS,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		return r, func() { _ = r.Close() }, nil
	default:
		r, err := rag.NewAzureSearchRetriever(&rag.AzureSearchConfig{
			Endpoint:       s.SearchEndpoint,
			APIKey:         s.SearchKey,
			IndexName:      s.SearchIndex,
			APIVersion:     s.SearchAPIVersion,
			SemanticConfig: s.SemanticConfig,
			VectorField:    s.VectorField,
			QueryLanguage:  s.QueryLanguage,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialise azure search: %w", err)
		}
		return r, func() {}, nil
	}
}
