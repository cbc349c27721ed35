package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragchat-go/internal/chat"
	"github.com/54b3r/ragchat-go/internal/logging"
)

// Payload keys read from each Qdrant point. They mirror the field names of
// the Azure AI Search index so both backends can be loaded from one export.
const (
	qdrantContentKey = "content"
	qdrantSourceKey  = "sourcepage"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection holding the pre-built corpus.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// qdrantClient is the subset of *qdrant.Client used by QdrantRetriever.
type qdrantClient interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	Close() error
}

// QdrantRetriever implements Retriever with a pure vector query against a
// Qdrant collection. The query text is not used for ranking.
type QdrantRetriever struct {
	// client is the underlying Qdrant gRPC client.
	client qdrantClient

	// collection is the resolved collection name.
	collection string
}

// NewQdrantRetriever connects to Qdrant and verifies that the configured
// collection exists. The collection is never created: an empty corpus is a
// deployment error, not something to paper over.
func NewQdrantRetriever(ctx context.Context, cfg *QdrantConfig) (*QdrantRetriever, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection must not be empty")
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	r := &QdrantRetriever{client: client, collection: cfg.Collection}
	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant: collection %q does not exist", cfg.Collection)
	}
	return r, nil
}

// Retrieve returns the topK nearest points to vector, converted to passages.
func (r *QdrantRetriever) Retrieve(ctx context.Context, query string, vector []float32, topK int) ([]Passage, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	limit := uint64(topK)
	results, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayloadInclude(qdrantContentKey, qdrantSourceKey),
	})
	if err != nil {
		return nil, chat.NewServiceError("search", "query", 0, err)
	}

	passages := make([]Passage, 0, len(results))
	for _, pt := range results {
		passages = append(passages, passageFromPayload(pt.GetPayload()))
	}
	passages = truncate(passages, topK)

	logging.FromContext(ctx).Debug("qdrant search complete",
		slog.String("collection", r.collection),
		slog.Int("query_len", len(query)),
		slog.Int("results", len(passages)),
	)
	return passages, nil
}

// passageFromPayload maps a point payload onto a Passage. Missing or
// non-string values become "".
func passageFromPayload(p map[string]*qdrant.Value) Passage {
	var out Passage
	if v, ok := p[qdrantContentKey]; ok {
		out.Content = v.GetStringValue()
	}
	if v, ok := p[qdrantSourceKey]; ok {
		out.SourceLabel = v.GetStringValue()
	}
	return out
}

// Name returns the dependency label used in readiness responses.
func (r *QdrantRetriever) Name() string { return "qdrant" }

// Ping runs the Qdrant gRPC health check.
func (r *QdrantRetriever) Ping(ctx context.Context) error {
	if _, err := r.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (r *QdrantRetriever) Close() error {
	return r.client.Close()
}
