package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/54b3r/ragchat-go/internal/chat"
	"github.com/54b3r/ragchat-go/internal/logging"
)

// Defaults for the hybrid query, matching the index layout the corpus was
// built with.
const (
	DefaultSearchAPIVersion = "2024-05-01-preview"
	DefaultSemanticConfig   = "my-semantic-config"
	DefaultVectorField      = "contentVector"
	DefaultQueryLanguage    = "en-us"
)

// AzureSearchConfig holds the settings for an AzureSearchRetriever.
type AzureSearchConfig struct {
	// Endpoint is the search service URL (e.g. "https://my-svc.search.windows.net").
	Endpoint string
	// APIKey is the query or admin key sent in the api-key header.
	APIKey string
	// IndexName is the pre-built index to query.
	IndexName string
	// APIVersion is the REST api-version query parameter.
	APIVersion string
	// SemanticConfig is the semantic configuration name defined on the index.
	SemanticConfig string
	// VectorField is the index field holding the content embeddings.
	VectorField string
	// QueryLanguage is the language used by semantic ranking and captions.
	QueryLanguage string
	// HTTPClient overrides the default client. Tests inject httptest clients.
	HTTPClient *http.Client
}

// AzureSearchRetriever implements Retriever with a single hybrid
// (vector + semantic) request against an Azure AI Search index.
// It is safe for concurrent use.
type AzureSearchRetriever struct {
	cfg    AzureSearchConfig
	client *http.Client
}

// NewAzureSearchRetriever constructs an AzureSearchRetriever, filling unset
// optional fields with the package defaults.
func NewAzureSearchRetriever(cfg *AzureSearchConfig) (*AzureSearchRetriever, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("rag: azure search endpoint must not be empty")
	}
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("rag: azure search index name must not be empty")
	}
	resolved := *cfg
	resolved.Endpoint = strings.TrimRight(resolved.Endpoint, "/")
	if resolved.APIVersion == "" {
		resolved.APIVersion = DefaultSearchAPIVersion
	}
	if resolved.SemanticConfig == "" {
		resolved.SemanticConfig = DefaultSemanticConfig
	}
	if resolved.VectorField == "" {
		resolved.VectorField = DefaultVectorField
	}
	if resolved.QueryLanguage == "" {
		resolved.QueryLanguage = DefaultQueryLanguage
	}
	client := resolved.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &AzureSearchRetriever{cfg: resolved, client: client}, nil
}

// vectorQuery is one entry of the vectorQueries array.
type vectorQuery struct {
	Kind   string    `json:"kind"`
	Vector []float32 `json:"vector"`
	Fields string    `json:"fields"`
	K      int       `json:"k"`
}

// searchRequest is the JSON body of POST /indexes/{index}/docs/search.
type searchRequest struct {
	Search                string        `json:"search"`
	VectorQueries         []vectorQuery `json:"vectorQueries"`
	Select                string        `json:"select"`
	QueryType             string        `json:"queryType"`
	SemanticConfiguration string        `json:"semanticConfiguration"`
	QueryLanguage         string        `json:"queryLanguage,omitempty"`
	Captions              string        `json:"captions"`
	Answers               string        `json:"answers"`
	Top                   int           `json:"top"`
}

// searchDocument is one entry of the response "value" array. Only the
// selected fields are decoded; pointers distinguish absent from empty.
type searchDocument struct {
	Content    *string `json:"content"`
	SourcePage *string `json:"sourcepage"`
	Score      float64 `json:"@search.score"`
	Reranker   float64 `json:"@search.rerankerScore"`
}

// searchResponse is the JSON body returned by the search endpoint.
type searchResponse struct {
	Value []searchDocument `json:"value"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Retrieve issues the hybrid query and returns at most topK passages in the
// service's ranking order.
func (r *AzureSearchRetriever) Retrieve(ctx context.Context, query string, vector []float32, topK int) ([]Passage, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	body := searchRequest{
		Search: query,
		VectorQueries: []vectorQuery{{
			Kind:   "vector",
			Vector: vector,
			Fields: r.cfg.VectorField,
			K:      topK,
		}},
		Select:                "content,sourcepage",
		QueryType:             "semantic",
		SemanticConfiguration: r.cfg.SemanticConfig,
		QueryLanguage:         r.cfg.QueryLanguage,
		Captions:              "extractive",
		Answers:               "extractive",
		Top:                   topK,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("rag: marshal search request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
		r.cfg.Endpoint, url.PathEscape(r.cfg.IndexName), url.QueryEscape(r.cfg.APIVersion))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("rag: create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, chat.NewServiceError("search", "search", 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, chat.NewServiceError("search", "search", resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	var result searchResponse
	decodeErr := json.Unmarshal(raw, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("unexpected status %s", resp.Status)
		if decodeErr == nil && result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return nil, chat.NewServiceError("search", "search", resp.StatusCode, fmt.Errorf("%s", msg))
	}
	if decodeErr != nil {
		return nil, chat.NewServiceError("search", "search", resp.StatusCode, fmt.Errorf("decode response: %w", decodeErr))
	}

	passages := make([]Passage, 0, len(result.Value))
	for _, d := range result.Value {
		passages = append(passages, d.passage())
	}
	passages = truncate(passages, topK)

	logging.FromContext(ctx).Debug("azure search complete",
		slog.String("index", r.cfg.IndexName),
		slog.Int("results", len(passages)),
	)

	return passages, nil
}

// passage converts a response document into a Passage, defaulting absent
// fields to the empty string.
func (d searchDocument) passage() Passage {
	var p Passage
	if d.Content != nil {
		p.Content = *d.Content
	}
	if d.SourcePage != nil {
		p.SourceLabel = *d.SourcePage
	}
	return p
}

// Name returns the dependency label used in readiness responses.
func (r *AzureSearchRetriever) Name() string { return "azure-search" }

// Ping fetches the index definition to confirm the endpoint, key and index
// are all valid. It does not run a query.
func (r *AzureSearchRetriever) Ping(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/indexes/%s?api-version=%s",
		r.cfg.Endpoint, url.PathEscape(r.cfg.IndexName), url.QueryEscape(r.cfg.APIVersion))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("rag: create ping request: %w", err)
	}
	req.Header.Set("api-key", r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("index %q: HTTP %d", r.cfg.IndexName, resp.StatusCode)
	}
	return nil
}
