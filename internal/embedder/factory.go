package embedder

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// Backend selects the embeddings API flavour.
type Backend string

const (
	// BackendAzure selects Azure OpenAI Service (api-key header, deployment
	// path, api-version query parameter).
	BackendAzure Backend = "azure"
	// BackendOpenAI selects the public OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendOllama selects a local Ollama server.
	BackendOllama Backend = "ollama"
)

// Config holds the settings for constructing an embedder.
type Config struct {
	// Backend is azure, openai or ollama.
	Backend Backend
	// Endpoint is the Azure resource URL, an optional OpenAI-compatible
	// base URL override (e.g. "https://api.openai.com/v1"), or the Ollama
	// server URL.
	Endpoint string
	// APIKey is the authentication key.
	APIKey string
	// APIVersion is the Azure OpenAI API version. Ignored for openai.
	APIVersion string
	// Model is the embedding model name (openai, ollama) or deployment name
	// (azure).
	Model string
	// HTTPClient overrides the default client. Tests inject httptest clients.
	HTTPClient *http.Client
}

// Validate reports the first missing field for the selected backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAzure:
		if c.Endpoint == "" {
			return fmt.Errorf("embedder: azure requires an endpoint")
		}
		if c.APIVersion == "" {
			return fmt.Errorf("embedder: azure requires an API version")
		}
	case BackendOpenAI:
	case BackendOllama:
		if c.Model == "" {
			return fmt.Errorf("embedder: model must not be empty")
		}
		return nil
	default:
		return fmt.Errorf("embedder: unknown backend %q — valid values: azure, openai, ollama", c.Backend)
	}
	if c.APIKey == "" {
		return fmt.Errorf("embedder: %s requires an API key", c.Backend)
	}
	if c.Model == "" {
		return fmt.Errorf("embedder: model must not be empty")
	}
	return nil
}

// New returns the embedder for cfg.Backend.
func New(cfg *Config) (rag.Embedder, error) {
	if cfg.Backend == BackendOllama {
		e, err := NewOllamaEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	e, err := NewOpenAIEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// clientConfig translates Config into a go-openai client configuration.
func (c *Config) clientConfig() openai.ClientConfig {
	var cc openai.ClientConfig
	switch c.Backend {
	case BackendAzure:
		cc = openai.DefaultAzureConfig(c.APIKey, strings.TrimRight(c.Endpoint, "/"))
		cc.APIVersion = c.APIVersion
		// Deployment names are used as-is; the default mapper strips dots
		// which breaks names like "text-embedding-3.small".
		cc.AzureModelMapperFunc = func(model string) string { return model }
	default:
		cc = openai.DefaultConfig(c.APIKey)
		if c.Endpoint != "" {
			cc.BaseURL = strings.TrimRight(c.Endpoint, "/")
		}
	}
	if c.HTTPClient != nil {
		cc.HTTPClient = c.HTTPClient
	} else {
		cc.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return cc
}
