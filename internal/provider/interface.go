// Package provider builds the completion side of the chat pipeline: an eino
// ChatModel for Azure OpenAI, OpenAI or a local Ollama server, wrapped in a
// Responder that maps a chat.ModelIdentifier onto its configured deployment
// per call.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragchat-go/internal/chat"
)

// Backend enumerates the supported completion services.
type Backend string

const (
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendOllama selects a local Ollama server. No API key is needed.
	BackendOllama Backend = "ollama"
)

// DefaultOllamaURL is used when the ollama backend has no endpoint.
const DefaultOllamaURL = "http://localhost:11434"

// Config holds all provider-level configuration resolved by the config
// package.
type Config struct {
	// Backend identifies which completion service to use.
	Backend Backend

	// Endpoint is the Azure OpenAI resource URL, an optional base URL
	// override for the OpenAI backend, or the Ollama server URL.
	Endpoint string

	// APIKey is the authentication credential.
	APIKey string

	// APIVersion is the Azure OpenAI REST API version (Azure only).
	APIVersion string

	// Deployments maps each selectable model to its deployment (Azure) or
	// model name (OpenAI, Ollama). Identifiers without an entry are not selectable.
	Deployments map[chat.ModelIdentifier]string

	// DefaultModel is used when a caller passes an empty identifier.
	DefaultModel chat.ModelIdentifier

	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int

	// Temperature controls response randomness. Nil leaves the service
	// default in place.
	Temperature *float32
}

// Validate reports the first configuration problem for the selected backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAzure:
		if c.APIKey == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_API_KEY is required for azure backend")
		}
		if c.Endpoint == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_API_ENDPOINT is required for azure backend")
		}
		if c.APIVersion == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_API_VERSION is required for azure backend")
		}
	case BackendOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_API_KEY is required for openai backend")
		}
	case BackendOllama:
	default:
		return fmt.Errorf("provider: unknown backend %q — valid values: azure, openai, ollama", c.Backend)
	}
	if len(c.Deployments) == 0 {
		return fmt.Errorf("provider: at least one chat deployment must be configured")
	}
	if _, ok := c.Deployments[c.DefaultModel]; !ok {
		return fmt.Errorf("provider: default model %q has no configured deployment (configured: %s)",
			c.DefaultModel, strings.Join(c.Models(), ", "))
	}
	return nil
}

// Models returns the selectable identifiers in a stable order.
func (c *Config) Models() []string {
	out := make([]string, 0, len(c.Deployments))
	for id := range c.Deployments {
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out
}

// Generator is the subset of an eino ChatModel used by the Responder.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}
