// Package config provides layered configuration for ragchat.
// Configuration is loaded with this precedence: defaults → YAML file →
// credential file (dotenv) → process env. Process env always wins; the YAML
// and dotenv layers only fill variables that are still unset.
//
// YAML file search order:
//  1. --config CLI flag (explicit path)
//  2. RAGCHAT_CONFIG environment variable
//  3. ~/.ragchat/config.yaml
//  4. ./ragchat.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// OpenAI configures the embedding and completion service.
	OpenAI OpenAIConfig `yaml:"openai"`

	// Search configures the retrieval backend.
	Search SearchConfig `yaml:"search"`

	// Qdrant configures the alternate Qdrant retrieval backend.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// OpenAIConfig holds embedding and chat model settings.
type OpenAIConfig struct {
	// Backend selects azure, openai or ollama.
	Backend string `yaml:"backend"`
	// APIKey is the API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version"`
	// EmbeddingModel is the embedding deployment name.
	EmbeddingModel string `yaml:"embedding_model"`
	// Models maps each selectable chat model to its deployment.
	Models ChatModelsConfig `yaml:"models"`
	// DefaultModel is the chat model used when none is selected.
	DefaultModel string `yaml:"default_model"`
	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`
}

// ChatModelsConfig holds one deployment name per selectable chat model.
type ChatModelsConfig struct {
	GPT35Turbo string `yaml:"gpt35turbo"`
	GPT4Turbo  string `yaml:"gpt4turbo"`
	GPT4o      string `yaml:"gpt4o"`
}

// SearchConfig holds Azure AI Search settings.
type SearchConfig struct {
	// Backend selects azure or qdrant.
	Backend string `yaml:"backend"`
	// Endpoint is the search service URL.
	Endpoint string `yaml:"endpoint"`
	// Key is the search credential. Prefer env var AZURE_AI_SEARCH_KEY.
	Key string `yaml:"key"`
	// IndexName is the index to query.
	IndexName string `yaml:"index_name"`
	// APIVersion is the search REST API version.
	APIVersion string `yaml:"api_version"`
	// SemanticConfig is the semantic configuration name.
	SemanticConfig string `yaml:"semantic_config"`
	// VectorField is the embedding field name in the index.
	VectorField string `yaml:"vector_field"`
	// Language is the semantic query language.
	Language string `yaml:"language"`
	// TopK is the number of passages retrieved per turn.
	TopK int `yaml:"top_k"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{EnvOpenAIBackend, func(c *Config) string { return c.OpenAI.Backend }},
	{EnvOpenAIKey, func(c *Config) string { return c.OpenAI.APIKey }},
	{EnvOpenAIEndpoint, func(c *Config) string { return c.OpenAI.Endpoint }},
	{EnvOpenAIVersion, func(c *Config) string { return c.OpenAI.APIVersion }},
	{EnvEmbeddingModel, func(c *Config) string { return c.OpenAI.EmbeddingModel }},
	{EnvGPT35Turbo, func(c *Config) string { return c.OpenAI.Models.GPT35Turbo }},
	{EnvGPT4Turbo, func(c *Config) string { return c.OpenAI.Models.GPT4Turbo }},
	{EnvGPT4o, func(c *Config) string { return c.OpenAI.Models.GPT4o }},
	{EnvChatModel, func(c *Config) string { return c.OpenAI.DefaultModel }},
	{EnvMaxTokens, func(c *Config) string { return intStr(c.OpenAI.MaxTokens) }},
	{EnvTemperature, func(c *Config) string { return float32Str(c.OpenAI.Temperature) }},
	{EnvSearchBackend, func(c *Config) string { return c.Search.Backend }},
	{EnvSearchEndpoint, func(c *Config) string { return c.Search.Endpoint }},
	{EnvSearchKey, func(c *Config) string { return c.Search.Key }},
	{EnvSearchIndex, func(c *Config) string { return c.Search.IndexName }},
	{EnvSearchVersion, func(c *Config) string { return c.Search.APIVersion }},
	{EnvSearchSemantic, func(c *Config) string { return c.Search.SemanticConfig }},
	{EnvSearchVector, func(c *Config) string { return c.Search.VectorField }},
	{EnvSearchLanguage, func(c *Config) string { return c.Search.Language }},
	{EnvTopK, func(c *Config) string { return intStr(c.Search.TopK) }},
	{EnvQdrantHost, func(c *Config) string { return c.Qdrant.Host }},
	{EnvQdrantPort, func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{EnvQdrantCollection, func(c *Config) string { return c.Qdrant.Collection }},
	{EnvQdrantKey, func(c *Config) string { return c.Qdrant.APIKey }},
	{EnvQdrantTLS, func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{EnvServerHost, func(c *Config) string { return c.Server.Host }},
	{EnvServerPort, func(c *Config) string { return intStr(c.Server.Port) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set, do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("RAGCHAT_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".ragchat", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("ragchat.yaml"); err == nil {
		return "ragchat.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
