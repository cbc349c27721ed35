package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/ragchat-go/internal/chat"
)

// ErrConfiguration is the kind of every missing or invalid configuration
// error. It is fatal: commands return it before serving anything.
var ErrConfiguration = errors.New("configuration error")

// Environment variable names.
const (
	EnvSearchEndpoint   = "AZURE_AI_SEARCH_ENDPOINT"
	EnvSearchKey        = "AZURE_AI_SEARCH_KEY"
	EnvSearchIndex      = "AZURE_AI_SEARCH_INDEX_NAME"
	EnvSearchVersion    = "AZURE_AI_SEARCH_API_VERSION"
	EnvSearchSemantic   = "AZURE_AI_SEARCH_SEMANTIC_CONFIG"
	EnvSearchVector     = "AZURE_AI_SEARCH_VECTOR_FIELD"
	EnvSearchLanguage   = "AZURE_AI_SEARCH_LANGUAGE"
	EnvSearchBackend    = "SEARCH_BACKEND"
	EnvTopK             = "RAG_TOP_K"
	EnvOpenAIBackend    = "OPENAI_BACKEND"
	EnvOpenAIKey        = "AZURE_OPENAI_API_KEY"
	EnvOpenAIEndpoint   = "AZURE_OPENAI_API_ENDPOINT"
	EnvOpenAIVersion    = "AZURE_OPENAI_API_VERSION"
	EnvEmbeddingModel   = "EMBEDDING_MODEL_NAME"
	EnvGPT35Turbo       = "GPT35TURBO_MODEL_NAME"
	EnvGPT4Turbo        = "GPT4TURBO_MODEL_NAME"
	EnvGPT4o            = "GPT4O_MODEL_NAME"
	EnvChatModel        = "CHAT_MODEL"
	EnvMaxTokens        = "MODEL_MAX_TOKENS"
	EnvTemperature      = "MODEL_TEMPERATURE"
	EnvQdrantHost       = "QDRANT_HOST"
	EnvQdrantPort       = "QDRANT_PORT"
	EnvQdrantCollection = "QDRANT_COLLECTION"
	EnvQdrantKey        = "QDRANT_API_KEY"
	EnvQdrantTLS        = "QDRANT_TLS"
	EnvServerHost       = "RAGCHAT_HOST"
	EnvServerPort       = "RAGCHAT_PORT"
)

// Backend names accepted by OPENAI_BACKEND and SEARCH_BACKEND.
const (
	BackendAzure  = "azure"
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
	BackendQdrant = "qdrant"
)

// modelEnv maps each chat model to the variable naming its deployment.
var modelEnv = []struct {
	model chat.ModelIdentifier
	env   string
}{
	{chat.ModelGPT35Turbo, EnvGPT35Turbo},
	{chat.ModelGPT4Turbo, EnvGPT4Turbo},
	{chat.ModelGPT4o, EnvGPT4o},
}

// Settings is the resolved, validated, read-only process configuration.
type Settings struct {
	// OpenAIBackend is azure, openai or ollama.
	OpenAIBackend string
	// OpenAIKey authenticates both embedding and completion calls.
	OpenAIKey string
	// OpenAIEndpoint is the Azure resource URL (optional base URL for openai,
	// Ollama server URL for ollama).
	OpenAIEndpoint string
	// OpenAIVersion is the Azure OpenAI API version.
	OpenAIVersion string
	// EmbeddingModel is the embedding deployment or model name.
	EmbeddingModel string
	// Deployments maps each configured chat model to its deployment.
	Deployments map[chat.ModelIdentifier]string
	// DefaultModel is the chat model used when none is selected.
	DefaultModel chat.ModelIdentifier
	// MaxTokens caps generated tokens (0 = service default).
	MaxTokens int
	// Temperature controls response randomness. Nil leaves the service
	// default in place.
	Temperature *float32

	// SearchBackend is azure or qdrant.
	SearchBackend string
	// SearchEndpoint, SearchKey and SearchIndex address the Azure AI Search index.
	SearchEndpoint string
	SearchKey      string
	SearchIndex    string
	// SearchAPIVersion, SemanticConfig, VectorField and QueryLanguage tune the
	// hybrid query. Empty values select the retriever defaults.
	SearchAPIVersion string
	SemanticConfig   string
	VectorField      string
	QueryLanguage    string
	// TopK is the number of passages retrieved per turn.
	TopK int

	// Qdrant connection settings (SEARCH_BACKEND=qdrant only).
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string
	QdrantAPIKey     string
	QdrantTLS        bool
}

// FromEnv resolves Settings from the process environment. Call it after
// Load and LoadDotEnv so every layer has been applied.
func FromEnv() (*Settings, error) {
	return fromLookup(os.Getenv)
}

// fromLookup resolves Settings through getenv. Every missing required
// variable and every invalid value is reported in one ErrConfiguration.
func fromLookup(getenv func(string) string) (*Settings, error) {
	var (
		missing []string
		invalid []string
	)
	require := func(key string) string {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	optional := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	s := &Settings{
		OpenAIBackend: strings.ToLower(optional(EnvOpenAIBackend, BackendAzure)),
		SearchBackend: strings.ToLower(optional(EnvSearchBackend, BackendAzure)),
		Deployments:   make(map[chat.ModelIdentifier]string),
	}

	switch s.OpenAIBackend {
	case BackendAzure:
		s.OpenAIKey = require(EnvOpenAIKey)
		s.OpenAIEndpoint = require(EnvOpenAIEndpoint)
		s.OpenAIVersion = require(EnvOpenAIVersion)
	case BackendOpenAI:
		s.OpenAIKey = require(EnvOpenAIKey)
		s.OpenAIEndpoint = optional(EnvOpenAIEndpoint, "")
	case BackendOllama:
		// GPT*_MODEL_NAME then name local model tags.
		s.OpenAIEndpoint = optional(EnvOpenAIEndpoint, "http://localhost:11434")
	default:
		invalid = append(invalid, fmt.Sprintf("%s=%q (valid values: azure, openai, ollama)", EnvOpenAIBackend, s.OpenAIBackend))
	}
	s.EmbeddingModel = require(EnvEmbeddingModel)

	for _, m := range modelEnv {
		if v := strings.TrimSpace(getenv(m.env)); v != "" {
			s.Deployments[m.model] = v
		}
	}
	if len(s.Deployments) == 0 {
		missing = append(missing, fmt.Sprintf("one of %s, %s, %s", EnvGPT35Turbo, EnvGPT4Turbo, EnvGPT4o))
	}

	if raw := optional(EnvChatModel, ""); raw != "" {
		m, err := chat.ParseModelIdentifier(raw)
		if err != nil {
			invalid = append(invalid, fmt.Sprintf("%s: %v", EnvChatModel, err))
		}
		s.DefaultModel = m
	} else {
		s.DefaultModel = chat.DefaultModel
		if _, ok := s.Deployments[chat.DefaultModel]; !ok {
			// Fall back to the first configured model.
			for _, m := range modelEnv {
				if _, ok := s.Deployments[m.model]; ok {
					s.DefaultModel = m.model
					break
				}
			}
		}
	}
	if s.DefaultModel != "" && len(s.Deployments) > 0 {
		if _, ok := s.Deployments[s.DefaultModel]; !ok {
			invalid = append(invalid, fmt.Sprintf("%s=%s has no deployment configured", EnvChatModel, s.DefaultModel))
		}
	}

	switch s.SearchBackend {
	case BackendAzure:
		s.SearchEndpoint = require(EnvSearchEndpoint)
		s.SearchKey = require(EnvSearchKey)
		s.SearchIndex = require(EnvSearchIndex)
		s.SearchAPIVersion = optional(EnvSearchVersion, "")
		s.SemanticConfig = optional(EnvSearchSemantic, "")
		s.VectorField = optional(EnvSearchVector, "")
		s.QueryLanguage = optional(EnvSearchLanguage, "")
	case BackendQdrant:
		s.QdrantHost = optional(EnvQdrantHost, "localhost")
		s.QdrantCollection = require(EnvQdrantCollection)
		s.QdrantAPIKey = optional(EnvQdrantKey, "")
	default:
		invalid = append(invalid, fmt.Sprintf("%s=%q (valid values: azure, qdrant)", EnvSearchBackend, s.SearchBackend))
	}

	var err error
	if s.TopK, err = parsePositiveInt(optional(EnvTopK, "3")); err != nil {
		invalid = append(invalid, fmt.Sprintf("%s: %v", EnvTopK, err))
	}
	if s.MaxTokens, err = parseNonNegativeInt(optional(EnvMaxTokens, "0")); err != nil {
		invalid = append(invalid, fmt.Sprintf("%s: %v", EnvMaxTokens, err))
	}
	if raw := optional(EnvTemperature, ""); raw != "" {
		if t, perr := strconv.ParseFloat(raw, 32); perr != nil || t < 0 || t > 2 {
			invalid = append(invalid, fmt.Sprintf("%s: must be a number between 0 and 2", EnvTemperature))
		} else {
			temp := float32(t)
			s.Temperature = &temp
		}
	}
	if s.SearchBackend == BackendQdrant {
		if s.QdrantPort, err = parsePositiveInt(optional(EnvQdrantPort, "6334")); err != nil {
			invalid = append(invalid, fmt.Sprintf("%s: %v", EnvQdrantPort, err))
		}
		if s.QdrantTLS, err = strconv.ParseBool(optional(EnvQdrantTLS, "false")); err != nil {
			invalid = append(invalid, fmt.Sprintf("%s: must be true or false", EnvQdrantTLS))
		}
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing required environment variables: "+strings.Join(missing, ", "))
	}
	problems = append(problems, invalid...)
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return s, nil
}

// parsePositiveInt parses s as an integer greater than zero.
func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer, got %q", s)
	}
	return n, nil
}

// parseNonNegativeInt parses s as an integer of zero or more.
func parseNonNegativeInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer, got %q", s)
	}
	return n, nil
}
