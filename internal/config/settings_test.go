package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/54b3r/ragchat-go/internal/chat"
)

// baseEnv is a complete azure/azure environment.
func baseEnv() map[string]string {
	return map[string]string{
		EnvSearchEndpoint: "https://s.search.windows.net",
		EnvSearchKey:      "search-key",
		EnvSearchIndex:    "docs",
		EnvOpenAIKey:      "openai-key",
		EnvOpenAIEndpoint: "https://o.openai.azure.com",
		EnvOpenAIVersion:  "2024-02-01",
		EnvEmbeddingModel: "text-embedding-ada-002",
		EnvGPT35Turbo:     "gpt35-deploy",
		EnvGPT4Turbo:      "gpt4t-deploy",
		EnvGPT4o:          "gpt4o-deploy",
	}
}

func lookup(env map[string]string) func(string) string {
	return func(k string) string { return env[k] }
}

func TestFromLookup_Complete(t *testing.T) {
	t.Parallel()

	s, err := fromLookup(lookup(baseEnv()))
	if err != nil {
		t.Fatalf("fromLookup: %v", err)
	}
	if s.OpenAIBackend != BackendAzure || s.SearchBackend != BackendAzure {
		t.Errorf("backends = %s/%s", s.OpenAIBackend, s.SearchBackend)
	}
	if s.DefaultModel != chat.ModelGPT4o {
		t.Errorf("default model = %q", s.DefaultModel)
	}
	if len(s.Deployments) != 3 || s.Deployments[chat.ModelGPT35Turbo] != "gpt35-deploy" {
		t.Errorf("deployments = %v", s.Deployments)
	}
	if s.TopK != 3 || s.MaxTokens != 0 {
		t.Errorf("defaults: topK=%d maxTokens=%d", s.TopK, s.MaxTokens)
	}
	if s.Temperature != nil {
		t.Errorf("temperature = %v, want unset so the service default applies", *s.Temperature)
	}
}

// TestFromLookup_ListsEveryMissingVariable verifies one error names every
// absent required variable.
func TestFromLookup_ListsEveryMissingVariable(t *testing.T) {
	t.Parallel()

	_, err := fromLookup(lookup(map[string]string{}))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	for _, k := range []string{
		EnvSearchEndpoint, EnvSearchKey, EnvSearchIndex,
		EnvOpenAIKey, EnvOpenAIEndpoint, EnvOpenAIVersion, EnvEmbeddingModel,
		EnvGPT4o,
	} {
		if !strings.Contains(err.Error(), k) {
			t.Errorf("error does not mention %s: %v", k, err)
		}
	}
}

func TestFromLookup_Variants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(env map[string]string)
		wantErr string
		check   func(t *testing.T, s *Settings)
	}{
		{
			name:   "default model falls back to first configured",
			mutate: func(env map[string]string) { delete(env, EnvGPT4o); delete(env, EnvGPT4Turbo) },
			check: func(t *testing.T, s *Settings) {
				if s.DefaultModel != chat.ModelGPT35Turbo {
					t.Errorf("default model = %q", s.DefaultModel)
				}
			},
		},
		{
			name:   "explicit chat model alias",
			mutate: func(env map[string]string) { env[EnvChatModel] = "gpt-3.5-turbo" },
			check: func(t *testing.T, s *Settings) {
				if s.DefaultModel != chat.ModelGPT35Turbo {
					t.Errorf("default model = %q", s.DefaultModel)
				}
			},
		},
		{
			name:    "chat model without deployment",
			mutate:  func(env map[string]string) { delete(env, EnvGPT4Turbo); env[EnvChatModel] = "gpt-4-turbo" },
			wantErr: "no deployment configured",
		},
		{
			name:    "unknown chat model",
			mutate:  func(env map[string]string) { env[EnvChatModel] = "llama3" },
			wantErr: EnvChatModel,
		},
		{
			name:    "unknown openai backend",
			mutate:  func(env map[string]string) { env[EnvOpenAIBackend] = "bedrock" },
			wantErr: EnvOpenAIBackend,
		},
		{
			name: "openai backend needs no endpoint or version",
			mutate: func(env map[string]string) {
				env[EnvOpenAIBackend] = "openai"
				delete(env, EnvOpenAIEndpoint)
				delete(env, EnvOpenAIVersion)
			},
			check: func(t *testing.T, s *Settings) {
				if s.OpenAIBackend != BackendOpenAI || s.OpenAIEndpoint != "" {
					t.Errorf("openai settings = %+v", s)
				}
			},
		},
		{
			name:   "explicit zero temperature is kept",
			mutate: func(env map[string]string) { env[EnvTemperature] = "0" },
			check: func(t *testing.T, s *Settings) {
				if s.Temperature == nil || *s.Temperature != 0 {
					t.Errorf("temperature = %v, want 0", s.Temperature)
				}
			},
		},
		{
			name: "ollama backend needs no key and defaults the endpoint",
			mutate: func(env map[string]string) {
				env[EnvOpenAIBackend] = "ollama"
				env[EnvGPT4o] = "llama3.1:8b"
				env[EnvEmbeddingModel] = "nomic-embed-text"
				delete(env, EnvOpenAIKey)
				delete(env, EnvOpenAIEndpoint)
				delete(env, EnvOpenAIVersion)
			},
			check: func(t *testing.T, s *Settings) {
				if s.OpenAIBackend != BackendOllama || s.OpenAIEndpoint != "http://localhost:11434" || s.OpenAIKey != "" {
					t.Errorf("ollama settings = %+v", s)
				}
				if s.Deployments[chat.ModelGPT4o] != "llama3.1:8b" {
					t.Errorf("deployments = %v", s.Deployments)
				}
			},
		},
		{
			name: "qdrant backend",
			mutate: func(env map[string]string) {
				env[EnvSearchBackend] = "qdrant"
				env[EnvQdrantCollection] = "docs"
				env[EnvQdrantTLS] = "true"
				delete(env, EnvSearchEndpoint)
				delete(env, EnvSearchKey)
				delete(env, EnvSearchIndex)
			},
			check: func(t *testing.T, s *Settings) {
				if s.QdrantHost != "localhost" || s.QdrantPort != 6334 || !s.QdrantTLS || s.QdrantCollection != "docs" {
					t.Errorf("qdrant settings = %+v", s)
				}
			},
		},
		{
			name: "qdrant backend requires collection",
			mutate: func(env map[string]string) {
				env[EnvSearchBackend] = "qdrant"
			},
			wantErr: EnvQdrantCollection,
		},
		{
			name:    "invalid top k",
			mutate:  func(env map[string]string) { env[EnvTopK] = "0" },
			wantErr: EnvTopK,
		},
		{
			name:    "invalid temperature",
			mutate:  func(env map[string]string) { env[EnvTemperature] = "hot" },
			wantErr: EnvTemperature,
		},
		{
			name:   "tuning values",
			mutate: func(env map[string]string) { env[EnvTopK] = "5"; env[EnvMaxTokens] = "800"; env[EnvTemperature] = "0.7" },
			check: func(t *testing.T, s *Settings) {
				if s.TopK != 5 || s.MaxTokens != 800 || s.Temperature == nil || *s.Temperature != float32(0.7) {
					t.Errorf("tuning = %d/%d/%v", s.TopK, s.MaxTokens, s.Temperature)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := baseEnv()
			tc.mutate(env)
			s, err := fromLookup(lookup(env))
			if tc.wantErr != "" {
				if !errors.Is(err, ErrConfiguration) {
					t.Fatalf("err = %v, want ErrConfiguration", err)
				}
				if !strings.Contains(err.Error(), tc.wantErr) {
					t.Errorf("err = %v, want mention of %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("fromLookup: %v", err)
			}
			if tc.check != nil {
				tc.check(t, s)
			}
		})
	}
}
