package provider

import (
	"context"
	"strings"

	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// newOllama constructs a ChatModel backed by a local Ollama instance. The
// model tag is supplied per call; Endpoint defaults to DefaultOllamaURL.
func newOllama(ctx context.Context, cfg *Config) (Generator, error) {
	baseURL := strings.TrimRight(cfg.Endpoint, "/")
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		BaseURL: baseURL,
		Model:   cfg.Deployments[cfg.DefaultModel],
	})
}

// callOptions returns the per-call tuning options for cfg. Unset values are
// left to the service.
func callOptions(cfg *Config) []model.Option {
	var opts []model.Option
	if cfg.Temperature != nil {
		opts = append(opts, model.WithTemperature(*cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(cfg.MaxTokens))
	}
	return opts
}

// newOpenAI constructs a ChatModel backed by the OpenAI API. The model name
// is supplied per call, so Model here is only the fallback.
func newOpenAI(ctx context.Context, cfg *Config) (Generator, error) {
	mc := &einoopenai.ChatModelConfig{
		Model:       cfg.Deployments[cfg.DefaultModel],
		APIKey:      cfg.APIKey,
		Temperature: cfg.Temperature,
	}
	if cfg.MaxTokens > 0 {
		mc.MaxTokens = &cfg.MaxTokens
	}
	if cfg.Endpoint != "" {
		mc.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	return einoopenai.NewChatModel(ctx, mc) //nolint:wrapcheck // constructor passthrough
}

// newAzure constructs a ChatModel backed by Azure OpenAI Service. The
// deployment is supplied per call through model.WithModel.
func newAzure(ctx context.Context, cfg *Config) (Generator, error) {
	mc := &einoopenai.ChatModelConfig{
		Model:       cfg.Deployments[cfg.DefaultModel],
		APIKey:      cfg.APIKey,
		BaseURL:     strings.TrimRight(cfg.Endpoint, "/"),
		ByAzure:     true,
		APIVersion:  cfg.APIVersion,
		Temperature: cfg.Temperature,
		// Use the deployment name as-is; the default mapper strips dots/colons
		// which breaks deployment names like "gpt-4.1".
		AzureModelMapperFunc: func(model string) string { return model },
	}
	if cfg.MaxTokens > 0 {
		mc.MaxTokens = &cfg.MaxTokens
	}
	return einoopenai.NewChatModel(ctx, mc) //nolint:wrapcheck // constructor passthrough
}
