package provider

import (
	"context"
	"fmt"
)

// New constructs a Responder from an explicit Config, delegating to the
// appropriate backend factory function. It validates the config first so
// callers get a clear error at startup rather than on the first request.
func New(ctx context.Context, cfg *Config) (*Responder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		gen Generator
		err error
	)
	switch cfg.Backend {
	case BackendAzure:
		gen, err = newAzure(ctx, cfg)
	case BackendOpenAI:
		gen, err = newOpenAI(ctx, cfg)
	case BackendOllama:
		gen, err = newOllama(ctx, cfg)
	default:
		return nil, fmt.Errorf("provider: unknown backend %q — valid values: azure, openai, ollama", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("provider: failed to create %s chat model: %w", cfg.Backend, err)
	}

	r := NewResponder(gen, cfg.Deployments, cfg.DefaultModel)
	if cfg.Backend == BackendOllama {
		// The Ollama model takes tuning per call rather than at construction.
		r.callOpts = callOptions(cfg)
	}
	return r, nil
}
