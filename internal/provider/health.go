package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HealthChecker checks the completion endpoint by listing models. It
// satisfies the server's readiness Pinger interface without spending tokens.
type HealthChecker struct {
	url    string
	header string
	key    string
	client *http.Client
}

// NewHealthChecker builds a HealthChecker for cfg. An explicit client may be
// supplied for tests; nil selects a 5s-timeout client.
func NewHealthChecker(cfg *Config, client *http.Client) *HealthChecker {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	h := &HealthChecker{client: client, key: cfg.APIKey}
	base := strings.TrimRight(cfg.Endpoint, "/")
	switch cfg.Backend {
	case BackendAzure:
		h.url = base + "/openai/models?api-version=" + url.QueryEscape(cfg.APIVersion)
		h.header = "api-key"
	case BackendOllama:
		if base == "" {
			base = DefaultOllamaURL
		}
		h.url = base + "/api/tags"
	default:
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		h.url = base + "/models"
		h.header = "Authorization"
		h.key = "Bearer " + cfg.APIKey
	}
	return h
}

// Name returns the dependency label used in readiness responses.
func (h *HealthChecker) Name() string { return "completion" }

// Ping returns nil when the endpoint accepts the credential.
func (h *HealthChecker) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if h.header != "" {
		req.Header.Set(h.header, h.key)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
