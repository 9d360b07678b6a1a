// Package voice adapts the conversational voice vendor (ElevenLabs).
//
// The service touches the vendor in exactly two places: fetching a signed
// websocket URL so the browser can open an agent session, and receiving
// post-call webhooks. Everything else about the voice session lives in the
// client.
package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the vendor API endpoint.
const DefaultBaseURL = "https://api.elevenlabs.io"

// defaultHTTPTimeout bounds vendor API calls.
const defaultHTTPTimeout = 10 * time.Second

// Opts holds configuration options for the voice client.
type Opts struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Option defines a configuration option for the voice client.
type Option func(*Opts)

// WithAPIKey sets the vendor API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the vendor endpoint (used in tests).
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client is a thin REST client for the voice vendor.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new voice vendor client.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("voice.NewClient invoked", "api_key_set", cfg.APIKey != "", "base_url", cfg.BaseURL)

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("voice vendor API key not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{apiKey: cfg.APIKey, baseURL: cfg.BaseURL, http: cfg.HTTPClient}, nil
}

// GetSignedURL fetches a short-lived signed websocket URL for the given agent.
func (c *Client) GetSignedURL(ctx context.Context, agentID string) (string, error) {
	if agentID == "" {
		return "", fmt.Errorf("agent id cannot be empty")
	}
	endpoint := c.baseURL + "/v1/convai/conversation/get_signed_url?" + url.Values{"agent_id": {agentID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("voice.Client GetSignedURL request failed", "error", err, "agentID", agentID)
		return "", fmt.Errorf("failed to fetch signed url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		slog.Error("voice.Client GetSignedURL non-OK response", "status", resp.StatusCode, "agentID", agentID)
		return "", fmt.Errorf("voice vendor returned %d: %s", resp.StatusCode, string(data))
	}

	var body struct {
		SignedURL string `json:"signed_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode signed url response failed: %w", err)
	}
	if body.SignedURL == "" {
		return "", fmt.Errorf("voice vendor returned empty signed url")
	}
	slog.Debug("voice.Client GetSignedURL succeeded", "agentID", agentID)
	return body.SignedURL, nil
}
