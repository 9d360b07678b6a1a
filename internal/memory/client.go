// Package memory integrates the semantic memory collaborator (Mem0) and the
// chat pipeline built on top of it.
//
// This file implements a typed REST client for the memory service. One call
// contract per operation; there is no fallback through alternate payload
// shapes.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vasa-labs/vasa/internal/models"
)

// DefaultBaseURL is the hosted memory service endpoint.
const DefaultBaseURL = "https://api.mem0.ai"

// defaultHTTPTimeout bounds individual memory service calls.
const defaultHTTPTimeout = 15 * time.Second

// Opts holds configuration options for the memory client.
type Opts struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Option defines a configuration option for the memory client.
type Option func(*Opts)

// WithAPIKey sets the memory service API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the memory service endpoint (used in tests).
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client is a REST client for the semantic memory service.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new memory service client.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("memory.NewClient invoked", "api_key_set", cfg.APIKey != "", "base_url", cfg.BaseURL)

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("memory service API key not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{apiKey: cfg.APIKey, baseURL: cfg.BaseURL, http: cfg.HTTPClient}, nil
}

// addRequest is the wire payload for storing a memory.
type addRequest struct {
	Messages []addMessage           `json:"messages"`
	UserID   string                 `json:"user_id"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type addMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// searchRequest is the wire payload for a semantic search.
type searchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

// memoryRecord is the wire shape of one stored memory.
type memoryRecord struct {
	ID        string  `json:"id"`
	Memory    string  `json:"memory"`
	Score     float64 `json:"score"`
	CreatedAt string  `json:"created_at"`
}

// Add stores text as a memory for the given user.
func (c *Client) Add(ctx context.Context, userID, text string, metadata map[string]interface{}) error {
	payload := addRequest{
		Messages: []addMessage{{Role: "user", Content: text}},
		UserID:   userID,
		Metadata: metadata,
	}
	if err := c.post(ctx, "/v1/memories/", payload, nil); err != nil {
		slog.Error("memory.Client Add failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to add memory for %s: %w", userID, err)
	}
	slog.Debug("memory.Client Add succeeded", "userID", userID, "text_len", len(text))
	return nil
}

// Search returns ranked memory snippets matching the query.
func (c *Client) Search(ctx context.Context, userID, query string, limit int) ([]models.MemorySnippet, error) {
	var records []memoryRecord
	err := c.post(ctx, "/v1/memories/search/", searchRequest{Query: query, UserID: userID, Limit: limit}, &records)
	if err != nil {
		slog.Error("memory.Client Search failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to search memories for %s: %w", userID, err)
	}
	slog.Debug("memory.Client Search succeeded", "userID", userID, "count", len(records))
	return toSnippets(records), nil
}

// GetAll returns every memory stored for the given user.
func (c *Client) GetAll(ctx context.Context, userID string) ([]models.MemorySnippet, error) {
	endpoint := c.baseURL + "/v1/memories/?" + url.Values{"user_id": {userID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var records []memoryRecord
	if err := c.do(req, &records); err != nil {
		slog.Error("memory.Client GetAll failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get memories for %s: %w", userID, err)
	}
	slog.Debug("memory.Client GetAll succeeded", "userID", userID, "count", len(records))
	return toSnippets(records), nil
}

// post sends a JSON POST and optionally decodes the response into out.
func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request failed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do executes a request with auth headers and decodes the JSON response.
func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Token "+c.apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("memory service returned %s: %s", strconv.Itoa(resp.StatusCode), string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response failed: %w", err)
	}
	return nil
}

func toSnippets(records []memoryRecord) []models.MemorySnippet {
	snippets := make([]models.MemorySnippet, 0, len(records))
	for _, r := range records {
		snippets = append(snippets, models.MemorySnippet{
			ID:        r.ID,
			Text:      r.Memory,
			Score:     r.Score,
			CreatedAt: r.CreatedAt,
		})
	}
	return snippets
}
