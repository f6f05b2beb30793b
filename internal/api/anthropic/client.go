package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultVersion = "2023-06-01"
	userAgent      = "youtube-reviewer/1.0"

	// maxResponseBytes bounds how much of a reply is read into memory.
	maxResponseBytes = 8 << 20
)

// Config holds the connection settings of a Client. Zero fields fall back
// to the public API endpoint, the 2023-06-01 version and
// http.DefaultClient.
type Config struct {
	APIKey     string
	BaseURL    string
	Version    string
	HTTPClient *http.Client
}

// Client calls the Messages endpoint.
type Client struct {
	apiKey   string
	endpoint string
	version  string
	http     *http.Client
}

// New creates a client. The API key is required.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = defaultVersion
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Client{
		apiKey:   cfg.APIKey,
		endpoint: base + "/v1/messages",
		version:  cfg.Version,
		http:     cfg.HTTPClient,
	}, nil
}

// CreateMessage sends one non-streaming messages request. Error replies are
// returned as *domain.APIError when the body can be decoded.
func (c *Client) CreateMessage(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode messages request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build messages request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", c.version)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("messages request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read messages response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, data)
	}

	var out MessagesResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode messages response: %w", err)
	}
	return &out, nil
}

func decodeError(status int, data []byte) error {
	if apiErr, err := ParseErrorResponse(data); err == nil && apiErr != nil {
		return apiErr.ToCanonical(status)
	}
	snippet := strings.TrimSpace(string(data))
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	return fmt.Errorf("anthropic: status %d: %s", status, snippet)
}
