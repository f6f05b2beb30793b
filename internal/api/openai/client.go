package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultBaseURL         = "https://api.openai.com/v1"
	defaultAzureAPIVersion = "2024-02-15-preview"
	userAgent              = "youtube-reviewer/1.0"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAzureDeployment switches the client to Azure OpenAI addressing: the
// base URL is the resource endpoint, requests go to
// /openai/deployments/{deployment}/chat/completions?api-version=..., and the
// key is sent in the api-key header.
func WithAzureDeployment(deployment, apiVersion string) ClientOption {
	return func(c *Client) {
		if apiVersion == "" {
			apiVersion = defaultAzureAPIVersion
		}
		c.azureDeployment = deployment
		c.azureAPIVersion = apiVersion
	}
}

// Client is a custom HTTP client for the OpenAI API.
type Client struct {
	apiKey          string
	baseURL         string
	httpClient      *http.Client
	azureDeployment string
	azureAPIVersion string
}

// NewClient creates a new OpenAI API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAzure reports whether the client addresses an Azure deployment.
func (c *Client) IsAzure() bool {
	return c.azureDeployment != ""
}

// CreateChatCompletion sends a chat completion request.
func (c *Client) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if apiErr, err := ParseErrorResponse(respBody); err == nil && apiErr != nil {
			return nil, apiErr.ToCanonical(resp.StatusCode)
		}
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}

func (c *Client) completionsURL() string {
	if !c.IsAzure() {
		return c.baseURL + "/chat/completions"
	}
	q := url.Values{}
	q.Set("api-version", c.azureAPIVersion)
	return c.baseURL + "/openai/deployments/" + url.PathEscape(c.azureDeployment) + "/chat/completions?" + q.Encode()
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.IsAzure() {
		req.Header.Set("api-key", c.apiKey)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}
