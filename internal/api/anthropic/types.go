// Package anthropic provides request/response types and an HTTP client for
// the Anthropic Messages API.
package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tjfontaine/youtube-reviewer/internal/domain"
)

// MessagesRequest represents an Anthropic Messages API request.
type MessagesRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature *float32  `json:"temperature,omitempty"`
	Metadata    *Metadata `json:"metadata,omitempty"`
}

// Message represents a message in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Metadata carries request metadata.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// MessagesResponse represents an Anthropic Messages API response.
type MessagesResponse struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Role         string            `json:"role"`
	Content      []ResponseContent `json:"content"`
	Model        string            `json:"model"`
	StopReason   string            `json:"stop_reason"`
	StopSequence *string           `json:"stop_sequence,omitempty"`
	Usage        MessagesUsage     `json:"usage"`
}

// Text returns the concatenated text blocks of the response.
func (r *MessagesResponse) Text() string {
	var b strings.Builder
	for _, part := range r.Content {
		if part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// ResponseContent represents a content block in the response.
type ResponseContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// MessagesUsage represents token usage.
type MessagesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ErrorResponse represents an Anthropic API error.
type ErrorResponse struct {
	Type  string    `json:"type"`
	Error *APIError `json:"error"`
}

// APIError contains error details.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ToCanonical converts the Anthropic error to a canonical domain error.
func (e *APIError) ToCanonical(status int) *domain.APIError {
	var errType domain.ErrorType
	switch e.Type {
	case "invalid_request_error":
		errType = domain.ErrorTypeInvalidRequest
		if strings.Contains(strings.ToLower(e.Message), "prompt is too long") {
			errType = domain.ErrorTypeContextLength
		}
	case "authentication_error":
		errType = domain.ErrorTypeAuthentication
	case "permission_error":
		errType = domain.ErrorTypePermission
	case "not_found_error":
		errType = domain.ErrorTypeNotFound
	case "rate_limit_error":
		errType = domain.ErrorTypeRateLimit
	case "overloaded_error":
		errType = domain.ErrorTypeOverloaded
	default:
		errType = domain.ErrorTypeFromStatus(status)
	}
	return &domain.APIError{
		Type:       errType,
		Code:       e.Type,
		Message:    e.Message,
		StatusCode: status,
		SourceAPI:  domain.APITypeAnthropic,
	}
}

// ParseErrorResponse attempts to parse an error response from JSON.
func ParseErrorResponse(data []byte) (*APIError, error) {
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return nil, err
	}
	if errResp.Error == nil {
		return nil, nil
	}
	return errResp.Error, nil
}
