package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tjfontaine/youtube-reviewer/internal/domain"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without api key error = nil, want error")
	}
}

func TestClient_CreateMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Errorf("anthropic-version = %q", got)
		}
		if got := r.Header.Get("x-api-key"); got != "ak-test" {
			t.Errorf("x-api-key = %q", got)
		}
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","stop_reason":"end_turn",
			"content":[{"type":"text","text":"{\"a\":"},{"type":"tool_use"},{"type":"text","text":"1}"}],
			"usage":{"input_tokens":3,"output_tokens":4}}`)
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "ak-test", BaseURL: srv.URL + "/", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := c.CreateMessage(context.Background(), &MessagesRequest{
		Model:     "claude-3-5-haiku-latest",
		MaxTokens: 16,
		Messages:  []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if resp.Text() != `{"a":1}` {
		t.Errorf("Text() = %q", resp.Text())
	}
	if resp.Usage.OutputTokens != 4 {
		t.Errorf("OutputTokens = %d, want 4", resp.Usage.OutputTokens)
	}
}

func TestClient_CreateMessage_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType domain.ErrorType
	}{
		{"rate limited", http.StatusTooManyRequests, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, domain.ErrorTypeRateLimit},
		{"prompt too long", http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long"}}`, domain.ErrorTypeContextLength},
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`, domain.ErrorTypeOverloaded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c, _ := New(Config{APIKey: "ak-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
			_, err := c.CreateMessage(context.Background(), &MessagesRequest{Model: "m", MaxTokens: 1})

			var apiErr *domain.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("CreateMessage() error = %v, want *domain.APIError", err)
			}
			if apiErr.Type != tt.wantType || apiErr.StatusCode != tt.status {
				t.Errorf("error = %+v, want type %s status %d", apiErr, tt.wantType, tt.status)
			}
		})
	}
}

func TestClient_CreateMessage_UndecodableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := New(Config{APIKey: "ak-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.CreateMessage(context.Background(), &MessagesRequest{Model: "m", MaxTokens: 1})
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Errorf("CreateMessage() error = %v, want status 502", err)
	}
}
