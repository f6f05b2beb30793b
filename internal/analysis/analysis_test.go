package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/youtube-reviewer/internal/api/anthropic"
	"github.com/tjfontaine/youtube-reviewer/internal/api/openai"
	"github.com/tjfontaine/youtube-reviewer/internal/domain"
	"github.com/tjfontaine/youtube-reviewer/internal/models"
	"github.com/tjfontaine/youtube-reviewer/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenAIAnalyzer_Replay(t *testing.T) {
	httpClient := testutil.VCRHTTPClient(t, "openai_key_concepts")

	client := openai.NewClient(testutil.APIKey("OPENAI_API_KEY"), openai.WithHTTPClient(httpClient))
	a := NewOpenAIAnalyzer(client, "gpt-4o-mini", 2048, discardLogger())

	raw, err := a.Analyze(context.Background(), Request{
		Instructions: "Extract key concepts from the transcript.",
		Prompt:       "Transcript:\n[00:00:00] Photosynthesis basics\n[00:00:04] Chlorophyll is green",
		Schema:       models.KeyConceptsSchema,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	var resp models.KeyConceptsResponse
	if err := models.Decode(raw, &resp); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(resp.KeyConcepts) != 2 {
		t.Fatalf("len(KeyConcepts) = %d, want 2", len(resp.KeyConcepts))
	}
	if resp.KeyConcepts[0].Term != "Photosynthesis" {
		t.Errorf("KeyConcepts[0].Term = %v, want Photosynthesis", resp.KeyConcepts[0].Term)
	}
}

func TestOpenAIAnalyzer_AzureReplay(t *testing.T) {
	httpClient := testutil.VCRHTTPClient(t, "openai_key_concepts")

	a, err := New(Config{
		Provider:   ProviderAzure,
		APIKey:     testutil.APIKey("AZURE_OPENAI_API_KEY"),
		BaseURL:    "https://example-resource.openai.azure.com",
		Deployment: "reviewer-gpt",
	}, httpClient, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	raw, err := a.Analyze(context.Background(), Request{
		Instructions: "Find connections.",
		Prompt:       "- Photosynthesis: light to energy\n- Chlorophyll: green pigment",
		Schema:       models.ConnectionsSchema,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	var resp models.ConnectionsResponse
	if err := models.Decode(raw, &resp); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if resp.Synthesis == "" || len(resp.Connections) != 1 {
		t.Errorf("resp = %+v, want one connection and a synthesis", resp)
	}
}

func TestOpenAIAnalyzer_RequestShape(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	client := openai.NewClient("sk-test", openai.WithBaseURL(srv.URL), openai.WithHTTPClient(srv.Client()))
	a := NewOpenAIAnalyzer(client, "gpt-4o-mini", 512, discardLogger())

	if _, err := a.Analyze(context.Background(), Request{
		Instructions: "sys",
		Prompt:       "user",
		Schema:       models.QuizSchema,
	}); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_schema" {
		t.Fatalf("ResponseFormat = %+v, want json_schema", got.ResponseFormat)
	}
	if got.ResponseFormat.JSONSchema.Name != models.QuizSchema.Name || !got.ResponseFormat.JSONSchema.Strict {
		t.Errorf("JSONSchema = %+v", got.ResponseFormat.JSONSchema)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "user" {
		t.Errorf("Messages = %+v", got.Messages)
	}
	if got.MaxCompletionTokens != 512 {
		t.Errorf("MaxCompletionTokens = %d, want 512", got.MaxCompletionTokens)
	}
}

func TestOpenAIAnalyzer_Refusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"","refusal":"I can't help with that."},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	client := openai.NewClient("sk-test", openai.WithBaseURL(srv.URL), openai.WithHTTPClient(srv.Client()))
	_, err := NewOpenAIAnalyzer(client, "gpt-4o-mini", 0, discardLogger()).Analyze(context.Background(), Request{Schema: models.QuizSchema})
	if domain.KindOf(err) != domain.KindAnalysisShape {
		t.Errorf("Analyze() error = %v, want analysis shape error", err)
	}
}

func TestOpenAIAnalyzer_RetriesRateLimit(t *testing.T) {
	prev := retryBackoff
	retryBackoff = time.Millisecond
	defer func() { retryBackoff = prev }()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"slow down","type":"rate_limit_error"}}`)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	client := openai.NewClient("sk-test", openai.WithBaseURL(srv.URL), openai.WithHTTPClient(srv.Client()))
	raw, err := NewOpenAIAnalyzer(client, "gpt-4o-mini", 0, discardLogger()).Analyze(context.Background(), Request{Schema: models.QuizSchema})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Errorf("Analyze() = %s", raw)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestOpenAIAnalyzer_AuthErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer srv.Close()

	client := openai.NewClient("sk-bad", openai.WithBaseURL(srv.URL), openai.WithHTTPClient(srv.Client()))
	_, err := NewOpenAIAnalyzer(client, "gpt-4o-mini", 0, discardLogger()).Analyze(context.Background(), Request{Schema: models.QuizSchema})

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Analyze() error = %v, want *domain.APIError", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestAnthropicAnalyzer_Analyze(t *testing.T) {
	var got anthropic.MessagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "ak-test" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","stop_reason":"end_turn",
			"content":[{"type":"text","text":"Here you go:\n`+"```json"+`\n{\"main_thesis\":\"Plants eat light.\",\"argument_chains\":[]}\n`+"```"+`"}],
			"usage":{"input_tokens":10,"output_tokens":20}}`)
	}))
	defer srv.Close()

	client, err := anthropic.New(anthropic.Config{APIKey: "ak-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("anthropic.New() error = %v", err)
	}
	a := NewAnthropicAnalyzer(client, "claude-3-5-haiku-latest", 0, discardLogger())

	raw, err := a.Analyze(context.Background(), Request{
		Instructions: "Summarize the thesis.",
		Prompt:       "Transcript:\n[00:00:00] hi",
		Schema:       models.ThesisArgumentSchema,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	var resp models.ThesisArgumentResponse
	if err := models.Decode(raw, &resp); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if resp.MainThesis != "Plants eat light." {
		t.Errorf("MainThesis = %q", resp.MainThesis)
	}
	if !strings.Contains(got.System, `"main_thesis"`) {
		t.Errorf("System prompt does not carry the schema: %q", got.System)
	}
	if got.MaxTokens != defaultAnthropicMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", got.MaxTokens, defaultAnthropicMaxTokens)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose", "Sure! {\"a\":{\"b\":2}} Hope that helps.", `{"a":{"b":2}}`, false},
		{"empty", "   ", "", true},
		{"no object", "I cannot do that", "", true},
		{"broken", `{"a":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("extractJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"openai default", Config{APIKey: "k", Model: "gpt-4o-mini"}, false},
		{"anthropic", Config{Provider: "anthropic", APIKey: "k", Model: "claude-3-5-haiku-latest"}, false},
		{"azure", Config{Provider: "azure", APIKey: "k", BaseURL: "https://x.openai.azure.com", Deployment: "d"}, false},
		{"azure missing deployment", Config{Provider: "azure", APIKey: "k", BaseURL: "https://x"}, true},
		{"missing key", Config{Provider: "openai"}, true},
		{"unknown provider", Config{Provider: "bard", APIKey: "k"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, nil, discardLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
