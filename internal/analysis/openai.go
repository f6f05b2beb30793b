package analysis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/tjfontaine/youtube-reviewer/internal/api/openai"
)

// OpenAIAnalyzer uses Chat Completions structured outputs. It serves both
// api.openai.com and Azure OpenAI deployments, depending on the client.
type OpenAIAnalyzer struct {
	client    *openai.Client
	model     string
	maxTokens int
	retries   int
	logger    *slog.Logger
}

// NewOpenAIAnalyzer creates an analyzer over client. The model is ignored
// by Azure, which routes on the deployment name.
func NewOpenAIAnalyzer(client *openai.Client, model string, maxTokens int, logger *slog.Logger) *OpenAIAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	provider := "openai"
	if client.IsAzure() {
		provider = "azure"
	}
	return &OpenAIAnalyzer{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		retries:   defaultRetries,
		logger:    logger.With("component", "analyzer", "provider", provider),
	}
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, req Request) (json.RawMessage, error) {
	chatReq := &openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: "system", Content: req.Instructions},
			{Role: "user", Content: req.Prompt},
		},
		MaxCompletionTokens: a.maxTokens,
		ResponseFormat: &openai.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &openai.JSONSchema{
				Name:   req.Schema.Name,
				Schema: req.Schema.Definition,
				Strict: true,
			},
		},
	}
	if a.client.IsAzure() {
		chatReq.Model = ""
	}

	var resp *openai.ChatCompletionResponse
	err := withRetry(ctx, a.retries, a.logger, func() error {
		var err error
		resp, err = a.client.CreateChatCompletion(ctx, chatReq)
		return err
	})
	if err != nil {
		return nil, providerError("openai", err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, shapeError("model refused: "+choice.Message.Refusal, nil)
	}
	if choice.FinishReason == "length" {
		return nil, shapeError("model output truncated", nil)
	}

	a.logger.Debug("analysis completed",
		"schema", req.Schema.Name,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return extractJSON(choice.Message.Content)
}
