package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/youtube-reviewer/internal/api/anthropic"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicAnalyzer uses the Messages API. The schema is described in the
// system prompt and the JSON object is extracted from the text reply.
type AnthropicAnalyzer struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	retries   int
	logger    *slog.Logger
}

// NewAnthropicAnalyzer creates an analyzer over client.
func NewAnthropicAnalyzer(client *anthropic.Client, model string, maxTokens int, logger *slog.Logger) *AnthropicAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicAnalyzer{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		retries:   defaultRetries,
		logger:    logger.With("component", "analyzer", "provider", "anthropic"),
	}
}

func (a *AnthropicAnalyzer) Analyze(ctx context.Context, req Request) (json.RawMessage, error) {
	schema, err := json.Marshal(req.Schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("encode schema %s: %w", req.Schema.Name, err)
	}

	system := req.Instructions +
		"\n\nRespond with a single JSON object and nothing else. It must match this JSON schema:\n" +
		string(schema)

	msgReq := &anthropic.MessagesRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    system,
		Messages: []anthropic.Message{
			{Role: "user", Content: req.Prompt},
		},
	}

	var resp *anthropic.MessagesResponse
	err = withRetry(ctx, a.retries, a.logger, func() error {
		var err error
		resp, err = a.client.CreateMessage(ctx, msgReq)
		return err
	})
	if err != nil {
		return nil, providerError("anthropic", err)
	}

	if resp.StopReason == "max_tokens" {
		return nil, shapeError("model output truncated", nil)
	}

	a.logger.Debug("analysis completed",
		"schema", req.Schema.Name,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)

	return extractJSON(resp.Text())
}
