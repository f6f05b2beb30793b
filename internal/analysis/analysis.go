// Package analysis turns a prompt and an expected result shape into
// structured JSON using a hosted language model.
//
// An Analyzer only guarantees that it returns syntactically valid JSON.
// Callers decode the result into their typed response and validate it;
// anything that does not fit is a shape mismatch handled by the caller.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tjfontaine/youtube-reviewer/internal/domain"
	"github.com/tjfontaine/youtube-reviewer/internal/models"
)

// ErrEmptyResponse is returned when the model produced no usable content.
var ErrEmptyResponse = errors.New("analysis: empty model response")

// Request is one structured analysis call.
type Request struct {
	// Instructions is the system prompt describing the task.
	Instructions string
	// Prompt carries the content to analyze.
	Prompt string
	// Schema is the expected result shape.
	Schema models.Schema
}

// Analyzer runs a Request against a model.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (json.RawMessage, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, req Request) (json.RawMessage, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, req Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// extractJSON returns the JSON object embedded in model text output,
// tolerating markdown code fences and leading prose.
func extractJSON(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, shapeError("no JSON object in model output", nil)
	}

	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, shapeError("model output is not valid JSON", nil)
	}
	return json.RawMessage(candidate), nil
}

func shapeError(msg string, err error) error {
	return domain.NewError(domain.KindAnalysisShape, msg, err)
}

func providerError(provider string, err error) error {
	return fmt.Errorf("%s analysis: %w", provider, err)
}
