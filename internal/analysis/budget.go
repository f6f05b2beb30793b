package analysis

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// Budget caps the number of transcript tokens sent to the model.
type Budget struct {
	codec     tokenizer.Codec
	maxTokens int
	logger    *slog.Logger
}

// NewBudget creates a budget of maxTokens for model. A non-positive
// maxTokens disables truncation.
func NewBudget(model string, maxTokens int, logger *slog.Logger) (*Budget, error) {
	if logger == nil {
		logger = slog.Default()
	}
	codec, err := codecFor(model)
	if err != nil {
		return nil, err
	}
	return &Budget{
		codec:     codec,
		maxTokens: maxTokens,
		logger:    logger.With("component", "token_budget"),
	}, nil
}

// codecFor picks the tokenizer for model, falling back to the encoding of
// its family for names the tokenizer does not know (Azure deployments,
// Claude models).
func codecFor(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(tokenizer.Model(strings.ToLower(model))); err == nil {
		return codec, nil
	}

	codec, err := tokenizer.Get(encodingFor(model))
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}
	return codec, nil
}

func encodingFor(model string) tokenizer.Encoding {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "gpt-4.1"),
		strings.HasPrefix(m, "gpt-5"), strings.HasPrefix(m, "o1"),
		strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}

// Count returns the token count of text.
func (b *Budget) Count(text string) int {
	ids, _, err := b.codec.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}

// Fit returns text cut to the budget on a line boundary, and whether it
// was cut.
func (b *Budget) Fit(text string) (string, bool) {
	if b == nil || b.maxTokens <= 0 {
		return text, false
	}

	ids, _, err := b.codec.Encode(text)
	if err != nil || len(ids) <= b.maxTokens {
		return text, false
	}

	cut, err := b.codec.Decode(ids[:b.maxTokens])
	if err != nil {
		b.logger.Warn("token budget decode failed", "error", err)
		return text, false
	}
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}

	b.logger.Info("transcript truncated to token budget",
		"tokens", len(ids),
		"max_tokens", b.maxTokens,
		"kept_bytes", len(cut),
		"total_bytes", len(text),
	)
	return cut, true
}
