package analysis

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/youtube-reviewer/internal/api/anthropic"
	"github.com/tjfontaine/youtube-reviewer/internal/api/openai"
)

// Provider names accepted in Config.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
)

// Config selects and configures the analysis provider.
type Config struct {
	Provider        string
	APIKey          string
	BaseURL         string
	Model           string
	Deployment      string // azure only
	APIVersion      string // azure only
	MaxOutputTokens int
	Timeout         time.Duration
}

// New builds the Analyzer for cfg. A nil httpClient gets an
// otelhttp-instrumented client with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) (Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("analysis: api key is required for provider %q", cfg.Provider)
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		}
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		opts := []openai.ClientOption{openai.WithHTTPClient(httpClient)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return NewOpenAIAnalyzer(openai.NewClient(cfg.APIKey, opts...), cfg.Model, cfg.MaxOutputTokens, logger), nil

	case ProviderAzure:
		if cfg.BaseURL == "" || cfg.Deployment == "" {
			return nil, fmt.Errorf("analysis: azure requires base_url and deployment")
		}
		client := openai.NewClient(cfg.APIKey,
			openai.WithHTTPClient(httpClient),
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithAzureDeployment(cfg.Deployment, cfg.APIVersion),
		)
		return NewOpenAIAnalyzer(client, cfg.Model, cfg.MaxOutputTokens, logger), nil

	case ProviderAnthropic:
		client, err := anthropic.New(anthropic.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		return NewAnthropicAnalyzer(client, cfg.Model, cfg.MaxOutputTokens, logger), nil

	default:
		return nil, fmt.Errorf("analysis: unknown provider %q", cfg.Provider)
	}
}
