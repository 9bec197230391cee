package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Supported providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGroq      = "groq"
	ProviderGemini    = "gemini"
)

// Config selects a provider and the middleware settings around it.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	RPS         float64
	Burst       int
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-haiku-4-5-20251001"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGemini:
		return "gemini-2.5-flash"
	default:
		return "llama-3.3-70b-versatile"
	}
}

// APIKeyEnv returns the conventional environment variable for a provider's key.
func APIKeyEnv(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

// NewProvider creates the bare provider client for cfg.
func NewProvider(ctx context.Context, cfg Config) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderGroq
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel(provider)
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(APIKeyEnv(provider))
	}

	switch provider {
	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("%s not set (set env var or llm.api_key in config)", APIKeyEnv(provider))
		}
		return NewAnthropicClient(apiKey, model), nil
	case ProviderOpenAI, ProviderGroq:
		if apiKey == "" {
			return nil, fmt.Errorf("%s not set (set env var or llm.api_key in config)", APIKeyEnv(provider))
		}
		baseURL := cfg.BaseURL
		if baseURL == "" && provider == ProviderGroq {
			baseURL = GroqBaseURL
		}
		return NewOpenAIClient(provider, apiKey, model, baseURL), nil
	case ProviderGemini:
		if apiKey == "" {
			return nil, fmt.Errorf("%s not set (set env var or llm.api_key in config)", APIKeyEnv(provider))
		}
		return NewGeminiClient(ctx, apiKey, model)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s (use: anthropic, openai, groq, gemini)", cfg.Provider)
	}
}

// New creates the provider for cfg wrapped in the standard middleware chain:
// logging and metrics outermost, then retry, with rate limiting and the
// per-call timeout applied to every attempt.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Client, error) {
	base, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Decorate(base, cfg, logger), nil
}

// Decorate applies the standard middleware chain to an existing client.
func Decorate(base Client, cfg Config, logger *slog.Logger) Client {
	return Wrap(base,
		Logging(logger),
		Metrics(),
		Retry(cfg.MaxAttempts, cfg.BaseDelay),
		RateLimit(cfg.RPS, cfg.Burst),
		Timeout(cfg.Timeout),
	)
}
