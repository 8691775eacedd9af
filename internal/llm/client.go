// Package llm sends a finished prompt to a hosted language model and returns
// the raw text it produced.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/dmitrijs2005/estatematch/internal/logging"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DefaultGeminiModel = "gemini-1.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"

	// logLimit bounds prompt and response text in debug logs.
	logLimit = 500
)

// Client performs one model call per prompt.
type Client interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Options selects and authenticates the provider.
type Options struct {
	Provider string
	Model    string
	APIKey   string
}

// New builds the Client for o.Provider.
func New(ctx context.Context, o Options, log logging.Logger) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(o.Provider)) {
	case "", ProviderGemini:
		return NewGemini(ctx, o.APIKey, o.Model, log)
	case ProviderOpenAI:
		return NewOpenAI(o.APIKey, o.Model, log)
	default:
		return nil, fmt.Errorf("unknown model provider %q", o.Provider)
	}
}

func upstream(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", common.ErrUpstream, provider, err)
}

func logExchange(ctx context.Context, log logging.Logger, provider, model, prompt, response string) {
	log.Debug(ctx, "model call",
		"provider", provider,
		"model", model,
		"prompt", common.TruncateForLog(prompt, logLimit),
		"response", common.TruncateForLog(response, logLimit),
	)
}
