package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/estatematch/internal/logging"
	"google.golang.org/genai"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini calls the Gemini API.
type Gemini struct {
	models contentGenerator
	model  string
	log    logging.Logger
}

// NewGemini creates a Gemini client. An empty model selects DefaultGeminiModel.
func NewGemini(ctx context.Context, apiKey, model string, log logging.Logger) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGemini(client.Models, model, log), nil
}

func newGemini(models contentGenerator, model string, log logging.Logger) *Gemini {
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{models: models, model: model, log: log}
}

func (g *Gemini) Invoke(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", upstream(ProviderGemini, err)
	}

	var b strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil || strings.TrimSpace(part.Text) == "" {
					continue
				}
				if b.Len() > 0 {
					b.WriteString("\n")
				}
				b.WriteString(part.Text)
			}
		}
	}

	out := strings.TrimSpace(b.String())
	logExchange(ctx, g.log, ProviderGemini, g.model, prompt, out)
	if out == "" {
		return "", upstream(ProviderGemini, errors.New("empty response"))
	}
	return out, nil
}
