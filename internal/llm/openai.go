package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/estatematch/internal/logging"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI calls the chat completions API.
type OpenAI struct {
	completions chatCompleter
	model       string
	log         logging.Logger
}

// NewOpenAI creates an OpenAI client. An empty model selects DefaultOpenAIModel.
func NewOpenAI(apiKey, model string, log logging.Logger) (*OpenAI, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return newOpenAI(&client.Chat.Completions, model, log), nil
}

func newOpenAI(c chatCompleter, model string, log logging.Logger) *OpenAI {
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{completions: c, model: model, log: log}
}

func (o *OpenAI) Invoke(ctx context.Context, prompt string) (string, error) {
	resp, err := o.completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(o.model),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", upstream(ProviderOpenAI, err)
	}

	var out string
	if resp != nil && len(resp.Choices) > 0 {
		out = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	logExchange(ctx, o.log, ProviderOpenAI, o.model, prompt, out)
	if out == "" {
		return "", upstream(ProviderOpenAI, errors.New("empty response"))
	}
	return out, nil
}
