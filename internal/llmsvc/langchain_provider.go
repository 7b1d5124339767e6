package llmsvc

import (
	"context"

	"github.com/sony/gobreaker/v2"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	apperrors "github.com/jordigilh/glance/internal/errors"
)

// LangchainGateway adapts a langchaingo llms.Model (OpenAI or Ollama)
// to the Gateway interface, behind the same per-provider circuit
// breaker discipline as the Anthropic adapter.
type LangchainGateway struct {
	model   llms.Model
	breaker *gobreaker.CircuitBreaker[string]
}

func NewOpenAIGateway(apiKey, model string) (*LangchainGateway, error) {
	m, err := openai.New(openai.WithToken(apiKey), openai.WithModel(model))
	if err != nil {
		return nil, apperrors.LLMError("init openai provider", err)
	}
	return newLangchainGateway("openai", m), nil
}

func NewOllamaGateway(baseURL, model string) (*LangchainGateway, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, ollama.WithServerURL(baseURL))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, apperrors.LLMError("init ollama provider", err)
	}
	return newLangchainGateway("ollama", m), nil
}

func newLangchainGateway(name string, m llms.Model) *LangchainGateway {
	return &LangchainGateway{
		model: m,
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     providerCooldown,
		}),
	}
}

func toLangchainMessages(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		var role llms.ChatMessageType
		switch m.Role {
		case RoleSystem:
			role = llms.ChatMessageTypeSystem
		case RoleAssistant:
			role = llms.ChatMessageTypeAI
		case RoleTool:
			role = llms.ChatMessageTypeHuman
		default:
			role = llms.ChatMessageTypeHuman
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

func (g *LangchainGateway) Complete(ctx context.Context, messages []Message) (string, error) {
	return g.breaker.Execute(func() (string, error) {
		resp, err := g.model.GenerateContent(ctx, toLangchainMessages(messages))
		if err != nil {
			return "", apperrors.LLMError("complete", err)
		}
		if len(resp.Choices) == 0 {
			return "", apperrors.New(apperrors.KindLLM, "complete").WithDetails("provider returned no choices")
		}
		return resp.Choices[0].Content, nil
	})
}

func (g *LangchainGateway) CompleteStream(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		_, err := g.breaker.Execute(func() (string, error) {
			_, err := g.model.GenerateContent(ctx, toLangchainMessages(messages), llms.WithStreamingFunc(
				func(ctx context.Context, chunk []byte) error {
					select {
					case chunks <- string(chunk):
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				}))
			if err != nil {
				return "", apperrors.LLMError("complete_stream", err)
			}
			return "", nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}
