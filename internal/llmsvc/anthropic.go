package llmsvc

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker/v2"

	apperrors "github.com/jordigilh/glance/internal/errors"
)

// AnthropicGateway adapts anthropic-sdk-go's native client to the
// Gateway interface, wrapped in a circuit breaker so a flaky provider
// degrades to classified errors instead of hanging the single-flight
// Orchestrator slot.
type AnthropicGateway struct {
	client  anthropic.Client
	model   anthropic.Model
	breaker *gobreaker.CircuitBreaker[string]
}

func NewAnthropicGateway(apiKey, model string) *AnthropicGateway {
	return &AnthropicGateway{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "anthropic",
			MaxRequests: 1,
			Timeout:     providerCooldown,
		}),
	}
}

func (g *AnthropicGateway) Complete(ctx context.Context, messages []Message) (string, error) {
	return g.breaker.Execute(func() (string, error) {
		system, params := toAnthropicParams(g.model, messages)
		msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     g.model,
			MaxTokens: maxCompletionTokens,
			System:    system,
			Messages:  params,
		})
		if err != nil {
			return "", apperrors.LLMError("complete", err)
		}
		var out string
		for _, block := range msg.Content {
			if text := block.Text; text != "" {
				out += text
			}
		}
		return out, nil
	})
}

func (g *AnthropicGateway) CompleteStream(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		_, err := g.breaker.Execute(func() (string, error) {
			system, params := toAnthropicParams(g.model, messages)
			stream := g.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
				Model:     g.model,
				MaxTokens: maxCompletionTokens,
				System:    system,
				Messages:  params,
			})
			for stream.Next() {
				event := stream.Current()
				if delta := event.Delta.Text; delta != "" {
					select {
					case chunks <- delta:
					case <-ctx.Done():
						return "", ctx.Err()
					}
				}
			}
			if err := stream.Err(); err != nil {
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

func toAnthropicParams(model anthropic.Model, messages []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	var params []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case RoleUser, RoleTool:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, params
}
