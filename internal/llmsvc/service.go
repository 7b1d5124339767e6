package llmsvc

import (
	"context"
	"fmt"
	"strings"
	"time"

	tiktoken "github.com/pkoukk/tiktoken-go"

	apperrors "github.com/jordigilh/glance/internal/errors"
	"github.com/jordigilh/glance/internal/dbgateway"
	"github.com/jordigilh/glance/internal/statestore"
)

const (
	providerCooldown   = 30 * time.Second
	maxCompletionTokens = int64(4096)

	// defaultContextWindow is used when a model's exact window is
	// unknown; conservative enough to trigger trimming well before a
	// provider would reject the request outright.
	defaultContextWindow = 8192
)

// systemPromptTemplate is the frozen template the Service fills in
// with the live schema and a redacted connection context. It never
// includes host, user, or secret material.
const systemPromptTemplate = `You are Glance, a terminal assistant that turns natural-language questions into PostgreSQL queries.

Connection: %s (database: %s)

Schema:
%s

Respond with a short explanation followed by a single fenced ` + "```sql```" + ` block containing the query. Never invent columns or tables that are not listed above.`

// Service is the C3 orchestration layer above a Gateway: it builds
// prompts, trims them to the model's token budget, dispatches
// read-only tool calls, audits outbound payloads for secret leakage,
// and parses the provider's response into SQL plus chat prose.
type Service struct {
	gateway Gateway
	store   *statestore.Store
	encoder *tiktoken.Tiktoken
	cache   *Cache
}

func NewService(gateway Gateway, store *statestore.Store, cache *Cache) *Service {
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &Service{gateway: gateway, store: store, encoder: enc, cache: cache}
}

// Turn is one round of user input producing either SQL, chat prose, or
// both.
type Turn struct {
	SQL        string
	Prose      string
	ToolCalled bool
}

// Ask assembles the full prompt (system + schema + redacted connection
// context + history + new message), runs the redaction audit, invokes
// the gateway (dispatching any tool calls along the way), and parses
// the result.
func (s *Service) Ask(ctx context.Context, profileLabel, database string, schema *dbgateway.Schema, history []Message, userMessage string) (*Turn, error) {
	system := fmt.Sprintf(systemPromptTemplate, profileLabel, database, schema.Render())

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: system})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: userMessage})

	messages = s.trimToBudget(messages)

	if err := auditOutbound(messages, s.secretValues(ctx), s.hostUserStrings(ctx)); err != nil {
		return nil, err
	}

	raw, err := s.completeWithTools(ctx, messages)
	if err != nil {
		return nil, err
	}

	sql, prose := ParseResponse(raw)
	return &Turn{SQL: sql, Prose: prose}, nil
}

// completeWithTools invokes the gateway, and when the response
// contains a recognized tool-call directive, dispatches it read-only
// against the State Store, appends the JSON result, and re-invokes the
// gateway once.
func (s *Service) completeWithTools(ctx context.Context, messages []Message) (string, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, messages); ok {
			return cached, nil
		}
	}

	reply, err := s.gateway.Complete(ctx, messages)
	if err != nil {
		return "", err
	}

	if call, ok := parseToolCall(reply); ok {
		result, err := dispatchTool(ctx, s.store, call)
		if err != nil {
			return "", err
		}
		messages = append(messages,
			Message{Role: RoleAssistant, Content: reply},
			Message{Role: RoleTool, Content: result},
		)
		reply, err = s.gateway.Complete(ctx, messages)
		if err != nil {
			return "", err
		}
	}

	if s.cache != nil {
		s.cache.Put(ctx, messages, reply)
	}
	return reply, nil
}

// trimToBudget drops the oldest conversation turns (never the system
// prompt at index 0 nor the final user message) until the estimated
// token count fits defaultContextWindow.
func (s *Service) trimToBudget(messages []Message) []Message {
	if s.encoder == nil || len(messages) <= 2 {
		return messages
	}
	for s.estimateTokens(messages) > defaultContextWindow && len(messages) > 2 {
		messages = append(messages[:1], messages[2:]...)
	}
	return messages
}

func (s *Service) estimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(s.encoder.Encode(m.Content, nil, nil))
	}
	return total
}

func (s *Service) secretValues(ctx context.Context) []string {
	var values []string
	settings, err := s.store.Settings.Get(ctx)
	if err == nil && settings != nil && settings.SecretRef != "" {
		if v, err := s.store.Secrets.Resolve(ctx, settings.SecretRef); err == nil {
			values = append(values, v)
		}
	}
	return values
}

func (s *Service) hostUserStrings(ctx context.Context) []string {
	profiles, err := s.store.Connections.List(ctx)
	if err != nil {
		return nil
	}
	var out []string
	for _, p := range profiles {
		if p.Host != "" {
			out = append(out, p.Host)
		}
		if p.User != "" {
			out = append(out, p.User)
		}
	}
	return out
}

var errRedactionViolation = apperrors.New(apperrors.KindLLM, "redaction audit").WithDetails("outbound payload contains a secret or connection identifier")

func auditOutbound(messages []Message, secrets, identifiers []string) error {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Content)
		sb.WriteByte('\n')
	}
	payload := sb.String()
	for _, s := range secrets {
		if s != "" && strings.Contains(payload, s) {
			return errRedactionViolation
		}
	}
	for _, id := range identifiers {
		if id != "" && strings.Contains(payload, id) {
			return errRedactionViolation
		}
	}
	return nil
}
