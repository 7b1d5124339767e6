// Package llmsvc implements the LLM Gateway & Service: a
// provider-agnostic capability for turning a conversation into a
// completion, plus the prompt-assembly, parsing, tool-dispatch, and
// redaction-audit logic layered above it.
package llmsvc

import "context"

// Role distinguishes the parts of a conversation passed to a provider.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of the conversation sent to a provider.
type Message struct {
	Role    Role
	Content string
}

// Gateway is the provider-agnostic capability the Service is built on.
// Two concrete adapters satisfy it: the Anthropic-native client and a
// langchaingo llms.Model wrapper shared by OpenAI and Ollama.
type Gateway interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	CompleteStream(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}
