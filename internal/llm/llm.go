package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FallbackReply is spoken when the model call fails.
const FallbackReply = "I'm having trouble thinking right now."

// EmptyReply is spoken when the model answers with nothing.
const EmptyReply = "(no response)"

type Message struct {
	Role    Role
	Content string
}

type Responder interface {
	Reply(ctx context.Context, messages []Message) (string, error)
}
