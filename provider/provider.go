package provider

import (
	"context"
	"errors"
)

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a role-tagged message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrRateLimited is returned when the provider rejects a request because
// of rate limiting or an exhausted quota. Callers surface it as a
// retry-later condition instead of a generic failure.
var ErrRateLimited = errors.New("provider quota exceeded")

// Client is the interface all LLM provider implementations must satisfy.
type Client interface {
	// ChatCompletion sends an ordered list of messages and returns the
	// generated answer text.
	ChatCompletion(ctx context.Context, messages []Message) (string, error)
	// CreateEmbedding converts texts into fixed-length vectors.
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}
