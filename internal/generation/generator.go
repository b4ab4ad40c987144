// Package generation wraps chat-completion backends behind a single call:
// system instruction, prior turns, retrieved context and the new user
// message in, the full completion out.
package generation

import (
	"context"
	"errors"
)

var (
	// ErrGenerationFailed covers backend errors, timeouts and empty or
	// malformed completions.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Role tags a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single generation call.
type Request struct {
	// SystemInstruction frames every answer.
	SystemInstruction string

	// History holds prior turns, oldest first, excluding UserMessage.
	History []Turn

	// Context holds retrieved passages. Empty means ungrounded.
	Context []string

	// UserMessage is the message to answer.
	UserMessage string
}

// Generator produces one completion per request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
