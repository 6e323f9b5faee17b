package llm

import (
	"context"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part is one piece of a message: either text or an image reference.
// Exactly one of Text/ImageURL is set.
type Part struct {
	Text     string
	ImageURL string
}

func TextPart(text string) Part { return Part{Text: text} }
func ImagePart(url string) Part { return Part{ImageURL: url} }
func (p Part) IsImage() bool    { return p.ImageURL != "" }

type Message struct {
	Role  string
	Parts []Part
}

func TextMessage(role, content string) Message {
	return Message{Role: role, Parts: []Part{TextPart(content)}}
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

type Request struct {
	Model    string
	Messages []Message
}

// Client is a chat-completion provider. Implementations must honor ctx
// cancellation; the dispatcher bounds every Chat call with a deadline.
type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
	ListModels(ctx context.Context) ([]string, error)
}
