// Package transport abstracts the chat surface the bot lives on. The bot
// core only ever sees Events and the Transport interface; adapters for a
// concrete platform live outside this module.
package transport

import (
	"context"
	"time"
)

// Event is one inbound message from the chat surface.
type Event struct {
	MessageID string    `json:"message_id"`
	ChatID    string    `json:"chat_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Text      string    `json:"text"`
	Images    []string  `json:"images,omitempty"`
	Videos    []string  `json:"videos,omitempty"`
	QuotedID  string    `json:"quoted_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Transport sends the bot's output back to the surface an Event came from.
type Transport interface {
	// Reply sends text into the event's chat and returns the new message ID.
	Reply(ctx context.Context, ev Event, text string) (string, error)
	// ReplyImage sends a single image by URL or data URI.
	ReplyImage(ctx context.Context, ev Event, url string) error
	// UploadFile delivers a named file into the event's chat.
	UploadFile(ctx context.Context, ev Event, name string, data []byte) error
	// FetchMessage resolves a message ID (for quote expansion). ok=false
	// means the message is gone or unknown, which is not an error.
	FetchMessage(ctx context.Context, chatID, messageID string) (Event, bool, error)
}
