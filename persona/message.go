package persona

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one history entry. Immutable once appended except through
// Registry.EditAt.
type Message struct {
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Images    []string `json:"images,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

func NewMessage(role, content string, images []string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Images:    images,
		Timestamp: time.Now().Unix(),
	}
}
