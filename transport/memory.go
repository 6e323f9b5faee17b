package transport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sent records one outbound delivery made through a Memory transport.
type Sent struct {
	ChatID   string
	Text     string
	ImageURL string
	FileName string
	FileData []byte
}

// Memory is an in-process Transport. The console runner uses it as its chat
// surface and tests use it to observe the bot's output.
type Memory struct {
	mu       sync.Mutex
	messages map[string]Event
	sent     []Sent
}

func NewMemory() *Memory {
	return &Memory{messages: make(map[string]Event)}
}

// Inject registers an inbound event, assigning it a message ID when it has
// none, so it can later be resolved as a quote target.
func (m *Memory) Inject(ev Event) Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.MessageID == "" {
		ev.MessageID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	m.messages[ev.MessageID] = ev
	return ev
}

func (m *Memory) Reply(_ context.Context, ev Event, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.sent = append(m.sent, Sent{ChatID: ev.ChatID, Text: text})
	m.messages[id] = Event{
		MessageID: id,
		ChatID:    ev.ChatID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	return id, nil
}

func (m *Memory) ReplyImage(_ context.Context, ev Event, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, Sent{ChatID: ev.ChatID, ImageURL: url})
	return nil
}

func (m *Memory) UploadFile(_ context.Context, ev Event, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := make([]byte, len(data))
	copy(d, data)
	m.sent = append(m.sent, Sent{ChatID: ev.ChatID, FileName: name, FileData: d})
	return nil
}

func (m *Memory) FetchMessage(_ context.Context, _ string, messageID string) (Event, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.messages[messageID]
	return ev, ok, nil
}

// Outbox returns everything sent so far, oldest first.
func (m *Memory) Outbox() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Sent, len(m.sent))
	copy(out, m.sent)
	return out
}

// LastText returns the text of the most recent Reply, or "".
func (m *Memory) LastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Text != "" {
			return m.sent[i].Text
		}
	}
	return ""
}

var _ Transport = (*Memory)(nil)
