package consumer

import (
	"sync"

	"pointstream/api"

	"github.com/apex/log"
)

const panelTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// LogPanel is an apex/log handler keeping the messages of the current
// request for display.
type LogPanel struct {
	mu       sync.Mutex
	messages []api.Message
}

func NewLogPanel() *LogPanel {
	return &LogPanel{}
}

// HandleLog implements log.Handler.
func (p *LogPanel) HandleLog(e *log.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, api.Message{
		Time:  e.Timestamp.Format(panelTimeFormat),
		Level: e.Level.String(),
		Text:  e.Message,
	})
	return nil
}

func (p *LogPanel) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = nil
}

func (p *LogPanel) Messages() []api.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]api.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Texts returns only the message texts, oldest first.
func (p *LogPanel) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.messages))
	for i, m := range p.messages {
		out[i] = m.Text
	}
	return out
}
