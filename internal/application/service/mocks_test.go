package service

import (
	"context"
	"sync"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type sentMessage struct {
	Recipient string
	Text      string
}

type mockMessageSender struct {
	mu              sync.Mutex
	sent            []sentMessage
	sendMessageFunc func(ctx context.Context, recipient, text string) error
}

func (m *mockMessageSender) SendMessage(ctx context.Context, recipient string, text string) error {
	if m.sendMessageFunc != nil {
		if err := m.sendMessageFunc(ctx, recipient, text); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{Recipient: recipient, Text: text})
	return nil
}

func (m *mockMessageSender) Sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

func (m *mockMessageSender) SentTo(recipient string) []sentMessage {
	var out []sentMessage
	for _, s := range m.Sent() {
		if s.Recipient == recipient {
			out = append(out, s)
		}
	}
	return out
}

type mockIDGenerator struct {
	nextFunc func(ctx context.Context) (string, error)
}

func (m *mockIDGenerator) Next(ctx context.Context) (string, error) {
	return m.nextFunc(ctx)
}
