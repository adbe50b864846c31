package port

import (
	"context"
	"errors"
)

// ErrUnrecoverableTransport marks a send failure that retrying cannot fix,
// e.g. a logged-out device. Other send errors are ordinary delivery failures.
var ErrUnrecoverableTransport = errors.New("transport unavailable")

// MessageSender delivers a text message to one chat recipient.
type MessageSender interface {
	SendMessage(ctx context.Context, recipientID string, text string) error
}

// InboundHandler receives a text message from the chat network.
type InboundHandler func(ctx context.Context, senderID string, text string)

// EventPublisher writes serialized ticket events to an external stream.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
	Close() error
}
