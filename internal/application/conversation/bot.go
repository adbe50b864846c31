package conversation

import (
	"context"
	"errors"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/application/service"
)

// Bot connects the manager to a chat transport: inbound text goes in,
// replies go out through the sender.
type Bot struct {
	manager *Manager
	sender  port.MessageSender
	logger  service.Logger
}

// NewBot creates a Bot.
func NewBot(manager *Manager, sender port.MessageSender, logger service.Logger) *Bot {
	return &Bot{
		manager: manager,
		sender:  sender,
		logger:  logger,
	}
}

// OnInboundMessage handles one inbound message and sends the replies. The
// actor's next message waits until these replies are sent. Send failures
// are logged; an unrecoverable transport error is returned.
func (b *Bot) OnInboundMessage(ctx context.Context, actorID, text string) error {
	unlock := b.manager.lockActor(actorID)
	defer unlock()

	replies, err := b.manager.handle(ctx, actorID, text)
	if errors.Is(err, port.ErrUnrecoverableTransport) {
		return err
	}

	for _, msg := range replies {
		err := b.sender.SendMessage(ctx, msg.Recipient, msg.Text)
		if err == nil {
			continue
		}
		b.logger.Error("Failed to send reply", "recipient", msg.Recipient, "error", err)
		if errors.Is(err, port.ErrUnrecoverableTransport) {
			return err
		}
	}
	return nil
}

// Handler adapts the bot to a transport's inbound callback.
func (b *Bot) Handler() port.InboundHandler {
	return func(ctx context.Context, senderID, text string) {
		if err := b.OnInboundMessage(ctx, senderID, text); err != nil {
			b.logger.Error("Inbound message aborted", "sender", senderID, "error", err)
		}
	}
}
