package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/domain/entity"
)

// NotificationKind identifies one templated notification.
type NotificationKind string

const (
	NotifyNewRequestToSecretary NotificationKind = "new-request-to-secretary"
	NotifyNewRequestToTreasurer NotificationKind = "new-request-to-treasurer"
	NotifyApprovedToRequester   NotificationKind = "secretary-approved-to-requester"
	NotifyApprovedToTreasurer   NotificationKind = "secretary-approved-to-treasurer"
	NotifyRejectedToRequester   NotificationKind = "secretary-rejected-to-requester"
	NotifyInProgressToRequester NotificationKind = "treasurer-in-progress-to-requester"
	NotifyProcessedToRequester  NotificationKind = "treasurer-processed-to-requester"
	NotifyQuestionToRequester   NotificationKind = "question-to-requester"
	NotifyReplyToSecretary      NotificationKind = "reply-to-secretary"
)

// Notification is one message about a ticket.
type Notification struct {
	Kind   NotificationKind
	Ticket *entity.Ticket
	// Text carries the free text of questions and replies.
	Text string
	// Recipient overrides the role-derived recipient when set.
	Recipient string
}

// Roles identifies the privileged actors.
type Roles struct {
	Secretary string
	Treasurer string
}

// NotificationService renders and delivers lifecycle notifications.
// Delivery is best-effort: a failure is logged and reported as false.
type NotificationService interface {
	Notify(ctx context.Context, n Notification) bool

	// Send is Notify with the failure kept. Transport failures wrap
	// ErrTransport, and port.ErrUnrecoverableTransport when retrying is
	// pointless.
	Send(ctx context.Context, n Notification) error
}

type notificationServiceImpl struct {
	sender      port.MessageSender
	roles       Roles
	sendTimeout time.Duration
	logger      Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(sender port.MessageSender, roles Roles, sendTimeout time.Duration, logger Logger) NotificationService {
	return &notificationServiceImpl{
		sender:      sender,
		roles:       roles,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

func (s *notificationServiceImpl) Notify(ctx context.Context, n Notification) bool {
	return s.Send(ctx, n) == nil
}

func (s *notificationServiceImpl) Send(ctx context.Context, n Notification) error {
	if n.Ticket == nil {
		s.logger.Error("Notification without ticket", "kind", n.Kind)
		return fmt.Errorf("%w: notification %s has no ticket", ErrValidation, n.Kind)
	}

	recipient := n.Recipient
	if recipient == "" {
		recipient = s.recipientFor(n)
	}
	if recipient == "" {
		s.logger.Error("No recipient for notification", "kind", n.Kind, "ticket_number", n.Ticket.TicketNumber)
		return fmt.Errorf("%w: no recipient for %s", ErrValidation, n.Kind)
	}

	text, err := renderNotification(n)
	if err != nil {
		s.logger.Error("Failed to render notification", "kind", n.Kind, "error", err)
		return err
	}

	sendCtx := ctx
	if s.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.sendTimeout)
		defer cancel()
	}

	if err := s.sender.SendMessage(sendCtx, recipient, text); err != nil {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		s.logger.Error("Failed to send notification",
			"kind", n.Kind,
			"ticket_number", n.Ticket.TicketNumber,
			"recipient", recipient,
			"unrecoverable", errors.Is(err, port.ErrUnrecoverableTransport),
			"error", err,
		)
		return err
	}

	s.logger.Info("Notification sent",
		"kind", n.Kind,
		"ticket_number", n.Ticket.TicketNumber,
		"recipient", recipient,
	)
	return nil
}

func (s *notificationServiceImpl) recipientFor(n Notification) string {
	switch n.Kind {
	case NotifyNewRequestToSecretary, NotifyReplyToSecretary:
		return s.roles.Secretary
	case NotifyNewRequestToTreasurer, NotifyApprovedToTreasurer:
		return s.roles.Treasurer
	default:
		return n.Ticket.SenderNumber
	}
}
