package service

import (
	"context"
	"fmt"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/domain/entity"
	"github.com/garyjia/procurement-bot/internal/domain/event"
)

// HistoryService keeps the ticket audit trail. Record is meant to be
// subscribed to the event dispatcher.
type HistoryService struct {
	repo   port.HistoryRepository
	logger Logger
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(repo port.HistoryRepository, logger Logger) *HistoryService {
	return &HistoryService{repo: repo, logger: logger}
}

// Record stores one ticket event.
func (s *HistoryService) Record(ctx context.Context, evt *event.Event) error {
	reason := evt.GetPayloadString(event.KeyReason)
	if evt.Type == event.TypeNotificationFailed {
		reason = evt.GetPayloadString(event.KeyNotification)
	}

	h := &entity.TicketHistory{
		EventID:        evt.ID,
		TicketNumber:   evt.TicketNumber,
		Actor:          evt.GetPayloadString(event.KeyActor),
		Action:         evt.Type.String(),
		PreviousStatus: evt.GetPayloadString(event.KeyPreviousStatus),
		NewStatus:      evt.GetPayloadString(event.KeyNewStatus),
		Reason:         reason,
		Timestamp:      evt.Timestamp,
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return fmt.Errorf("record %s for %s: %w", evt.Type, evt.TicketNumber, err)
	}
	return nil
}

// List returns the audit trail of a ticket, oldest first.
func (s *HistoryService) List(ctx context.Context, ticketNumber string) ([]*entity.TicketHistory, error) {
	records, err := s.repo.ListByTicket(ctx, entity.NormalizeTicketNumber(ticketNumber))
	if err != nil {
		s.logger.Error("Failed to list ticket history", "ticket_number", ticketNumber, "error", err)
		return nil, fmt.Errorf("%w: list history: %w", ErrStore, err)
	}
	return records, nil
}
