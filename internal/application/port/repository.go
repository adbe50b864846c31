package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/procurement-bot/internal/domain/entity"
)

// ErrConflict is returned by TicketStore.Update when the stored ticket no
// longer carries the expected lastUpdated value.
var ErrConflict = errors.New("ticket modified concurrently")

// ErrDuplicateTicket is returned by TicketStore.Create for a reused number.
var ErrDuplicateTicket = errors.New("ticket number already exists")

// TicketStore is the record store holding the ticket table.
type TicketStore interface {
	// Create appends a new ticket row.
	Create(ctx context.Context, ticket *entity.Ticket) error

	// Get looks a ticket up case-insensitively. It returns nil, nil when
	// the number is unknown.
	Get(ctx context.Context, ticketNumber string) (*entity.Ticket, error)

	// Update writes the mutable fields of ticket (status, decisions,
	// reasons, lastUpdated, flags) only if the stored lastUpdated still
	// equals expectedLastUpdated. Otherwise it returns ErrConflict.
	Update(ctx context.Context, ticket *entity.Ticket, expectedLastUpdated time.Time) error

	// List returns every ticket in the table.
	List(ctx context.Context) ([]*entity.Ticket, error)

	// MarkNotified sets an idempotency flag. It does not touch lastUpdated.
	MarkNotified(ctx context.Context, ticketNumber string, flag entity.NotifyFlag) error
}

// TicketIDGenerator issues unique, short, human-typable ticket numbers.
type TicketIDGenerator interface {
	Next(ctx context.Context) (string, error)
}

// SessionStore keeps per-actor conversation state.
type SessionStore interface {
	// Get returns nil, nil when the actor has no session.
	Get(ctx context.Context, actorID string) (*entity.Session, error)
	Save(ctx context.Context, session *entity.Session) error
	Delete(ctx context.Context, actorID string) error
}

// CheckpointRepository persists the poller watermark.
type CheckpointRepository interface {
	// Get returns found=false when no checkpoint has been saved yet.
	Get(ctx context.Context, name string) (checkpoint time.Time, found bool, err error)
	Save(ctx context.Context, name string, checkpoint time.Time) error
}

// HistoryRepository stores the ticket audit trail.
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.TicketHistory) error
	ListByTicket(ctx context.Context, ticketNumber string) ([]*entity.TicketHistory, error)
}
