// Package memory holds in-process implementations of the persistence ports.
// They back the unit tests and single-process deployments without redis.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/domain/entity"
	"github.com/garyjia/procurement-bot/pkg/utils"
)

// TicketStore keeps tickets in a map keyed by normalized ticket number.
type TicketStore struct {
	mu      sync.Mutex
	tickets map[string]*entity.Ticket
	order   []string

	// Fault injection for tests. A non-nil error is returned by the next
	// matching call and then cleared.
	GetErr    error
	ListErr   error
	UpdateErr error

	// Writes counts successful Create and Update calls.
	Writes int
}

var _ port.TicketStore = (*TicketStore)(nil)

// NewTicketStore returns an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: make(map[string]*entity.Ticket)}
}

func (s *TicketStore) Create(ctx context.Context, ticket *entity.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entity.NormalizeTicketNumber(ticket.TicketNumber)
	if _, exists := s.tickets[key]; exists {
		return fmt.Errorf("%w: %s", port.ErrDuplicateTicket, ticket.TicketNumber)
	}

	s.tickets[key] = ticket.Clone()
	s.order = append(s.order, key)
	s.Writes++
	return nil
}

func (s *TicketStore) Get(ctx context.Context, ticketNumber string) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.GetErr; err != nil {
		s.GetErr = nil
		return nil, err
	}

	t, ok := s.tickets[entity.NormalizeTicketNumber(ticketNumber)]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

func (s *TicketStore) Update(ctx context.Context, ticket *entity.Ticket, expectedLastUpdated time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.UpdateErr; err != nil {
		s.UpdateErr = nil
		return err
	}

	key := entity.NormalizeTicketNumber(ticket.TicketNumber)
	stored, ok := s.tickets[key]
	if !ok {
		return fmt.Errorf("ticket %s does not exist", ticket.TicketNumber)
	}
	if !utils.TruncateMillis(stored.LastUpdated).Equal(utils.TruncateMillis(expectedLastUpdated)) {
		return port.ErrConflict
	}

	next := stored.Clone()
	next.Status = ticket.Status
	next.ApprovalSekdep = ticket.ApprovalSekdep
	next.ReasonSekdep = ticket.ReasonSekdep
	next.StatusBendahara = ticket.StatusBendahara
	next.ReasonBendahara = ticket.ReasonBendahara
	next.LastUpdated = ticket.LastUpdated
	next.Notified = ticket.Clone().Notified
	s.tickets[key] = next
	s.Writes++
	return nil
}

func (s *TicketStore) List(ctx context.Context) ([]*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ListErr; err != nil {
		s.ListErr = nil
		return nil, err
	}

	out := make([]*entity.Ticket, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.tickets[key].Clone())
	}
	return out, nil
}

func (s *TicketStore) MarkNotified(ctx context.Context, ticketNumber string, flag entity.NotifyFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[entity.NormalizeTicketNumber(ticketNumber)]
	if !ok {
		return fmt.Errorf("ticket %s does not exist", ticketNumber)
	}
	t.SetFlag(flag, true)
	return nil
}

// Put stores ticket as-is, bypassing lifecycle rules. Tests use it to
// simulate rows edited directly in the sheet.
func (s *TicketStore) Put(ticket *entity.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entity.NormalizeTicketNumber(ticket.TicketNumber)
	if _, exists := s.tickets[key]; !exists {
		s.order = append(s.order, key)
	}
	s.tickets[key] = ticket.Clone()
}

// Numbers returns the stored ticket numbers in insertion order.
func (s *TicketStore) Numbers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.order...)
}
