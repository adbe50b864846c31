package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/procurement-bot/internal/application/dispatcher"
	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/domain/entity"
	"github.com/garyjia/procurement-bot/internal/domain/event"
	"github.com/garyjia/procurement-bot/internal/domain/workflow"
	"github.com/garyjia/procurement-bot/pkg/utils"
)

// Logger is the logging dependency of the application services.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ReconcileOutcome reports what Reconcile did for one ticket.
type ReconcileOutcome int

const (
	// OutcomeNothingOwed means the ticket's current notification was already sent.
	OutcomeNothingOwed ReconcileOutcome = iota
	// OutcomeDelivered means at least one owed notification went out.
	OutcomeDelivered
	// OutcomeUndelivered means notifications were owed and none was delivered.
	OutcomeUndelivered
)

// LifecycleService applies ticket transitions and sends the notifications
// each transition owes.
type LifecycleService interface {
	// Create validates a form, issues a ticket number and stores the ticket.
	Create(ctx context.Context, senderNumber string, form entity.RequestForm) (*entity.Ticket, error)

	// Get returns ErrNotFound for unknown numbers.
	Get(ctx context.Context, ticketNumber string) (*entity.Ticket, error)

	// Check reports whether trigger is currently permitted without mutating.
	Check(ctx context.Context, ticketNumber string, trigger workflow.Trigger) (*entity.Ticket, error)

	Approve(ctx context.Context, ticketNumber, actor, note string) (*entity.Ticket, error)
	Reject(ctx context.Context, ticketNumber, actor, reason string) (*entity.Ticket, error)
	SetTreasurerStatus(ctx context.Context, ticketNumber, actor string, status entity.TreasurerStatus, reason string) (*entity.Ticket, error)

	// AskRequester forwards a secretary question. The ticket is not mutated.
	AskRequester(ctx context.Context, ticketNumber, actor, question string) (*entity.Ticket, bool, error)

	// ReplyToSecretary forwards a requester's answer to the asking secretary.
	ReplyToSecretary(ctx context.Context, ticketNumber, requester, secretary, reply string) (*entity.Ticket, bool, error)

	// Reconcile sends whatever notification the ticket's current state
	// still owes. Used by the change-detection poller.
	//
	// Every mutating call, Create included, stores its change before
	// notifying. If the transport fails with port.ErrUnrecoverableTransport
	// the remaining notifications are skipped and that error is returned;
	// the change stays stored and the poller delivers once sending works.
	Reconcile(ctx context.Context, ticketNumber string) (ReconcileOutcome, error)
}

// LifecycleOption configures the lifecycle service
type LifecycleOption func(*lifecycleServiceImpl)

// WithClock replaces the wall clock used to stamp lastUpdated.
func WithClock(clock utils.Clock) LifecycleOption {
	return func(s *lifecycleServiceImpl) {
		s.clock = clock
	}
}

// WithCASRetries sets how many read-modify-write attempts a transition makes.
func WithCASRetries(n int) LifecycleOption {
	return func(s *lifecycleServiceImpl) {
		if n > 0 {
			s.casRetries = n
		}
	}
}

// WithEventDispatcher publishes lifecycle events to d.
func WithEventDispatcher(d dispatcher.Dispatcher) LifecycleOption {
	return func(s *lifecycleServiceImpl) {
		s.events = d
	}
}

type lifecycleServiceImpl struct {
	store      port.TicketStore
	ids        port.TicketIDGenerator
	notifier   NotificationService
	events     dispatcher.Dispatcher
	logger     Logger
	clock      utils.Clock
	casRetries int
	tickets    *utils.KeyedMutex
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(
	store port.TicketStore,
	ids port.TicketIDGenerator,
	notifier NotificationService,
	logger Logger,
	opts ...LifecycleOption,
) LifecycleService {
	s := &lifecycleServiceImpl{
		store:      store,
		ids:        ids,
		notifier:   notifier,
		logger:     logger,
		clock:      utils.SystemClock,
		casRetries: 3,
		tickets:    utils.NewKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// owedNotifications maps a lifecycle position to the flag guarding its
// notifications and the notifications themselves.
func owedNotifications(state workflow.State) (entity.NotifyFlag, []NotificationKind) {
	switch state {
	case workflow.StatePendingApproval:
		return entity.FlagNewRequest, []NotificationKind{NotifyNewRequestToSecretary, NotifyNewRequestToTreasurer}
	case workflow.StatePendingProcess:
		return entity.FlagApproved, []NotificationKind{NotifyApprovedToRequester, NotifyApprovedToTreasurer}
	case workflow.StateRejected:
		return entity.FlagRejected, []NotificationKind{NotifyRejectedToRequester}
	case workflow.StateInProgress:
		return entity.FlagInProgress, []NotificationKind{NotifyInProgressToRequester}
	case workflow.StateProcessed:
		return entity.FlagProcessed, []NotificationKind{NotifyProcessedToRequester}
	}
	return "", nil
}

func (s *lifecycleServiceImpl) Create(ctx context.Context, senderNumber string, form entity.RequestForm) (*entity.Ticket, error) {
	if missing := missingFormFields(form); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	var ticket *entity.Ticket
	for attempt := 1; ; attempt++ {
		number, err := s.ids.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: next ticket number: %w", ErrStore, err)
		}

		now := utils.TruncateMillis(s.clock())
		ticket = &entity.Ticket{
			TicketNumber: number,
			Timestamp:    now,
			SenderNumber: senderNumber,
			SenderName:   form.SenderName,
			GoodsName:    form.GoodsName,
			Quantity:     form.Quantity,
			Link:         form.Link,
			Reason:       form.Reason,
			Status:       entity.StatusPendingApproval,
			LastUpdated:  now,
		}

		// Held through delivery so the poller cannot announce the ticket twice.
		unlock := s.tickets.Lock(entity.NormalizeTicketNumber(number))
		err = s.store.Create(ctx, ticket)
		if err == nil {
			defer unlock()
			break
		}
		unlock()

		if errors.Is(err, port.ErrDuplicateTicket) && attempt < s.casRetries {
			// The sheet already holds this number, e.g. a row typed by hand.
			s.logger.Info("Ticket number taken, drawing another", "ticket_number", number)
			continue
		}
		s.logger.Error("Failed to create ticket", "ticket_number", number, "error", err)
		return nil, fmt.Errorf("%w: create ticket: %w", ErrStore, err)
	}

	number := ticket.TicketNumber
	s.logger.Info("Ticket created", "ticket_number", number, "sender", senderNumber)
	s.publish(ctx, event.TypeTicketCreated, ticket, map[string]interface{}{
		event.KeyActor:     senderNumber,
		event.KeyNewStatus: string(workflow.StatePendingApproval),
	})

	if _, err := s.deliver(ctx, ticket, workflow.StatePendingApproval); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *lifecycleServiceImpl) Get(ctx context.Context, ticketNumber string) (*entity.Ticket, error) {
	ticket, err := s.store.Get(ctx, entity.NormalizeTicketNumber(ticketNumber))
	if err != nil {
		s.logger.Error("Failed to read ticket", "ticket_number", ticketNumber, "error", err)
		return nil, fmt.Errorf("%w: get ticket: %w", ErrStore, err)
	}
	if ticket == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(ticketNumber))
	}
	return ticket, nil
}

func (s *lifecycleServiceImpl) Check(ctx context.Context, ticketNumber string, trigger workflow.Trigger) (*entity.Ticket, error) {
	ticket, err := s.Get(ctx, ticketNumber)
	if err != nil {
		return nil, err
	}

	state, err := workflow.StateOf(ticket)
	if err != nil {
		return ticket, err
	}
	if !workflow.NewTicketMachine(state).CanFire(trigger) {
		return ticket, &workflow.TransitionError{Current: state, Trigger: trigger}
	}
	return ticket, nil
}

// Approve stores a non-empty note as the secretary's reason so the
// requester notice carries it on every delivery path.
func (s *lifecycleServiceImpl) Approve(ctx context.Context, ticketNumber, actor, note string) (*entity.Ticket, error) {
	note = strings.TrimSpace(note)
	return s.transition(ctx, ticketNumber, actor, workflow.TriggerApprove, event.TypeTicketApproved, func(t *entity.Ticket) {
		if note != "" {
			t.ReasonSekdep = note
		}
	})
}

func (s *lifecycleServiceImpl) Reject(ctx context.Context, ticketNumber, actor, reason string) (*entity.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	return s.transition(ctx, ticketNumber, actor, workflow.TriggerReject, event.TypeTicketRejected, func(t *entity.Ticket) {
		t.ReasonSekdep = reason
	})
}

func (s *lifecycleServiceImpl) SetTreasurerStatus(ctx context.Context, ticketNumber, actor string, status entity.TreasurerStatus, reason string) (*entity.Ticket, error) {
	trigger, ok := workflow.TriggerFor(status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown treasurer status %q", ErrValidation, status)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		if status.RequiresReason() {
			return nil, fmt.Errorf("%w: reason is required for %s", ErrValidation, status)
		}
		reason = entity.DefaultNotProcessedReason
	}

	return s.transition(ctx, ticketNumber, actor, trigger, event.TypeTreasurerUpdated, func(t *entity.Ticket) {
		t.ReasonBendahara = reason
	})
}

func (s *lifecycleServiceImpl) AskRequester(ctx context.Context, ticketNumber, actor, question string) (*entity.Ticket, bool, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, false, fmt.Errorf("%w: question is empty", ErrValidation)
	}

	ticket, err := s.Get(ctx, ticketNumber)
	if err != nil {
		return nil, false, err
	}

	delivered, err := s.sendOne(ctx, Notification{
		Kind:   NotifyQuestionToRequester,
		Ticket: ticket,
		Text:   question,
	})
	if err != nil {
		return nil, false, err
	}

	s.publish(ctx, event.TypeQuestionAsked, ticket, map[string]interface{}{
		event.KeyActor:  actor,
		event.KeyReason: question,
	})
	return ticket, delivered, nil
}

func (s *lifecycleServiceImpl) ReplyToSecretary(ctx context.Context, ticketNumber, requester, secretary, reply string) (*entity.Ticket, bool, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, false, fmt.Errorf("%w: reply is empty", ErrValidation)
	}

	ticket, err := s.Get(ctx, ticketNumber)
	if err != nil {
		return nil, false, err
	}

	delivered, err := s.sendOne(ctx, Notification{
		Kind:      NotifyReplyToSecretary,
		Ticket:    ticket,
		Text:      reply,
		Recipient: secretary,
	})
	if err != nil {
		return nil, false, err
	}

	s.publish(ctx, event.TypeQuestionAnswered, ticket, map[string]interface{}{
		event.KeyActor:  requester,
		event.KeyReason: reply,
	})
	return ticket, delivered, nil
}

func (s *lifecycleServiceImpl) Reconcile(ctx context.Context, ticketNumber string) (ReconcileOutcome, error) {
	key := entity.NormalizeTicketNumber(ticketNumber)
	unlock := s.tickets.Lock(key)
	defer unlock()

	// Re-read under the lock so flags set by a concurrent chat action are seen.
	ticket, err := s.Get(ctx, key)
	if err != nil {
		return OutcomeNothingOwed, err
	}

	state, err := workflow.StateOf(ticket)
	if err != nil {
		return OutcomeNothingOwed, err
	}

	return s.deliver(ctx, ticket, state)
}

// transition runs one read-modify-write with compare-and-swap on
// lastUpdated, retrying on conflict, then delivers the owed notifications.
func (s *lifecycleServiceImpl) transition(
	ctx context.Context,
	ticketNumber, actor string,
	trigger workflow.Trigger,
	eventType event.Type,
	mutate func(t *entity.Ticket),
) (*entity.Ticket, error) {
	key := entity.NormalizeTicketNumber(ticketNumber)
	unlock := s.tickets.Lock(key)
	defer unlock()

	for attempt := 1; ; attempt++ {
		current, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}

		from, err := workflow.StateOf(current)
		if err != nil {
			s.logger.Error("Ticket has inconsistent state", "ticket_number", key, "error", err)
			return nil, err
		}

		machine := workflow.NewTicketMachine(from)
		if err := machine.Fire(trigger); err != nil {
			return nil, err
		}
		to := machine.State()

		next := current.Clone()
		workflow.Apply(next, to)
		if mutate != nil {
			mutate(next)
		}
		next.LastUpdated = s.stamp(current.LastUpdated)
		if flag, _ := owedNotifications(to); flag != "" {
			next.SetFlag(flag, false)
		}

		err = s.store.Update(ctx, next, current.LastUpdated)
		if errors.Is(err, port.ErrConflict) && attempt < s.casRetries {
			s.logger.Info("Ticket changed while updating, retrying",
				"ticket_number", key,
				"trigger", trigger,
				"attempt", attempt,
			)
			continue
		}
		if err != nil {
			s.logger.Error("Failed to update ticket", "ticket_number", key, "trigger", trigger, "error", err)
			return nil, fmt.Errorf("%w: update ticket: %w", ErrStore, err)
		}

		s.logger.Info("Ticket transitioned",
			"ticket_number", key,
			"trigger", trigger,
			"from", from,
			"to", to,
			"actor", actor,
		)

		reason := next.ReasonBendahara
		if trigger == workflow.TriggerReject || trigger == workflow.TriggerApprove {
			reason = next.ReasonSekdep
		}
		s.publish(ctx, eventType, next, map[string]interface{}{
			event.KeyActor:          actor,
			event.KeyPreviousStatus: string(from),
			event.KeyNewStatus:      string(to),
			event.KeyReason:         reason,
		})

		if _, err := s.deliver(ctx, next, to); err != nil {
			return nil, err
		}
		return next, nil
	}
}

// deliver sends the notifications owed for state unless its flag is set.
// The flag is recorded once at least one recipient got the message, so a
// later reconcile never sends a duplicate. An unrecoverable transport error
// stops the batch and is returned.
func (s *lifecycleServiceImpl) deliver(ctx context.Context, ticket *entity.Ticket, state workflow.State) (ReconcileOutcome, error) {
	flag, kinds := owedNotifications(state)
	if flag == "" || ticket.Notified.Has(flag) {
		return OutcomeNothingOwed, nil
	}

	delivered := 0
	var fatal error
	for _, kind := range kinds {
		ok, err := s.sendOne(ctx, Notification{Kind: kind, Ticket: ticket})
		if err != nil {
			fatal = err
			break
		}
		if ok {
			delivered++
		}
	}

	if delivered == 0 {
		return OutcomeUndelivered, fatal
	}

	if err := s.store.MarkNotified(ctx, ticket.TicketNumber, flag); err != nil {
		s.logger.Error("Failed to record notification flag",
			"ticket_number", ticket.TicketNumber,
			"flag", flag,
			"error", err,
		)
	} else {
		ticket.SetFlag(flag, true)
	}

	return OutcomeDelivered, fatal
}

// sendOne sends n and reports whether it was delivered. Only an
// unrecoverable transport error is returned; other failures are published
// as notification-failed events.
func (s *lifecycleServiceImpl) sendOne(ctx context.Context, n Notification) (bool, error) {
	err := s.notifier.Send(ctx, n)
	if err == nil {
		return true, nil
	}
	s.publish(ctx, event.TypeNotificationFailed, n.Ticket, map[string]interface{}{
		event.KeyNotification: string(n.Kind),
	})
	if errors.Is(err, port.ErrUnrecoverableTransport) {
		return false, err
	}
	return false, nil
}

// stamp returns the new lastUpdated, strictly after prev.
func (s *lifecycleServiceImpl) stamp(prev time.Time) time.Time {
	now := utils.TruncateMillis(s.clock())
	if !now.After(prev) {
		now = utils.TruncateMillis(prev).Add(time.Millisecond)
	}
	return now
}

func (s *lifecycleServiceImpl) publish(ctx context.Context, eventType event.Type, ticket *entity.Ticket, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.DispatchAsync(ctx, event.NewEvent(eventType, ticket.TicketNumber, payload))
}

func missingFormFields(form entity.RequestForm) []string {
	var missing []string
	for _, f := range []struct {
		label string
		value string
	}{
		{FormLabelName, form.SenderName},
		{FormLabelGoods, form.GoodsName},
		{FormLabelQuantity, form.Quantity},
		{FormLabelLink, form.Link},
		{FormLabelReason, form.Reason},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.label)
		}
	}
	return missing
}

// Form labels of the request template.
const (
	FormLabelName     = "Nama Lengkap"
	FormLabelGoods    = "Nama Barang"
	FormLabelQuantity = "Jumlah"
	FormLabelLink     = "Link"
	FormLabelReason   = "Keperluan"
)
