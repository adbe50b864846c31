package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/application/service"
	"github.com/garyjia/procurement-bot/internal/domain/workflow"
	"github.com/garyjia/procurement-bot/pkg/utils"
)

// CheckpointName keys the poller watermark in the checkpoint repository.
const CheckpointName = "change_poller"

// Reconciler sends the notifications a ticket still owes.
type Reconciler interface {
	Reconcile(ctx context.Context, ticketNumber string) (service.ReconcileOutcome, error)
}

// CycleStats summarizes one poll cycle.
type CycleStats struct {
	Scanned    int       `json:"scanned"`
	Changed    int       `json:"changed"`
	Delivered  int       `json:"delivered"`
	Failed     int       `json:"failed"`
	Checkpoint time.Time `json:"checkpoint"`
}

// ChangePoller scans the ticket table on an interval and delivers
// notifications for changes the chat path did not notify, e.g. rows edited
// directly in the sheet or a process restart mid-handler.
type ChangePoller struct {
	store       port.TicketStore
	reconciler  Reconciler
	checkpoints port.CheckpointRepository
	logger      *zap.Logger
	clock       utils.Clock

	pollInterval time.Duration
	cycleTimeout time.Duration
	settleGrace  time.Duration

	// cycleMu serializes cycles from the ticker and manual triggers.
	cycleMu    sync.Mutex
	checkpoint time.Time
	loaded     bool

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// PollerOption configures the change poller
type PollerOption func(*ChangePoller)

// WithPollInterval sets the time between cycles.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *ChangePoller) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithCycleTimeout bounds one cycle.
func WithCycleTimeout(d time.Duration) PollerOption {
	return func(p *ChangePoller) {
		if d > 0 {
			p.cycleTimeout = d
		}
	}
}

// WithSettleGrace sets how long a stamp may take to become visible in the
// store. The checkpoint never moves past cycle start minus this grace, so a
// row stamped just before a cycle but written after it is still seen.
func WithSettleGrace(d time.Duration) PollerOption {
	return func(p *ChangePoller) {
		if d >= 0 {
			p.settleGrace = d
		}
	}
}

// WithPollerClock replaces the clock used for the first checkpoint.
func WithPollerClock(clock utils.Clock) PollerOption {
	return func(p *ChangePoller) {
		p.clock = clock
	}
}

// NewChangePoller creates a new change poller
func NewChangePoller(
	store port.TicketStore,
	reconciler Reconciler,
	checkpoints port.CheckpointRepository,
	logger *zap.Logger,
	opts ...PollerOption,
) *ChangePoller {
	p := &ChangePoller{
		store:        store,
		reconciler:   reconciler,
		checkpoints:  checkpoints,
		logger:       logger,
		clock:        utils.SystemClock,
		pollInterval: 60 * time.Second,
		cycleTimeout: 30 * time.Second,
		settleGrace:  time.Minute,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start starts the polling loop
func (p *ChangePoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("change poller is already running")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.isRunning = true

	p.logger.Info("ChangePoller started", zap.Duration("poll_interval", p.pollInterval))

	go p.pollLoop(ctx, p.done)
	return nil
}

// Stop stops the loop and waits for the running cycle to finish
func (p *ChangePoller) Stop() {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = false
	p.cancel()
	done := p.done
	p.mu.Unlock()

	<-done
	p.logger.Info("ChangePoller stopped")
}

// Name returns the worker name for identification
func (p *ChangePoller) Name() string {
	return "ChangePoller"
}

func (p *ChangePoller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isRunning
}

func (p *ChangePoller) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	// Poll immediately on start
	p.runScheduled(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runScheduled(ctx)
		}
	}
}

func (p *ChangePoller) runScheduled(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.cycleTimeout)
	defer cancel()

	if _, err := p.RunPollCycle(ctx); err != nil {
		p.logger.Error("Poll cycle failed, checkpoint kept", zap.Error(err))
	}
}

// RunPollCycle reconciles every ticket changed since the checkpoint. The
// checkpoint only moves past tickets that were fully handled and whose
// stamps are older than the settle grace; a failed read keeps it where it
// was. Tickets inside the grace are re-read next cycle and their flags keep
// that from sending twice.
func (p *ChangePoller) RunPollCycle(ctx context.Context) (CycleStats, error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	var stats CycleStats
	settled := p.clock().Add(-p.settleGrace)

	checkpoint, err := p.loadCheckpoint(ctx)
	if err != nil {
		return stats, err
	}
	stats.Checkpoint = checkpoint

	tickets, err := p.store.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("%w: list tickets: %w", service.ErrStore, err)
	}
	stats.Scanned = len(tickets)

	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].LastUpdated.Before(tickets[j].LastUpdated)
	})

	next := checkpoint
	var earliestFailed time.Time

scan:
	for _, ticket := range tickets {
		if !ticket.LastUpdated.After(checkpoint) {
			continue
		}
		stats.Changed++

		outcome, err := p.reconciler.Reconcile(ctx, ticket.TicketNumber)
		switch {
		case errors.Is(err, workflow.ErrInvalidState) || errors.Is(err, service.ErrNotFound):
			// Retrying cannot fix a malformed or vanished row.
			p.logger.Warn("Skipping ticket",
				zap.String("ticket_number", ticket.TicketNumber),
				zap.Error(err))
		case err != nil:
			p.logger.Error("Failed to reconcile ticket",
				zap.String("ticket_number", ticket.TicketNumber),
				zap.Error(err))
			stats.Failed++
			if earliestFailed.IsZero() {
				earliestFailed = ticket.LastUpdated
			}
			if errors.Is(err, port.ErrUnrecoverableTransport) {
				// Later tickets would fail the same way.
				break scan
			}
		case outcome == service.OutcomeUndelivered:
			p.logger.Warn("Owed notification not delivered, will retry",
				zap.String("ticket_number", ticket.TicketNumber))
			stats.Failed++
			if earliestFailed.IsZero() {
				earliestFailed = ticket.LastUpdated
			}
		case outcome == service.OutcomeDelivered:
			stats.Delivered++
		}

		if ticket.LastUpdated.After(next) {
			next = ticket.LastUpdated
		}
	}

	if !earliestFailed.IsZero() {
		next = earliestFailed.Add(-time.Nanosecond)
	}
	if next.After(settled) {
		next = settled
	}

	if next.After(checkpoint) {
		if err := p.checkpoints.Save(ctx, CheckpointName, next); err != nil {
			return stats, fmt.Errorf("save checkpoint: %w", err)
		}
		p.checkpoint = next
		stats.Checkpoint = next
	}

	if stats.Changed > 0 {
		p.logger.Info("Poll cycle completed",
			zap.Int("changed", stats.Changed),
			zap.Int("delivered", stats.Delivered),
			zap.Int("failed", stats.Failed),
			zap.String("checkpoint", utils.FormatWIB(stats.Checkpoint)))
	}

	return stats, nil
}

// loadCheckpoint reads the persisted watermark once. Without one the
// poller starts from now so historical rows are not re-announced.
func (p *ChangePoller) loadCheckpoint(ctx context.Context) (time.Time, error) {
	if p.loaded {
		return p.checkpoint, nil
	}

	checkpoint, found, err := p.checkpoints.Get(ctx, CheckpointName)
	if err != nil {
		return time.Time{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if !found {
		checkpoint = utils.TruncateMillis(p.clock())
		if err := p.checkpoints.Save(ctx, CheckpointName, checkpoint); err != nil {
			return time.Time{}, fmt.Errorf("save initial checkpoint: %w", err)
		}
		p.logger.Info("No poller checkpoint, starting from now",
			zap.String("checkpoint", utils.FormatWIB(checkpoint)))
	}

	p.checkpoint = checkpoint
	p.loaded = true
	return checkpoint, nil
}
