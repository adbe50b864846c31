package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/garyjia/procurement-bot/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher(WithLogger(&mockLogger{}))

	var order []string
	d.SubscribeNamed(event.TypeTicketApproved, "history", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "history")
		return nil
	})
	d.SubscribeNamed(event.TypeTicketApproved, "stream", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "stream")
		return nil
	})
	d.SubscribeNamed(event.TypeTicketRejected, "other", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "other")
		return nil
	})

	if err := d.Dispatch(context.Background(), event.NewEvent(event.TypeTicketApproved, "T-1", nil)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if len(order) != 2 || order[0] != "history" || order[1] != "stream" {
		t.Errorf("handlers ran as %v, want [history stream]", order)
	}
}

func TestDispatch_RunsEveryHandlerAndJoinsErrors(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	boom := errors.New("boom")

	called := false
	d.SubscribeNamed(event.TypeTicketCreated, "failing", func(ctx context.Context, evt *event.Event) error {
		return boom
	})
	d.SubscribeNamed(event.TypeTicketCreated, "after", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	err := d.Dispatch(context.Background(), event.NewEvent(event.TypeTicketCreated, "T-1", nil))
	if !errors.Is(err, boom) {
		t.Fatalf("Dispatch() error = %v, want %v", err, boom)
	}
	if !called {
		t.Error("handler after the failing one should still run")
	}
	if logger.ErrorCount() != 1 {
		t.Errorf("ErrorCount() = %d, want 1", logger.ErrorCount())
	}
}

func TestDispatch_RecoversPanics(t *testing.T) {
	d := NewDispatcher()
	d.SubscribeNamed(event.TypeTicketCreated, "panics", func(ctx context.Context, evt *event.Event) error {
		panic("bad handler")
	})

	if err := d.Dispatch(context.Background(), event.NewEvent(event.TypeTicketCreated, "T-1", nil)); err == nil {
		t.Fatal("Dispatch() should report the panic as an error")
	}
}

func TestSubscribeAll(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int32
	d.SubscribeAll("mirror", func(ctx context.Context, evt *event.Event) error {
		count.Add(1)
		return nil
	})

	for _, typ := range event.All {
		if got := d.Subscribers(typ); len(got) != 1 || got[0] != "mirror" {
			t.Errorf("Subscribers(%v) = %v", typ, got)
		}
		if err := d.Dispatch(context.Background(), event.NewEvent(typ, "T-1", nil)); err != nil {
			t.Fatalf("Dispatch(%v) error = %v", typ, err)
		}
	}

	if int(count.Load()) != len(event.All) {
		t.Errorf("handler ran %d times, want %d", count.Load(), len(event.All))
	}
}

func TestDispatchAsync_DeliversInSubmissionOrder(t *testing.T) {
	d := NewDispatcher()

	var mu sync.Mutex
	var seen []event.Type
	d.SubscribeAll("history", func(ctx context.Context, evt *event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, evt.Type)
		return nil
	})

	want := []event.Type{event.TypeTicketCreated, event.TypeTicketApproved, event.TypeTreasurerUpdated}
	for _, typ := range want {
		d.DispatchAsync(context.Background(), event.NewEvent(typ, "T-1", nil))
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(want) {
		t.Fatalf("delivered %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("delivered[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestDispatchAsync_FullQueueDrops(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger), WithQueueSize(1))

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var delivered atomic.Int32
	d.SubscribeNamed(event.TypeTicketCreated, "slow", func(ctx context.Context, evt *event.Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		delivered.Add(1)
		return nil
	})

	// First event is taken by the delivery goroutine, second waits in the
	// queue, third has nowhere to go.
	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeTicketCreated, "T-1", nil))
	<-started
	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeTicketCreated, "T-2", nil))
	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeTicketCreated, "T-3", nil))
	close(release)

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if delivered.Load() != 2 {
		t.Errorf("delivered %d events, want 2", delivered.Load())
	}
	if logger.ErrorCount() != 1 {
		t.Errorf("ErrorCount() = %d, want 1", logger.ErrorCount())
	}
}

func TestDispatchAsync_CloseDeliversQueued(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	var done atomic.Int32
	d.SubscribeNamed(event.TypeTreasurerUpdated, "slow", func(ctx context.Context, evt *event.Event) error {
		if ctx.Err() != nil {
			t.Error("handler context should not carry the caller's cancellation")
		}
		done.Add(1)
		return errors.New("logged only")
	})

	ctx, cancel := context.WithCancel(context.Background())
	d.DispatchAsync(ctx, event.NewEvent(event.TypeTreasurerUpdated, "T-1", nil))
	cancel()

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if done.Load() != 1 {
		t.Errorf("async handler ran %d times, want 1", done.Load())
	}
	if logger.ErrorCount() != 1 {
		t.Errorf("ErrorCount() = %d, want 1", logger.ErrorCount())
	}

	if err := d.Close(); err == nil {
		t.Error("second Close() should fail")
	}
	if err := d.Dispatch(context.Background(), event.NewEvent(event.TypeTreasurerUpdated, "T-1", nil)); err == nil {
		t.Error("Dispatch() after Close() should fail")
	}

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeTreasurerUpdated, "T-2", nil))
	if logger.ErrorCount() != 2 {
		t.Errorf("DispatchAsync() after Close() should log, ErrorCount() = %d", logger.ErrorCount())
	}
}
