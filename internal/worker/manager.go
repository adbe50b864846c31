package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker is a long-running component: the inbound chat adapter and the
// change poller.
type Worker interface {
	Start(ctx context.Context) error
	Stop()
	Name() string
}

// runningReporter is implemented by workers that can tell whether their
// loop is still alive.
type runningReporter interface {
	IsRunning() bool
}

// Manager starts workers in registration order and stops them in reverse.
type Manager struct {
	mu      sync.Mutex
	workers []Worker
	started []Worker
	logger  *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// Register adds a worker. Names must be unique; a duplicate panics since
// it can only come from miswiring.
func (m *Manager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.workers {
		if existing.Name() == w.Name() {
			panic(fmt.Sprintf("worker %q registered twice", w.Name()))
		}
	}
	m.workers = append(m.workers, w)
}

// StartAll starts every registered worker. If one fails, the ones already
// started are stopped again.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.started) > 0 {
		return fmt.Errorf("workers already started")
	}

	for _, w := range m.workers {
		if err := w.Start(ctx); err != nil {
			m.logger.Error("Worker failed to start", zap.String("name", w.Name()), zap.Error(err))
			m.stopStarted()
			return fmt.Errorf("start %s: %w", w.Name(), err)
		}
		m.started = append(m.started, w)
		m.logger.Info("Worker started", zap.String("name", w.Name()))
	}
	return nil
}

// StopAll stops the started workers in reverse order. Safe to call twice.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopStarted()
}

func (m *Manager) stopStarted() {
	for i := len(m.started) - 1; i >= 0; i-- {
		w := m.started[i]
		w.Stop()
		m.logger.Info("Worker stopped", zap.String("name", w.Name()))
	}
	m.started = nil
}

// Count returns the number of registered workers
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// Status reports, for each started worker, whether it is still running.
// Workers that cannot tell are reported as running. Empty before StartAll.
func (m *Manager) Status() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := make(map[string]bool, len(m.started))
	for _, w := range m.started {
		running := true
		if r, ok := w.(runningReporter); ok {
			running = r.IsRunning()
		}
		status[w.Name()] = running
	}
	return status
}
