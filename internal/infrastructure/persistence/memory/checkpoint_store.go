package memory

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/procurement-bot/internal/application/port"
)

// CheckpointStore keeps poller watermarks in memory.
type CheckpointStore struct {
	mu     sync.Mutex
	values map[string]time.Time

	// GetErr is returned by the next Get and then cleared.
	GetErr error
}

var _ port.CheckpointRepository = (*CheckpointStore)(nil)

// NewCheckpointStore returns an empty store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{values: make(map[string]time.Time)}
}

func (s *CheckpointStore) Get(ctx context.Context, name string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.GetErr; err != nil {
		s.GetErr = nil
		return time.Time{}, false, err
	}
	v, ok := s.values[name]
	return v, ok, nil
}

func (s *CheckpointStore) Save(ctx context.Context, name string, checkpoint time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[name] = checkpoint
	return nil
}
