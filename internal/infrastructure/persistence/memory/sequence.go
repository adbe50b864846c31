package memory

import (
	"context"
	"fmt"
	"sync"
)

// Sequence issues <prefix><n> ticket numbers from an in-process counter.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	next   int64
}

// NewSequence starts counting at start.
func NewSequence(prefix string, start int64) *Sequence {
	return &Sequence{prefix: prefix, next: start}
}

func (s *Sequence) Next(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.next
	s.next++
	return fmt.Sprintf("%s%d", s.prefix, n), nil
}
