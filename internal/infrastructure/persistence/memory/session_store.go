package memory

import (
	"context"
	"sync"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/domain/entity"
)

// SessionStore keeps conversation sessions in process memory. A restart
// forgets every in-flight conversation.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]entity.Session
}

var _ port.SessionStore = (*SessionStore)(nil)

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]entity.Session)}
}

func (s *SessionStore) Get(ctx context.Context, actorID string) (*entity.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[actorID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, session *entity.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ActorID] = *session
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, actorID)
	return nil
}
