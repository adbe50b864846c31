// Package redis keeps conversation sessions in redis so an in-flight
// dialogue survives a restart.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/domain/entity"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "procurement:session:"

// Options configures the connection.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL expires idle sessions. Zero keeps them until deleted.
	TTL time.Duration
}

// NewClient connects to redis. An unreachable server is logged, not
// fatal; calls fail until it comes up.
func NewClient(opts Options, logger *zap.Logger) *goredis.Client {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Unable to reach redis", zap.String("addr", opts.Addr), zap.Error(err))
	} else {
		logger.Info("Connected to redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	}
	return client
}

// SessionStore implements port.SessionStore as one JSON value per actor.
type SessionStore struct {
	client goredis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ port.SessionStore = (*SessionStore)(nil)

// NewSessionStore wraps client.
func NewSessionStore(client goredis.Cmdable, keyPrefix string, ttl time.Duration) *SessionStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &SessionStore{client: client, prefix: keyPrefix, ttl: ttl}
}

func (s *SessionStore) key(actorID string) string {
	return s.prefix + actorID
}

func (s *SessionStore) Get(ctx context.Context, actorID string) (*entity.Session, error) {
	raw, err := s.client.Get(ctx, s.key(actorID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess entity.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, session *entity.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.ActorID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, actorID string) error {
	if err := s.client.Del(ctx, s.key(actorID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
