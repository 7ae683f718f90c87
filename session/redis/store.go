// Package redis provides a Redis backed core.SessionStore and
// core.SessionLocker for deployments running several router processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/hupe1980/routemesh/core"
)

// DefaultPrefix namespaces all keys written by the store and locker.
const DefaultPrefix = "routemesh:"

// Sessions and locks live in disjoint key spaces below the prefix, so no
// session ID can collide with another session's lock key.
const (
	sessionSpace = "session:"
	lockSpace    = "lock:"
)

var _ core.SessionStore = (*Store)(nil)

// Store implements core.SessionStore using Redis. Sessions are stored as JSON
// documents under prefix+"session:"+id.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration for sessions. Zero disables expiration.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client returns the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client { return s.client }

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionSpace + sessionID
}

// Get loads a session. Unknown sessions are created lazily and not stored
// until saved.
func (s *Store) Get(ctx context.Context, sessionID string) (*core.Session, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return core.NewSession(sessionID), nil
		}
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	sess := core.NewSession(sessionID)
	if err := json.Unmarshal(val, sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.Routes == nil {
		sess.Routes = map[string]*core.ConversationRouteState{}
	}
	return sess, nil
}

// Save persists the session, refreshing its TTL.
func (s *Store) Save(ctx context.Context, sess *core.Session) error {
	data, err := json.Marshal(sess.Clone())
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
