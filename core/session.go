package core

import (
	"context"
	"sync"
	"time"
)

// DefaultLevel is the routing level used when a topology has a single router.
const DefaultLevel = "root"

// Session is the conversational container a runner owns for one conversation.
// It tracks route state per routing level, the last persisted intents and the
// ordered message history. It is safe for concurrent access; stores hand out
// clones so callers never share the stored copy.
type Session struct {
	ID       string                             `json:"id"`
	Routes   map[string]*ConversationRouteState `json:"routes"`
	Intents  IntentSet                          `json:"intents"`
	Messages []Message                          `json:"messages"`
	Created  time.Time                          `json:"created"`
	Updated  time.Time                          `json:"updated"`
	mu       sync.RWMutex
}

// NewSession creates a new session with the given ID.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:       id,
		Routes:   map[string]*ConversationRouteState{},
		Intents:  IntentSet{Entities: map[string]string{}},
		Messages: []Message{},
		Created:  now,
		Updated:  now,
	}
}

// RouteState returns the route state for level, creating it on first use.
func (s *Session) RouteState(level string) *ConversationRouteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Routes == nil {
		s.Routes = map[string]*ConversationRouteState{}
	}
	st, ok := s.Routes[level]
	if !ok {
		st = &ConversationRouteState{}
		s.Routes[level] = st
	}
	return st
}

// AddMessage appends a message updating the Updated timestamp.
func (s *Session) AddMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, m)
	s.Updated = time.Now().UTC()
}

// RecentMessages returns a copy of the last n messages.
func (s *Session) RecentMessages(n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Recent(s.Messages, n)
}

// SetIntents replaces the persisted intents.
func (s *Session) SetIntents(in IntentSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Intents = in.Clone()
	s.Updated = time.Now().UTC()
}

// PreviousIntents returns a copy of the intent labels carried from the last turn.
func (s *Session) PreviousIntents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.Intents.Intents...)
}

// Touch updates the Updated timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Updated = time.Now().UTC()
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:       s.ID,
		Routes:   make(map[string]*ConversationRouteState, len(s.Routes)),
		Intents:  s.Intents.Clone(),
		Messages: make([]Message, len(s.Messages)),
		Created:  s.Created,
		Updated:  s.Updated,
	}
	for k, v := range s.Routes {
		clone.Routes[k] = v.Clone()
	}
	copy(clone.Messages, s.Messages)
	return clone
}

// SessionStore persists sessions between turns. Get creates a session lazily
// when none exists.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// SessionLock is a lock held on one session.
type SessionLock interface {
	// Held returns ErrLockLost once the lock no longer belongs to the caller.
	Held(ctx context.Context) error
	// Unlock releases the lock. It is safe to call more than once.
	Unlock(ctx context.Context) error
}

// SessionLocker serializes turns of one session. Lock blocks until the lock is
// held or ctx is done.
type SessionLocker interface {
	Lock(ctx context.Context, sessionID string) (SessionLock, error)
}
