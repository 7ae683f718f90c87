package testutil

import (
	"github.com/hupe1980/routemesh/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").Route(core.DefaultLevel, "billing").Messages(m1, m2).Build()
type SessionBuilder struct {
	id       string
	routes   map[string]*core.ConversationRouteState
	intents  []string
	messages []core.Message
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, routes: map[string]*core.ConversationRouteState{}}
}

// Route sets the current route for a level, recording it in the history (chainable).
func (b *SessionBuilder) Route(level, route string) *SessionBuilder {
	st := b.state(level)
	st.Apply(core.Switch(route, core.RuleSwitch))
	return b
}

// Locked pins the route of a level (chainable).
func (b *SessionBuilder) Locked(level string) *SessionBuilder {
	b.state(level).RouteLocked = true
	return b
}

// Intents sets the intents persisted from the previous turn (chainable).
func (b *SessionBuilder) Intents(intents ...string) *SessionBuilder {
	b.intents = append(b.intents, intents...)
	return b
}

// Messages appends conversation messages (chainable).
func (b *SessionBuilder) Messages(msgs ...core.Message) *SessionBuilder {
	b.messages = append(b.messages, msgs...)
	return b
}

func (b *SessionBuilder) state(level string) *core.ConversationRouteState {
	st, ok := b.routes[level]
	if !ok {
		st = &core.ConversationRouteState{}
		b.routes[level] = st
	}
	return st
}

// Build returns a *core.Session with pre-populated route state and messages.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)

	for level, st := range b.routes {
		s.Routes[level] = st.Clone()
	}
	if len(b.intents) > 0 {
		s.SetIntents(core.IntentSet{Intents: b.intents})
	}

	s.Messages = append(s.Messages, b.messages...)

	return s
}
