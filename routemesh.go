// Package routemesh provides a high-level façade over the routing engine,
// the sticky router and the turn runner. Most applications interact with this
// package by:
//  1. Creating a RouteMesh via New() with a classifier and a route catalog,
//     or via FromConfig() from a loaded config.Config
//  2. Calling Turn for every user message of a conversation
//  3. Dispatching the message to the handler named by the decision's route
//
// All defaults are safe for local development and testing; production
// deployments typically supply durable session stores, a distributed session
// locker and a structured logger.
package routemesh

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/routemesh/classifier"
	"github.com/hupe1980/routemesh/core"
	"github.com/hupe1980/routemesh/logging"
	"github.com/hupe1980/routemesh/routing"
	"github.com/hupe1980/routemesh/runner"
	"github.com/hupe1980/routemesh/session"
)

// Options configures the RouteMesh instance.
type Options struct {
	// Level names the routing level served (defaults to core.DefaultLevel).
	Level string

	// Catalog holds the valid routes and the optional entry route.
	Catalog core.Catalog

	// Routing holds the default route and the stickiness threshold. The
	// default route is validated against a non-empty catalog.
	Routing routing.Config

	// IntentClassifier enables intent classification when set.
	IntentClassifier runner.IntentClassifier

	// HistoryLimit caps the recent messages passed to the classifier.
	HistoryLimit int

	// MaxConcurrentTurns limits turns running at once. Zero means unlimited.
	MaxConcurrentTurns int

	// Stores (defaults to in-memory implementations if not provided)
	SessionStore  core.SessionStore
	SessionLocker core.SessionLocker

	// Observer receives turn outcomes, e.g. a metrics.Collector.
	Observer runner.Observer

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// RouteMesh is the high-level façade aggregating router and runner.
type RouteMesh struct {
	opts    Options
	router  *routing.StickyRouter
	runner  *runner.Runner
	closers []func() error
}

// New creates a new RouteMesh routing with the given classifier. Any unset
// service is initialized with an in-memory implementation. The routing
// configuration is validated up front.
func New(c classifier.Classifier, optFns ...func(o *Options)) (*RouteMesh, error) {
	if c == nil {
		return nil, errors.New("classifier is required")
	}

	opts := Options{
		Level:         core.DefaultLevel,
		Routing:       routing.DefaultConfig,
		HistoryLimit:  runner.DefaultHistoryLimit,
		SessionStore:  session.NewInMemoryStore(),
		SessionLocker: session.NewMutexLocker(),
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if err := opts.Routing.Validate(opts.Catalog.Routes); err != nil {
		return nil, fmt.Errorf("invalid routing config: %w", err)
	}

	router := routing.New(c, opts.Routing, opts.Logger)

	r := runner.New(router, func(o *runner.Options) {
		o.Level = opts.Level
		o.Catalog = opts.Catalog
		o.IntentClassifier = opts.IntentClassifier
		o.HistoryLimit = opts.HistoryLimit
		o.MaxConcurrentTurns = opts.MaxConcurrentTurns
		o.SessionStore = opts.SessionStore
		o.SessionLocker = opts.SessionLocker
		o.Observer = opts.Observer
		o.Logger = opts.Logger
	})

	return &RouteMesh{opts: opts, router: router, runner: r}, nil
}

// Turn routes one user message of a session.
func (m *RouteMesh) Turn(ctx context.Context, sessionID, message string) (*runner.TurnResult, error) {
	return m.runner.Turn(ctx, sessionID, message)
}

// Reply records the handler's answer to the latest turn of a session.
func (m *RouteMesh) Reply(ctx context.Context, sessionID, content string) error {
	return m.runner.Reply(ctx, sessionID, content)
}

// Cancel cancels a running turn by ID.
func (m *RouteMesh) Cancel(turnID string) error {
	return m.runner.Cancel(turnID)
}

// LockRoute pins the current route of a session until UnlockRoute.
func (m *RouteMesh) LockRoute(ctx context.Context, sessionID string) error {
	return m.runner.SetRouteLocked(ctx, sessionID, true)
}

// UnlockRoute releases a pinned route.
func (m *RouteMesh) UnlockRoute(ctx context.Context, sessionID string) error {
	return m.runner.SetRouteLocked(ctx, sessionID, false)
}

// RouteState returns a copy of a session's route state.
func (m *RouteMesh) RouteState(ctx context.Context, sessionID string) (*core.ConversationRouteState, error) {
	return m.runner.RouteState(ctx, sessionID)
}

// Reset deletes all state of a session.
func (m *RouteMesh) Reset(ctx context.Context, sessionID string) error {
	return m.runner.Reset(ctx, sessionID)
}

// Router returns the underlying sticky router.
func (m *RouteMesh) Router() *routing.StickyRouter { return m.router }

// Catalog returns the catalog handed to the router every turn.
func (m *RouteMesh) Catalog() core.Catalog { return m.opts.Catalog }

// Close releases backend connections opened by FromConfig.
func (m *RouteMesh) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
