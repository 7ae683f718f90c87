package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/routemesh/core"
	"github.com/hupe1980/routemesh/logging"
	"github.com/hupe1980/routemesh/routing"
	"github.com/hupe1980/routemesh/session"
)

// DefaultHistoryLimit is the number of recent messages handed to the router.
const DefaultHistoryLimit = 15

// ErrTurnNotFound is returned by Cancel for unknown or finished turns.
var ErrTurnNotFound = errors.New("turn not found")

// Router decides the route for one turn. *routing.StickyRouter implements it.
type Router interface {
	Route(ctx context.Context, req routing.RouteRequest) (core.RoutingDecision, error)
}

// IntentClassifier classifies intents and carries previous ones forward.
// *intent.Classifier implements it.
type IntentClassifier interface {
	Classify(ctx context.Context, messages []core.Message, previous []string) (core.IntentSet, error)
}

// Observer receives the outcome of every completed turn.
type Observer interface {
	ObserveTurn(result *TurnResult, routeDuration time.Duration)
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	ID        string               `json:"id"`
	SessionID string               `json:"session_id"`
	Level     string               `json:"level"`
	Decision  core.RoutingDecision `json:"decision"`
	Intents   core.IntentSet       `json:"intents"`
	// Degraded is set when a classifier failed and the turn fell back.
	Degraded bool `json:"degraded"`
	// Err holds the classifier error behind a degraded turn.
	Err error `json:"-"`
}

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// Level is the routing level this runner serves.
	Level string
	// Catalog is handed to the router every turn.
	Catalog core.Catalog
	// IntentClassifier enables intent classification when set.
	IntentClassifier IntentClassifier
	// HistoryLimit caps the recent messages passed to the router.
	HistoryLimit int
	// MaxConcurrentTurns limits turns running at once. Zero means unlimited.
	MaxConcurrentTurns int
	// SessionStore persists sessions between turns.
	SessionStore core.SessionStore
	// SessionLocker serializes turns of one session.
	SessionLocker core.SessionLocker
	// Observer receives turn outcomes, e.g. a metrics collector.
	Observer Observer
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Runner coordinates routing turns. Public methods are safe for concurrent use.
type Runner struct {
	router           Router
	level            string
	catalog          core.Catalog
	intentClassifier IntentClassifier
	historyLimit     int

	sessionStore core.SessionStore
	locker       core.SessionLocker
	observer     Observer
	logger       logging.Logger

	slots chan struct{}

	activeTurns map[string]context.CancelFunc
	mu          sync.Mutex
}

// New constructs a Runner with optional overrides.
func New(router Router, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Level:         core.DefaultLevel,
		HistoryLimit:  DefaultHistoryLimit,
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

	r := &Runner{
		router:           router,
		level:            opts.Level,
		catalog:          opts.Catalog,
		intentClassifier: opts.IntentClassifier,
		historyLimit:     opts.HistoryLimit,
		sessionStore:     opts.SessionStore,
		locker:           opts.SessionLocker,
		observer:         opts.Observer,
		logger:           opts.Logger,
		activeTurns:      make(map[string]context.CancelFunc),
	}
	if opts.MaxConcurrentTurns > 0 {
		r.slots = make(chan struct{}, opts.MaxConcurrentTurns)
	}
	return r
}

// Level returns the routing level served by the runner.
func (r *Runner) Level() string { return r.level }

// Turn routes one user message of a session.
func (r *Runner) Turn(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	if err := r.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer r.releaseSlot()

	turnID := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	r.activeTurns[turnID] = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.activeTurns, turnID)
		r.mu.Unlock()
	}()

	logger := r.sessionLogger(sessionID)

	lock, err := r.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	defer r.unlock(ctx, lock, logger)

	sess, err := r.sessionStore.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess.AddMessage(core.UserMessage(message))
	recent := sess.RecentMessages(r.historyLimit)
	state := sess.RouteState(r.level)

	result := &TurnResult{
		ID:        turnID,
		SessionID: sessionID,
		Level:     r.level,
	}

	stopRoute := logging.StartTimer(logger, "route")
	switch {
	case state.RouteLocked:
		result.Decision = core.Hold(state.CurrentRoute, core.RuleLocked)
	default:
		decision, err := r.router.Route(ctx, routing.RouteRequest{
			Message:        message,
			CurrentRoute:   state.CurrentRoute,
			Catalog:        r.catalog,
			RecentMessages: recent,
		})
		if err != nil {
			// a canceled turn must not persist a fallback decision
			if ctx.Err() != nil {
				return nil, fmt.Errorf("turn canceled: %w", err)
			}
			logger.Warn("routing failed, holding current route", "route", state.CurrentRoute, "error", err)
			decision = core.Hold(state.CurrentRoute, core.RuleClassifierFailure)
			result.Degraded = true
			result.Err = err
		}
		result.Decision = decision
	}
	routeDuration := stopRoute()

	from := state.CurrentRoute
	state.Apply(result.Decision)

	result.Intents = sess.Intents.Clone()
	if r.intentClassifier != nil {
		stopIntents := logging.StartTimer(logger, "classify_intents")
		intents, err := r.intentClassifier.Classify(ctx, recent, sess.PreviousIntents())
		stopIntents()
		switch {
		case err == nil:
			sess.SetIntents(intents)
			result.Intents = intents
		case ctx.Err() != nil:
			return nil, fmt.Errorf("turn canceled: %w", err)
		default:
			logger.Warn("intent classification failed, keeping previous intents", "error", err)
			result.Degraded = true
			result.Err = errors.Join(result.Err, err)
		}
	}

	if err := r.save(ctx, lock, sess); err != nil {
		return nil, err
	}

	logging.LogDecision(logger, from, result.Decision.Route, result.Decision.Changed, string(result.Decision.Rule),
		"turn_id", turnID,
		"degraded", result.Degraded,
		"duration", routeDuration,
	)

	if r.observer != nil {
		r.observer.ObserveTurn(result, routeDuration)
	}

	return result, nil
}

// Cancel cancels a running turn by ID.
func (r *Runner) Cancel(turnID string) error {
	r.mu.Lock()
	cancel, exists := r.activeTurns[turnID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrTurnNotFound, turnID)
	}

	cancel()

	return nil
}

// SetRouteLocked pins or releases the current route of a session. While
// locked, turns hold the route without consulting the router.
func (r *Runner) SetRouteLocked(ctx context.Context, sessionID string, locked bool) error {
	return r.update(ctx, sessionID, func(sess *core.Session) {
		sess.RouteState(r.level).RouteLocked = locked
	})
}

// Reply records the handler's answer in the session history, so later turns
// classify with the assistant side of the conversation in view. It waits for
// a running turn of the session to finish.
func (r *Runner) Reply(ctx context.Context, sessionID, content string) error {
	return r.update(ctx, sessionID, func(sess *core.Session) {
		sess.AddMessage(core.AssistantMessage(content))
	})
}

// RouteState returns a copy of the session's route state at the runner's level.
func (r *Runner) RouteState(ctx context.Context, sessionID string) (*core.ConversationRouteState, error) {
	sess, err := r.sessionStore.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess.RouteState(r.level).Clone(), nil
}

// Reset deletes all state of a session.
func (r *Runner) Reset(ctx context.Context, sessionID string) error {
	lock, err := r.locker.Lock(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}
	defer r.unlock(ctx, lock, r.sessionLogger(sessionID))

	if err := lock.Held(ctx); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	return r.sessionStore.Delete(ctx, sessionID)
}

// update applies fn to a session under its lock and saves the result.
func (r *Runner) update(ctx context.Context, sessionID string, fn func(sess *core.Session)) error {
	lock, err := r.locker.Lock(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}
	defer r.unlock(ctx, lock, r.sessionLogger(sessionID))

	sess, err := r.sessionStore.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	fn(sess)
	return r.save(ctx, lock, sess)
}

// save persists sess only while lock is still held. A lock that expired
// mid-turn may already belong to the next turn, whose state must win.
func (r *Runner) save(ctx context.Context, lock core.SessionLock, sess *core.Session) error {
	if err := lock.Held(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	sess.Touch()
	if err := r.sessionStore.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *Runner) unlock(ctx context.Context, lock core.SessionLock, logger logging.Logger) {
	// release even when the turn context is already canceled
	if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("failed to unlock session", "error", err)
	}
}

// sessionLogger scopes log entries to one session and the runner's level.
func (r *Runner) sessionLogger(sessionID string) logging.Logger {
	if rl, ok := r.logger.(*logging.RouteMeshLogger); ok {
		return rl.WithSession(sessionID, r.level)
	}
	return logging.With(r.logger, "session_id", sessionID, "routing_level", r.level)
}

func (r *Runner) acquireSlot(ctx context.Context) error {
	if r.slots == nil {
		return nil
	}
	select {
	case r.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) releaseSlot() {
	if r.slots != nil {
		<-r.slots
	}
}
