package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/routemesh/classifier"
	"github.com/hupe1980/routemesh/core"
	"github.com/hupe1980/routemesh/intent"
	"github.com/hupe1980/routemesh/internal/testutil"
	"github.com/hupe1980/routemesh/model"
	"github.com/hupe1980/routemesh/routing"
	"github.com/hupe1980/routemesh/session"
)

var testCatalog = core.NewCatalog("greeter", "greeter", "billing", "support")

// scripted classifies by message text and counts calls.
type scripted struct {
	results map[string]core.ClassificationResult
	calls   atomic.Int32
}

func (s *scripted) Classify(_ context.Context, req classifier.Request) (core.ClassificationResult, error) {
	s.calls.Add(1)
	res, ok := s.results[req.Message]
	if !ok {
		return core.ClassificationResult{}, fmt.Errorf("no script for %q", req.Message)
	}
	return res, nil
}

func newScripted() *scripted {
	return &scripted{results: map[string]core.ClassificationResult{
		"hello":       testutil.NewClassification().Label("greeting").Suggest("support").Build(),
		"pay my bill": testutil.NewClassification().Label("payment").Suggest("billing").Build(),
		"hmm":         testutil.NewClassification().Label("unclear").Suggest("support").Confidence(0.3).Build(),
	}}
}

func newRunner(c classifier.Classifier, optFns ...func(o *Options)) *Runner {
	router := routing.NewStickyRouter(c, routing.NewResolver("support"))
	fns := append([]func(o *Options){func(o *Options) { o.Catalog = testCatalog }}, optFns...)
	return New(router, fns...)
}

type recordingObserver struct {
	mu      sync.Mutex
	results []*TurnResult
}

func (o *recordingObserver) ObserveTurn(res *TurnResult, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, res)
}

func TestRunner_ColdStartThenSwitch(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	obs := &recordingObserver{}
	r := newRunner(newScripted(), func(o *Options) {
		o.SessionStore = store
		o.Observer = obs
	})

	res, err := r.Turn(ctx, "s1", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, core.DefaultLevel, res.Level)
	assert.Equal(t, core.RoutingDecision{Route: "support", Changed: true, Rule: core.RuleColdStart}, res.Decision)

	res, err = r.Turn(ctx, "s1", "pay my bill")
	require.NoError(t, err)
	assert.Equal(t, core.RoutingDecision{Route: "billing", Changed: true, Rule: core.RuleSwitch}, res.Decision)

	state, err := r.RouteState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "billing", state.CurrentRoute)
	assert.Equal(t, "support", state.PreviousRoute)
	assert.Equal(t, []string{"support", "billing"}, state.RouteHistory)

	sess, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 2)

	assert.Len(t, obs.results, 2)
}

func TestRunner_LowConfidenceHolds(t *testing.T) {
	ctx := context.Background()
	r := newRunner(newScripted())

	_, err := r.Turn(ctx, "s1", "pay my bill")
	require.NoError(t, err)

	res, err := r.Turn(ctx, "s1", "hmm")
	require.NoError(t, err)
	assert.Equal(t, core.Hold("billing", core.RuleLowConfidence), res.Decision)
}

func TestRunner_ClassifierFailureDegrades(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	r := newRunner(newScripted(), func(o *Options) { o.SessionStore = store })

	_, err := r.Turn(ctx, "s1", "pay my bill")
	require.NoError(t, err)

	res, err := r.Turn(ctx, "s1", "unscripted")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	require.Error(t, res.Err)
	assert.Equal(t, core.Hold("billing", core.RuleClassifierFailure), res.Decision)

	sess, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 2, "the message is kept even when routing degrades")
	assert.Equal(t, []string{"billing"}, sess.RouteState(core.DefaultLevel).RouteHistory)
}

func TestRunner_ColdStartFailureHoldsNoRoute(t *testing.T) {
	r := newRunner(newScripted())

	res, err := r.Turn(context.Background(), "s1", "unscripted")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, core.Hold("", core.RuleClassifierFailure), res.Decision)
}

func TestRunner_InvalidClassificationDegrades(t *testing.T) {
	bad := classifier.Static(testutil.NewClassification().Suggest("billing").Confidence(1.7).Build())
	r := newRunner(bad)

	res, err := r.Turn(context.Background(), "s1", "anything")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.ErrorIs(t, res.Err, core.ErrInvalidClassification)
}

func TestRunner_LockedRouteSkipsClassifier(t *testing.T) {
	ctx := context.Background()
	c := newScripted()
	r := newRunner(c)

	_, err := r.Turn(ctx, "s1", "hello")
	require.NoError(t, err)
	require.NoError(t, r.SetRouteLocked(ctx, "s1", true))

	res, err := r.Turn(ctx, "s1", "pay my bill")
	require.NoError(t, err)
	assert.Equal(t, core.Hold("support", core.RuleLocked), res.Decision)
	assert.Equal(t, int32(1), c.calls.Load())

	require.NoError(t, r.SetRouteLocked(ctx, "s1", false))
	res, err = r.Turn(ctx, "s1", "pay my bill")
	require.NoError(t, err)
	assert.Equal(t, "billing", res.Decision.Route)
}

func TestRunner_IntentsPersistAcrossTurns(t *testing.T) {
	ctx := context.Background()
	m := model.NewMockModel("intents").
		AddResponse(`{"intents":["payment"],"entities":{"invoice":"42"},"confidence":0.9}`).
		AddResponse(`{"intents":[],"confidence":0.4}`)

	r := newRunner(newScripted(), func(o *Options) {
		o.IntentClassifier = intent.NewClassifier(m, func(o *intent.Options) {
			o.Categories = []string{"payment", "support"}
		})
	})

	res, err := r.Turn(ctx, "s1", "pay my bill")
	require.NoError(t, err)
	assert.Equal(t, []string{"payment"}, res.Intents.Intents)

	res, err = r.Turn(ctx, "s1", "hmm")
	require.NoError(t, err)
	assert.Equal(t, []string{"payment"}, res.Intents.Intents)
	assert.Empty(t, res.Intents.Entities)
	assert.False(t, res.Degraded)
}

func TestRunner_IntentFailureKeepsPreviousIntents(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	m := model.NewMockModel("intents").
		AddResponse(`{"intents":["payment"],"confidence":0.9}`).
		AddError(boom)

	r := newRunner(newScripted(), func(o *Options) {
		o.IntentClassifier = intent.NewClassifier(m)
	})

	_, err := r.Turn(ctx, "s1", "pay my bill")
	require.NoError(t, err)

	res, err := r.Turn(ctx, "s1", "hello")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, []string{"payment"}, res.Intents.Intents)
	assert.Equal(t, "support", res.Decision.Route, "routing is unaffected by intent failures")
}

func TestRunner_SequentialTurnsPerSession(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	r := newRunner(newScripted(), func(o *Options) { o.SessionStore = store })

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := "hello"
			if i%2 == 0 {
				msg = "pay my bill"
			}
			_, err := r.Turn(ctx, "shared", msg)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sess, err := store.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, sess.Messages, n, "no turn may overwrite another")

	st := sess.RouteState(core.DefaultLevel)
	for i := 1; i < len(st.RouteHistory); i++ {
		assert.NotEqual(t, st.RouteHistory[i-1], st.RouteHistory[i], "history only records changes")
	}
}

func TestRunner_SessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	r := newRunner(newScripted())

	_, err := r.Turn(ctx, "a", "pay my bill")
	require.NoError(t, err)
	res, err := r.Turn(ctx, "b", "hello")
	require.NoError(t, err)
	assert.Equal(t, core.RuleColdStart, res.Decision.Rule)
}

func TestRunner_CanceledTurnIsNotSaved(t *testing.T) {
	store := session.NewInMemoryStore()
	blocking := classifier.Func(func(ctx context.Context, _ classifier.Request) (core.ClassificationResult, error) {
		<-ctx.Done()
		return core.ClassificationResult{}, ctx.Err()
	})
	r := newRunner(blocking, func(o *Options) { o.SessionStore = store })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Turn(ctx, "s1", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, store.Len())
}

func TestRunner_CancelUnknownTurn(t *testing.T) {
	r := newRunner(newScripted())
	assert.ErrorIs(t, r.Cancel("nope"), ErrTurnNotFound)
}

type failingStore struct {
	core.SessionStore
	err error
}

func (s failingStore) Save(context.Context, *core.Session) error { return s.err }

func TestRunner_StoreErrorsAreReturned(t *testing.T) {
	boom := errors.New("disk full")
	r := newRunner(newScripted(), func(o *Options) {
		o.SessionStore = failingStore{SessionStore: session.NewInMemoryStore(), err: boom}
	})

	_, err := r.Turn(context.Background(), "s1", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRunner_Reset(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	r := newRunner(newScripted(), func(o *Options) { o.SessionStore = store })

	_, err := r.Turn(ctx, "s1", "hello")
	require.NoError(t, err)
	require.NoError(t, r.Reset(ctx, "s1"))
	assert.Equal(t, 0, store.Len())
}

func TestRunner_MaxConcurrentTurns(t *testing.T) {
	var (
		active  atomic.Int32
		maxSeen atomic.Int32
	)
	slow := classifier.Func(func(context.Context, classifier.Request) (core.ClassificationResult, error) {
		n := active.Add(1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return testutil.NewClassification().Suggest("billing").Build(), nil
	})
	r := newRunner(slow, func(o *Options) { o.MaxConcurrentTurns = 2 })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Turn(context.Background(), fmt.Sprintf("s%d", i), "x")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int32(2))
}
