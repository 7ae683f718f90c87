package routemesh_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/routemesh"
	"github.com/hupe1980/routemesh/catalog"
	"github.com/hupe1980/routemesh/classifier"
	"github.com/hupe1980/routemesh/config"
	"github.com/hupe1980/routemesh/core"
	"github.com/hupe1980/routemesh/internal/testutil"
	"github.com/hupe1980/routemesh/model"
	"github.com/hupe1980/routemesh/routing"
)

const topologyYAML = `
levels:
  - name: root
    default_route: support
    entry_route: greeter
    routes:
      - name: greeter
        description: Welcomes new users
      - name: billing
        description: Invoices and payments
      - name: support
        description: Technical problems
`

func TestNew_ValidatesRouting(t *testing.T) {
	c := classifier.Static(testutil.NewClassification().Build())

	_, err := routemesh.New(c, func(o *routemesh.Options) {
		o.Catalog = core.NewCatalog("", "billing")
	})
	assert.ErrorIs(t, err, routing.ErrEmptyDefaultRoute)

	_, err = routemesh.New(c, func(o *routemesh.Options) {
		o.Catalog = core.NewCatalog("", "billing")
		o.Routing.DefaultRoute = "sales"
	})
	assert.ErrorIs(t, err, routing.ErrInvalidDefaultRoute)

	_, err = routemesh.New(nil)
	assert.Error(t, err)
}

func TestRouteMesh_Conversation(t *testing.T) {
	ctx := context.Background()
	script := map[string]core.ClassificationResult{
		"hi":                 testutil.NewClassification().Suggest("greeter").Build(),
		"my invoice is late": testutil.NewClassification().Suggest("billing").Build(),
		"and the other one?": testutil.NewClassification().Suggest("support").Vague().Build(),
		"back to start":      testutil.NewClassification().Suggest("greeter").Build(),
	}
	var lastRecent []core.Message
	c := classifier.Func(func(_ context.Context, req classifier.Request) (core.ClassificationResult, error) {
		lastRecent = req.RecentMessages
		return script[req.Message], nil
	})

	mesh, err := routemesh.New(c, func(o *routemesh.Options) {
		o.Catalog = core.NewCatalog("greeter", "greeter", "billing", "support")
		o.Routing.DefaultRoute = "support"
	})
	require.NoError(t, err)

	steps := []struct {
		msg  string
		want core.RoutingDecision
	}{
		{"hi", core.Switch("greeter", core.RuleColdStart)},
		{"my invoice is late", core.Switch("billing", core.RuleSwitch)},
		{"and the other one?", core.Hold("billing", core.RuleVagueSticky)},
		{"back to start", core.Hold("billing", core.RuleEntryExcluded)},
	}
	for _, step := range steps {
		res, err := mesh.Turn(ctx, "s1", step.msg)
		require.NoError(t, err)
		assert.Equal(t, step.want, res.Decision, step.msg)
		require.NoError(t, mesh.Reply(ctx, "s1", "re: "+step.msg))
	}
	assert.Contains(t, lastRecent, core.AssistantMessage("re: and the other one?"))

	state, err := mesh.RouteState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"greeter", "billing"}, state.RouteHistory)

	require.NoError(t, mesh.LockRoute(ctx, "s1"))
	res, err := mesh.Turn(ctx, "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, core.RuleLocked, res.Decision.Rule)
	require.NoError(t, mesh.UnlockRoute(ctx, "s1"))

	require.NoError(t, mesh.Reset(ctx, "s1"))
	state, err = mesh.RouteState(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, state.CurrentRoute)
}

func TestFromConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("ROUTEMESH_REDIS_ADDR", mr.Addr())

	cfg, err := config.LoadBytes([]byte(`
model:
  provider: mock
intent:
  enabled: true
  categories: [payment, outage]
session:
  backend: redis
logging:
  level: error
metrics:
  enabled: true
`))
	require.NoError(t, err)

	topo, err := catalog.Parse([]byte(topologyYAML))
	require.NoError(t, err)

	m := model.NewMockModel("mock").
		AddResponse(`{"intent":"payment","suggested_route":"billing","confidence":0.95}`).
		AddResponse(`{"intents":["payment"],"confidence":0.9}`)

	reg := prometheus.NewRegistry()
	mesh, err := routemesh.FromConfig(cfg, func(o *routemesh.BuildOptions) {
		o.Topology = topo
		o.Model = m
		o.Registerer = reg
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mesh.Close() })

	res, err := mesh.Turn(context.Background(), "s1", "I need to pay")
	require.NoError(t, err)
	assert.Equal(t, core.Switch("billing", core.RuleColdStart), res.Decision)
	assert.Equal(t, []string{"payment"}, res.Intents.Intents)

	assert.True(t, mr.Exists("routemesh:session:s1"))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestFromConfig_Errors(t *testing.T) {
	cfg, err := config.LoadBytes([]byte("model:\n  provider: mock\n"))
	require.NoError(t, err)

	_, err = routemesh.FromConfig(cfg)
	assert.ErrorContains(t, err, "topology")

	topo, err := catalog.Parse([]byte(topologyYAML))
	require.NoError(t, err)

	_, err = routemesh.FromConfig(cfg, func(o *routemesh.BuildOptions) { o.Topology = topo })
	assert.ErrorContains(t, err, "mock provider")

	cfg.Routing.Level = "team"
	_, err = routemesh.FromConfig(cfg, func(o *routemesh.BuildOptions) {
		o.Topology = topo
		o.Model = model.NewMockModel("mock")
	})
	assert.ErrorIs(t, err, catalog.ErrLevelNotFound)
}
