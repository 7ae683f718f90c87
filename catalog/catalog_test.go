package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
        description: Invoices, payments and refunds
      - name: support
        description: Technical problems
  - name: billing
    default_route: invoices
    stickiness_threshold: 0.5
    routes:
      - name: invoices
      - name: refunds
`

func TestParse(t *testing.T) {
	topo, err := Parse([]byte(topologyYAML))
	require.NoError(t, err)
	require.Len(t, topo.Levels, 2)

	root, err := topo.Level("root")
	require.NoError(t, err)

	cat := root.Catalog()
	assert.Equal(t, "greeter", cat.EntryRoute)
	assert.Equal(t, []string{"billing", "greeter", "support"}, cat.Routes.Sorted())
	assert.Equal(t,
		"- greeter: Welcomes new users\n- billing: Invoices, payments and refunds\n- support: Technical problems",
		root.Description(),
	)

	cfg := root.RoutingConfig(routing.DefaultStickinessThreshold)
	assert.Equal(t, "support", cfg.DefaultRoute)
	assert.Equal(t, routing.DefaultStickinessThreshold, cfg.StickinessThreshold)

	sub, err := topo.Level("billing")
	require.NoError(t, err)
	assert.Equal(t, 0.5, sub.RoutingConfig(0.7).StickinessThreshold)
	assert.Equal(t, "- invoices\n- refunds", sub.Description())

	_, err = topo.Level("missing")
	assert.ErrorIs(t, err, ErrLevelNotFound)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
		msg     string
	}{
		{name: "no levels", yaml: "levels: []", wantErr: ErrNoLevels},
		{
			name:    "empty default",
			yaml:    "levels:\n  - name: root\n    routes:\n      - name: a\n",
			wantErr: routing.ErrEmptyDefaultRoute,
		},
		{
			name:    "unknown default",
			yaml:    "levels:\n  - name: root\n    default_route: b\n    routes:\n      - name: a\n",
			wantErr: routing.ErrInvalidDefaultRoute,
		},
		{
			name:    "unknown entry",
			yaml:    "levels:\n  - name: root\n    default_route: a\n    entry_route: x\n    routes:\n      - name: a\n",
			wantErr: ErrUnknownEntryRoute,
		},
		{
			name: "duplicate route",
			yaml: "levels:\n  - name: root\n    default_route: a\n    routes:\n      - name: a\n      - name: a\n",
			msg:  "duplicate route",
		},
		{
			name: "duplicate level",
			yaml: "levels:\n  - name: root\n    default_route: a\n  - name: root\n    default_route: a\n",
			msg:  "duplicate level",
		},
		{
			name:    "bad threshold",
			yaml:    "levels:\n  - name: root\n    default_route: a\n    stickiness_threshold: 2\n",
			wantErr: routing.ErrInvalidThreshold,
		},
		{name: "malformed", yaml: "levels: [", msg: "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestLevel_EmptyCatalogIsValid(t *testing.T) {
	l := Level{Name: "root", DefaultRoute: "fallback"}
	assert.NoError(t, l.Validate())
	assert.Zero(t, l.Catalog().Routes.Len())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(topologyYAML), 0o600))

	topo, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, topo.Levels, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
