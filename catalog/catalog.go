// Package catalog loads the routing topology: one or more routing levels,
// each with its routes, a cold-start default and an optional entry route.
//
// Example topology file:
//
//	levels:
//	  - name: root
//	    default_route: support
//	    entry_route: greeter
//	    stickiness_threshold: 0.7
//	    routes:
//	      - name: billing
//	        description: Invoices, payments and refunds
//	      - name: support
//	        description: Technical problems
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/routemesh/core"
	"github.com/hupe1980/routemesh/routing"
)

var (
	// ErrNoLevels is returned for a topology without levels.
	ErrNoLevels = errors.New("topology has no levels")

	// ErrLevelNotFound is returned by Topology.Level for unknown names.
	ErrLevelNotFound = errors.New("level not found")

	// ErrUnknownEntryRoute is returned when the entry route is not a route of its level.
	ErrUnknownEntryRoute = errors.New("entry route is not in the catalog")
)

// Route is one specialised handler a level can route to.
type Route struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Level is one routing decision point.
type Level struct {
	Name         string  `yaml:"name" json:"name"`
	DefaultRoute string  `yaml:"default_route" json:"default_route"`
	EntryRoute   string  `yaml:"entry_route,omitempty" json:"entry_route,omitempty"`
	Routes       []Route `yaml:"routes" json:"routes"`
	// StickinessThreshold overrides the router default when set.
	StickinessThreshold *float64 `yaml:"stickiness_threshold,omitempty" json:"stickiness_threshold,omitempty"`
}

// Catalog returns the per-turn catalog of the level.
func (l Level) Catalog() core.Catalog {
	names := make([]string, 0, len(l.Routes))
	for _, r := range l.Routes {
		names = append(names, r.Name)
	}
	return core.NewCatalog(l.EntryRoute, names...)
}

// Description renders the routes as "- name: description" lines for prompts.
func (l Level) Description() string {
	var b strings.Builder
	for i, r := range l.Routes {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(r.Name)
		if r.Description != "" {
			b.WriteString(": ")
			b.WriteString(r.Description)
		}
	}
	return b.String()
}

// RoutingConfig returns the router configuration of the level, using
// defaultThreshold when the level does not override it.
func (l Level) RoutingConfig(defaultThreshold float64) routing.Config {
	cfg := routing.Config{
		DefaultRoute:        l.DefaultRoute,
		StickinessThreshold: defaultThreshold,
	}
	if l.StickinessThreshold != nil {
		cfg.StickinessThreshold = *l.StickinessThreshold
	}
	return cfg
}

// Validate fails when the default route is empty or unknown, when the entry
// route is unknown, or when route names are empty or duplicated.
func (l Level) Validate() error {
	if l.Name == "" {
		return errors.New("level name is empty")
	}
	seen := make(map[string]struct{}, len(l.Routes))
	for _, r := range l.Routes {
		if r.Name == "" {
			return fmt.Errorf("level %q: route name is empty", l.Name)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("level %q: duplicate route %q", l.Name, r.Name)
		}
		seen[r.Name] = struct{}{}
	}

	cat := l.Catalog()
	if l.EntryRoute != "" && cat.Routes.Len() > 0 && !cat.Routes.Contains(l.EntryRoute) {
		return fmt.Errorf("level %q: %w: %q", l.Name, ErrUnknownEntryRoute, l.EntryRoute)
	}

	threshold := routing.DefaultStickinessThreshold
	if err := l.RoutingConfig(threshold).Validate(cat.Routes); err != nil {
		return fmt.Errorf("level %q: %w", l.Name, err)
	}
	return nil
}

// Topology is the full routing topology.
type Topology struct {
	Levels []Level `yaml:"levels" json:"levels"`
}

// Level returns the level with the given name.
func (t *Topology) Level(name string) (Level, error) {
	for _, l := range t.Levels {
		if l.Name == name {
			return l, nil
		}
	}
	return Level{}, fmt.Errorf("%w: %q", ErrLevelNotFound, name)
}

// Validate validates every level and rejects duplicate level names.
func (t *Topology) Validate() error {
	if len(t.Levels) == 0 {
		return ErrNoLevels
	}
	seen := make(map[string]struct{}, len(t.Levels))
	for _, l := range t.Levels {
		if err := l.Validate(); err != nil {
			return err
		}
		if _, dup := seen[l.Name]; dup {
			return fmt.Errorf("duplicate level %q", l.Name)
		}
		seen[l.Name] = struct{}{}
	}
	return nil
}

// Parse decodes and validates a YAML topology.
func Parse(data []byte) (*Topology, error) {
	var t Topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	return &t, nil
}

// LoadFile reads and parses a topology file.
func LoadFile(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology: %w", err)
	}
	return Parse(data)
}
