package routing

import "github.com/hupe1980/routemesh/core"

// RouteResolver maps a trusted classification to a routing decision.
type RouteResolver interface {
	Resolve(c core.ClassificationResult, currentRoute string, catalog core.Catalog) core.RoutingDecision
}

// Resolver is the deterministic route resolution engine bound to a default route.
// It is immutable and safe for concurrent use.
type Resolver struct {
	defaultRoute string
}

var _ RouteResolver = (*Resolver)(nil)

// NewResolver creates a resolver falling back to defaultRoute on cold start.
func NewResolver(defaultRoute string) *Resolver {
	return &Resolver{defaultRoute: defaultRoute}
}

// DefaultRoute returns the cold-start fallback route.
func (r *Resolver) DefaultRoute() string { return r.defaultRoute }

// Resolve implements RouteResolver.
func (r *Resolver) Resolve(c core.ClassificationResult, currentRoute string, catalog core.Catalog) core.RoutingDecision {
	return Resolve(c, currentRoute, catalog.Routes, catalog.EntryRoute, r.defaultRoute)
}

// Resolve applies the resolution rules in order; the first match wins.
// It performs no I/O and returns the same decision for the same inputs.
func Resolve(
	c core.ClassificationResult,
	currentRoute string,
	validRoutes core.RouteSet,
	entryRoute string,
	defaultRoute string,
) core.RoutingDecision {
	// Ambiguous input never moves an active, valid route.
	if c.IsVague && currentRoute != "" && validRoutes.Contains(currentRoute) {
		return core.Hold(currentRoute, core.RuleVagueSticky)
	}

	// Cold start always leaves with some route and counts as a change.
	if currentRoute == "" {
		if validRoutes.Contains(c.SuggestedRoute) {
			return core.Switch(c.SuggestedRoute, core.RuleColdStart)
		}
		return core.Switch(defaultRoute, core.RuleColdStartDefault)
	}

	if !c.RequiresRouteChange {
		return core.Hold(currentRoute, core.RuleNoChange)
	}

	// Once left, the entry route is never re-entered automatically.
	if entryRoute != "" && c.SuggestedRoute == entryRoute && currentRoute != entryRoute {
		return core.Hold(currentRoute, core.RuleEntryExcluded)
	}

	if validRoutes.Contains(c.SuggestedRoute) {
		if c.SuggestedRoute == currentRoute {
			return core.Hold(currentRoute, core.RuleSwitch)
		}
		return core.Switch(c.SuggestedRoute, core.RuleSwitch)
	}

	return core.Hold(currentRoute, core.RuleFallback)
}
