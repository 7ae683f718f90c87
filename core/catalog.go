package core

import "sort"

// RouteSet is a set of route identifiers with O(1) membership checks.
// The zero value is an empty, usable set.
type RouteSet map[string]struct{}

// NewRouteSet builds a RouteSet from the given identifiers. Empty identifiers are ignored.
func NewRouteSet(routes ...string) RouteSet {
	s := make(RouteSet, len(routes))
	for _, r := range routes {
		if r == "" {
			continue
		}
		s[r] = struct{}{}
	}
	return s
}

// Contains reports whether route is a member of the set.
func (s RouteSet) Contains(route string) bool {
	if route == "" {
		return false
	}
	_, ok := s[route]
	return ok
}

// Len returns the number of routes in the set.
func (s RouteSet) Len() int { return len(s) }

// Sorted returns the members in lexical order.
func (s RouteSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Catalog is the set of routes valid in the current conversational scope plus
// the optional entry route the conversation started in. Callers supply it
// fresh each turn; the engine never mutates it.
type Catalog struct {
	Routes     RouteSet
	EntryRoute string
}

// NewCatalog is a convenience constructor.
func NewCatalog(entryRoute string, routes ...string) Catalog {
	return Catalog{Routes: NewRouteSet(routes...), EntryRoute: entryRoute}
}
