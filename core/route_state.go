package core

// ConversationRouteState is the caller-owned routing state of one session at
// one routing level. The engine reads CurrentRoute at the start of a turn; the
// owner applies the resulting decision exactly once before the next turn.
//
// RouteLocked is never set by the engine. Owners use it to pin a route.
type ConversationRouteState struct {
	CurrentRoute  string   `json:"current_route,omitempty"`
	PreviousRoute string   `json:"previous_route,omitempty"`
	RouteLocked   bool     `json:"route_locked"`
	RouteHistory  []string `json:"route_history,omitempty"`
}

// Apply records a decision. Only a changed decision moves CurrentRoute and
// appends to RouteHistory.
func (s *ConversationRouteState) Apply(d RoutingDecision) {
	if !d.Changed || d.Route == s.CurrentRoute {
		return
	}
	s.PreviousRoute = s.CurrentRoute
	s.CurrentRoute = d.Route
	s.RouteHistory = append(s.RouteHistory, d.Route)
}

// Clone returns a deep copy.
func (s *ConversationRouteState) Clone() *ConversationRouteState {
	if s == nil {
		return nil
	}
	c := *s
	c.RouteHistory = append([]string(nil), s.RouteHistory...)
	return &c
}
