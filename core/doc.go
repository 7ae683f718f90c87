// Package core provides the foundational domain types shared by the routing
// engine, the classifier adapters and the turn runner. It defines:
//
//   - ClassificationResult (the per-turn output of an external classifier)
//   - RouteSet / Catalog (the routes valid in the current conversational scope)
//   - RoutingDecision (the engine output, including the rule that produced it)
//   - ConversationRouteState / Session (caller owned per-session state)
//   - IntentSet (multi-label intents carried turn to turn)
//
// The package keeps implementation concerns (model calls, persistence, turn
// orchestration) out of scope and exposes small interfaces so storage backends
// and classifiers can be swapped without touching the engine.
package core
