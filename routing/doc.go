// Package routing implements the route resolution engine and the stickiness
// layer wrapped around it.
//
// Resolution is split in two stages:
//
//   - StickyRouter owns the (blocking) classifier call and applies a tunable
//     confidence gate: a low-confidence signal never reaches the resolver while
//     a valid route is active.
//   - Resolver applies an ordered list of deterministic rules to a trusted
//     classification. The order is part of the contract; the rules overlap and
//     reordering them changes behaviour:
//
//     1. vague message + valid current route      -> hold
//     2. no current route                          -> suggested route if valid, else default (changed)
//     3. no route change requested                 -> hold
//     4. suggestion is the entry route, already left -> hold
//     5. suggested route is valid                  -> switch
//     6. anything else                             -> hold
//
// Neither stage keeps state between calls; all conversation state lives in the
// caller-owned core.ConversationRouteState.
package routing
