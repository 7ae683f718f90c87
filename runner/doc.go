// Package runner orchestrates routing turns for conversations.
//
// A turn loads the session, appends the user message, asks the router for a
// decision, applies it to the session's route state, optionally classifies
// and persists intents, then saves the session. Turns of one session are
// strictly sequential; the SessionLocker serializes them across goroutines
// (MutexLocker) or processes (the redis locker). Different sessions proceed
// in parallel.
//
// Classifier failures never fail a turn: the current route is held and the
// result is marked degraded. Storage and lock errors are returned.
package runner
