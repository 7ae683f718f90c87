// Package intent carries multi-label intent classification across turns.
//
// Persist is the pure carry-forward rule: when the current turn yields no
// intent labels, the labels of the previous turn are kept so that a single
// ambiguous utterance does not wipe out established context. Entities are
// never backfilled.
//
// Classifier is a model-backed multi-intent classifier applying Persist, and
// RequiresIntentHook lets callers mark tools that need intents classified
// before they run.
package intent
