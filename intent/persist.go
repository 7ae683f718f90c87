package intent

import "github.com/hupe1980/routemesh/core"

// Persist returns current with its intent labels replaced by previous when
// current has none. Entities and confidence of the current turn pass through.
// Neither argument is mutated and the result never aliases them.
func Persist(current core.IntentSet, previous []string) core.IntentSet {
	out := current.Clone()
	if len(out.Intents) == 0 {
		out.Intents = append([]string{}, previous...)
	}
	return out
}
