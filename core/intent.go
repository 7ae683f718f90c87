package core

// IntentSet is the multi-label intent classification for one turn.
type IntentSet struct {
	Intents    []string          `json:"intents"`
	Entities   map[string]string `json:"entities"`
	Confidence float64           `json:"confidence"`
}

// Clone returns a deep copy with a non-nil entity map.
func (s IntentSet) Clone() IntentSet {
	c := IntentSet{
		Intents:    append([]string(nil), s.Intents...),
		Entities:   make(map[string]string, len(s.Entities)),
		Confidence: s.Confidence,
	}
	for k, v := range s.Entities {
		c.Entities[k] = v
	}
	return c
}
