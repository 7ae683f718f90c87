package core

import "math"

// ClassificationResult is the structured, confidence-scored guess an external
// classifier produces for a single turn. It is treated as immutable once returned.
//
// SuggestedRoute may be empty or name a route outside the current catalog; the
// engine tolerates both and never trusts it blindly.
type ClassificationResult struct {
	Label               string  `json:"intent"`
	SuggestedRoute      string  `json:"suggested_route"`
	Confidence          float64 `json:"confidence"`
	IsVague             bool    `json:"is_vague"`
	RequiresRouteChange bool    `json:"requires_route_change"`
}

// Validate checks the classifier contract. Out-of-range confidence is reported,
// never clamped.
func (c ClassificationResult) Validate() error {
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return &InvalidClassificationError{
			Field:   "confidence",
			Value:   c.Confidence,
			Message: "must be within [0.0, 1.0]",
		}
	}
	return nil
}
