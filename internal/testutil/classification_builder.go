package testutil

import "github.com/hupe1980/routemesh/core"

// ClassificationBuilder provides a fluent helper for constructing
// classification results in tests.
// Example:
//
//	c := NewClassification().Suggest("billing").Confidence(0.4).Vague().Build()
//
// Defaults: label "test", confidence 0.9, route change requested, not vague.
type ClassificationBuilder struct {
	res core.ClassificationResult
}

// NewClassification creates a builder with confident, change-requesting defaults.
func NewClassification() *ClassificationBuilder {
	return &ClassificationBuilder{res: core.ClassificationResult{
		Label:               "test",
		Confidence:          0.9,
		RequiresRouteChange: true,
	}}
}

// Label sets the classified intent label (chainable).
func (b *ClassificationBuilder) Label(l string) *ClassificationBuilder { b.res.Label = l; return b }

// Suggest sets the suggested route (chainable).
func (b *ClassificationBuilder) Suggest(route string) *ClassificationBuilder {
	b.res.SuggestedRoute = route
	return b
}

// Confidence sets the confidence score (chainable).
func (b *ClassificationBuilder) Confidence(c float64) *ClassificationBuilder {
	b.res.Confidence = c
	return b
}

// Vague marks the message as ambiguous (chainable).
func (b *ClassificationBuilder) Vague() *ClassificationBuilder { b.res.IsVague = true; return b }

// KeepRoute clears the route change request (chainable).
func (b *ClassificationBuilder) KeepRoute() *ClassificationBuilder {
	b.res.RequiresRouteChange = false
	return b
}

// Build returns the core.ClassificationResult value.
func (b *ClassificationBuilder) Build() core.ClassificationResult { return b.res }
