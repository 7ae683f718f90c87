package classifier

import (
	"context"

	"github.com/hupe1980/routemesh/core"
)

// Request is the input of a single classification call.
type Request struct {
	Message        string
	CurrentRoute   string
	RecentMessages []core.Message
}

// Classifier produces a ClassificationResult for one turn. Implementations may
// block on network I/O and must honour ctx. An empty RecentMessages slice is valid.
type Classifier interface {
	Classify(ctx context.Context, req Request) (core.ClassificationResult, error)
}

// Func adapts an ordinary function to the Classifier interface.
type Func func(ctx context.Context, req Request) (core.ClassificationResult, error)

// Classify implements Classifier.
func (f Func) Classify(ctx context.Context, req Request) (core.ClassificationResult, error) {
	return f(ctx, req)
}

// Static returns a Classifier that always yields res. Useful for tests and for
// deployments that pin a route.
func Static(res core.ClassificationResult) Classifier {
	return Func(func(context.Context, Request) (core.ClassificationResult, error) {
		return res, nil
	})
}
