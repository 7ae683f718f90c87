// Package classifier defines the capability the routing engine consumes to
// obtain a ClassificationResult for a turn, plus a model-backed implementation.
//
// The engine never sees a partially decoded or out-of-contract result: every
// implementation in this package validates at the boundary and fails fast with
// core.ErrInvalidClassification. Transport failures and context cancellation
// are returned unmodified (wrapped) so callers can decide how to degrade.
package classifier
