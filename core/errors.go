package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidClassification is returned when a classifier result violates
	// its contract (confidence out of range, missing required field).
	ErrInvalidClassification = errors.New("invalid classification")

	// ErrSessionNotFound is returned by stores that do not create sessions lazily.
	ErrSessionNotFound = errors.New("session not found")

	// ErrLockLost is returned when a session lock expired or was taken over
	// while its holder still worked on the session.
	ErrLockLost = errors.New("session lock lost")
)

// InvalidClassificationError describes which field of a ClassificationResult
// broke the classifier contract. It matches ErrInvalidClassification via errors.Is.
type InvalidClassificationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *InvalidClassificationError) Error() string {
	return fmt.Sprintf("invalid classification: field '%s': %s", e.Field, e.Message)
}

// Is reports whether target is ErrInvalidClassification.
func (e *InvalidClassificationError) Is(target error) bool {
	return target == ErrInvalidClassification
}
