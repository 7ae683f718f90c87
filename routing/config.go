package routing

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/routemesh/core"
)

var (
	// ErrEmptyDefaultRoute is returned when no cold-start fallback is configured.
	ErrEmptyDefaultRoute = errors.New("default route is empty")

	// ErrInvalidDefaultRoute is returned when the default route is not in a
	// non-empty catalog.
	ErrInvalidDefaultRoute = errors.New("default route is not in the catalog")

	// ErrInvalidThreshold is returned for a stickiness threshold outside [0,1].
	ErrInvalidThreshold = errors.New("stickiness threshold must be within [0.0, 1.0]")
)

// Validate checks cfg against the routes it will serve. An empty routes set
// skips the membership check.
func (c Config) Validate(routes core.RouteSet) error {
	if c.DefaultRoute == "" {
		return ErrEmptyDefaultRoute
	}
	if routes.Len() > 0 && !routes.Contains(c.DefaultRoute) {
		return fmt.Errorf("%w: %q", ErrInvalidDefaultRoute, c.DefaultRoute)
	}
	if math.IsNaN(c.StickinessThreshold) || c.StickinessThreshold < 0 || c.StickinessThreshold > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, c.StickinessThreshold)
	}
	return nil
}
