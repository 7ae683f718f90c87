package routing

import (
	"context"
	"fmt"

	"github.com/hupe1980/routemesh/classifier"
	"github.com/hupe1980/routemesh/core"
	"github.com/hupe1980/routemesh/logging"
)

// DefaultStickinessThreshold is the confidence below which an active, valid
// route is kept without consulting the resolver.
const DefaultStickinessThreshold = 0.7

// Config holds the tunables shared by the resolver and the sticky router.
type Config struct {
	// DefaultRoute is the cold-start fallback route.
	DefaultRoute string
	// StickinessThreshold gates low-confidence classifications.
	StickinessThreshold float64
}

// DefaultConfig provides the default stickiness threshold. DefaultRoute has no
// sensible default and must be supplied by the caller.
var DefaultConfig = Config{
	StickinessThreshold: DefaultStickinessThreshold,
}

// RouteRequest carries the per-turn inputs of StickyRouter.Route.
type RouteRequest struct {
	Message        string
	CurrentRoute   string
	Catalog        core.Catalog
	RecentMessages []core.Message
}

// StickyOptions configures a StickyRouter.
type StickyOptions struct {
	StickinessThreshold float64
	Logger              logging.Logger
}

// StickyRouter wraps a classifier and a resolver, adding a confidence gate in
// front of the deterministic rules. It holds no per-session state.
type StickyRouter struct {
	classifier classifier.Classifier
	resolver   RouteResolver
	threshold  float64
	logger     logging.Logger
}

// NewStickyRouter creates a sticky router.
func NewStickyRouter(c classifier.Classifier, r RouteResolver, optFns ...func(o *StickyOptions)) *StickyRouter {
	opts := StickyOptions{
		StickinessThreshold: DefaultStickinessThreshold,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &StickyRouter{
		classifier: c,
		resolver:   r,
		threshold:  opts.StickinessThreshold,
		logger:     opts.Logger,
	}
}

// New builds a StickyRouter and its Resolver from cfg.
func New(c classifier.Classifier, cfg Config, logger logging.Logger) *StickyRouter {
	return NewStickyRouter(c, NewResolver(cfg.DefaultRoute), func(o *StickyOptions) {
		o.StickinessThreshold = cfg.StickinessThreshold
		o.Logger = logger
	})
}

// Threshold returns the configured stickiness threshold.
func (s *StickyRouter) Threshold() float64 { return s.threshold }

// Route classifies the message and resolves the next route.
//
// Classifier errors, including context cancellation, are returned wrapped and
// no decision is made. Results violating the classifier contract are rejected
// with core.ErrInvalidClassification before any rule runs.
func (s *StickyRouter) Route(ctx context.Context, req RouteRequest) (core.RoutingDecision, error) {
	c, err := s.classifier.Classify(ctx, classifier.Request{
		Message:        req.Message,
		CurrentRoute:   req.CurrentRoute,
		RecentMessages: req.RecentMessages,
	})
	if err != nil {
		return core.RoutingDecision{}, fmt.Errorf("route classification: %w", err)
	}
	if err := c.Validate(); err != nil {
		return core.RoutingDecision{}, err
	}

	if req.CurrentRoute != "" && req.Catalog.Routes.Contains(req.CurrentRoute) && c.Confidence < s.threshold {
		s.logger.Debug("low confidence, keeping route",
			"route", req.CurrentRoute,
			"confidence", c.Confidence,
			"threshold", s.threshold,
		)
		return core.Hold(req.CurrentRoute, core.RuleLowConfidence), nil
	}

	d := s.resolver.Resolve(c, req.CurrentRoute, req.Catalog)
	logging.LogDecision(s.logger, req.CurrentRoute, d.Route, d.Changed, string(d.Rule),
		"suggested_route", c.SuggestedRoute,
		"confidence", c.Confidence,
	)
	return d, nil
}
