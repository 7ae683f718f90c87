package routemesh

import (
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/routemesh/catalog"
	"github.com/hupe1980/routemesh/classifier"
	"github.com/hupe1980/routemesh/config"
	"github.com/hupe1980/routemesh/intent"
	"github.com/hupe1980/routemesh/logging"
	"github.com/hupe1980/routemesh/metrics"
	"github.com/hupe1980/routemesh/model"
	"github.com/hupe1980/routemesh/model/anthropic"
	"github.com/hupe1980/routemesh/model/openai"
	sessionredis "github.com/hupe1980/routemesh/session/redis"
)

// BuildOptions supplies collaborators FromConfig cannot derive from config.
type BuildOptions struct {
	// Topology overrides routing.topology_file.
	Topology *catalog.Topology
	// Model overrides the model built from the model section. Required for
	// the mock provider.
	Model model.Model
	// Registerer receives the metrics (defaults to prometheus.DefaultRegisterer).
	Registerer prometheus.Registerer
}

// FromConfig assembles a RouteMesh from a loaded configuration: logger,
// topology level, classification model, intent classifier, session backend
// and metrics.
func FromConfig(cfg *config.Config, optFns ...func(o *BuildOptions)) (*RouteMesh, error) {
	var bo BuildOptions
	for _, fn := range optFns {
		fn(&bo)
	}

	logLevel, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewSlogLogger(logLevel, cfg.Logging.Format, cfg.Logging.AddSource).
		WithComponent("routemesh")

	topo := bo.Topology
	if topo == nil {
		if cfg.Routing.TopologyFile == "" {
			return nil, errors.New("no topology: set routing.topology_file")
		}
		if topo, err = catalog.LoadFile(cfg.Routing.TopologyFile); err != nil {
			return nil, err
		}
	}
	level, err := topo.Level(cfg.Routing.Level)
	if err != nil {
		return nil, err
	}

	m := bo.Model
	if m == nil {
		if m, err = newModel(cfg.Model); err != nil {
			return nil, err
		}
	}

	c := classifier.NewLLMClassifier(m, func(o *classifier.LLMOptions) {
		o.Level = level.Name
		o.RoutesDescription = level.Description()
		o.HistoryLimit = cfg.Routing.HistoryLimit
		o.Logger = logger
	})

	var (
		closers []func() error
		setters []func(o *Options)
	)

	if cfg.Intent.Enabled {
		ic := intent.NewClassifier(m, func(o *intent.Options) {
			o.Categories = cfg.Intent.Categories
			o.LookbackMessages = cfg.Intent.LookbackMessages
			o.Logger = logger
		})
		setters = append(setters, func(o *Options) { o.IntentClassifier = ic })
	}

	if cfg.Session.Backend == config.BackendRedis {
		store := sessionredis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			sessionredis.WithPrefix(cfg.Session.Prefix),
			sessionredis.WithTTL(cfg.Session.TTL),
		)
		locker := sessionredis.NewLocker(store.Client(), cfg.Session.Prefix,
			sessionredis.WithLockTTL(cfg.Session.LockTTL),
		)
		closers = append(closers, store.Close)
		setters = append(setters, func(o *Options) {
			o.SessionStore = store
			o.SessionLocker = locker
		})
	}

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(cfg.Metrics.Namespace, bo.Registerer)
		setters = append(setters, func(o *Options) { o.Observer = collector })
	}

	mesh, err := New(c, append([]func(o *Options){func(o *Options) {
		o.Level = level.Name
		o.Catalog = level.Catalog()
		o.Routing = level.RoutingConfig(cfg.Routing.StickinessThreshold)
		o.HistoryLimit = cfg.Routing.HistoryLimit
		o.Logger = logger
	}}, setters...)...)
	if err != nil {
		for _, closeFn := range closers {
			_ = closeFn()
		}
		return nil, err
	}
	mesh.closers = closers

	logger.Info("routemesh ready",
		"model", m.Info().Name,
		"routes", level.Catalog().Routes.Sorted(),
		"default_route", level.DefaultRoute,
		"session_backend", cfg.Session.Backend,
	)
	return mesh, nil
}

func newModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.Name
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.MaxTokens
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Name)
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
		}), nil
	case config.ProviderMock:
		return nil, errors.New("mock provider requires BuildOptions.Model")
	default:
		return nil, fmt.Errorf("unknown model provider: %q", cfg.Provider)
	}
}
