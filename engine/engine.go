// Package engine wires the configured components into a ready dispatcher.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/code19m/errx"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/rise-and-shine/recoengine/cache"
	"github.com/rise-and-shine/recoengine/cqrs"
	"github.com/rise-and-shine/recoengine/events"
	"github.com/rise-and-shine/recoengine/experiment"
	"github.com/rise-and-shine/recoengine/featurestore"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/recommend"
	"github.com/rise-and-shine/recoengine/selector"
	"github.com/rise-and-shine/recoengine/strategy"
	"github.com/rise-and-shine/recoengine/uow"
)

// Deps are the connections the engine does not own.
type Deps struct {
	DB *bun.DB
	// Redis is required by the redis cache driver only.
	Redis redis.UniversalClient
	// Publisher replaces the one built from Config.Events.
	Publisher events.Publisher
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	Clock     func() time.Time
}

// Engine owns the components built by New.
type Engine struct {
	dispatcher *cqrs.Dispatcher
	registry   *cqrs.Registry
	cache      cache.Cache
	publisher  events.Publisher
	subscriber message.Subscriber
	closers    []func() error
}

// New builds the cache, publisher, unit of work factory, feature store, experiment service,
// strategy registry, selector, pipeline, handlers and dispatcher, in that order.
func New(ctx context.Context, cfg Config, deps Deps) (*Engine, error) {
	if deps.DB == nil {
		return nil, errx.New("[engine] database is required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	if err := deps.DB.PingContext(ctx); err != nil {
		return nil, errx.Wrap(err)
	}

	e := &Engine{}
	ok := false
	defer func() {
		if !ok {
			_ = e.Close()
		}
	}()

	var err error
	e.cache, err = e.newCache(cfg.Cache, deps.Redis)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	deps.Metrics.RegisterCache(e.cache)

	e.publisher, err = e.newPublisher(cfg.Events, deps.Publisher, log)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	units := uow.NewFactory(cfg.UnitOfWork, deps.DB, e.publisher, log, uow.WithMetrics(deps.Metrics))

	features := featurestore.NewCached(featurestore.NewPgStore(deps.DB), e.cache, cfg.Cache.FeaturesTTL)

	expOpts := []experiment.Option{experiment.WithCache(e.cache, cfg.Cache.FeaturesTTL)}
	if deps.Clock != nil {
		expOpts = append(expOpts, experiment.WithClock(deps.Clock))
	}
	experiments := experiment.NewService(deps.DB, log, expOpts...)

	strategyDeps := strategy.Deps{
		Config:      cfg.Strategies,
		Performance: strategy.NewBunPerformanceSource(deps.DB),
		Logger:      log,
	}
	if cfg.Strategies.Embedding.Endpoint != "" {
		strategyDeps.Model = strategy.NewHTTPModelClient(cfg.Strategies.Embedding, log)
	}
	strategies, err := strategy.DefaultRegistryBuilder().Build(strategyDeps)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	sel, err := selector.New(strategies, features, experiments, cfg.Selector, log, deps.Metrics)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	p, err := recommend.NewPipeline(recommend.PipelineDeps{
		Config:   cfg.Recommend,
		Features: features,
		Selector: sel,
		Cache:    e.cache,
		Served:   recommend.NewBunServedCounter(deps.DB),
		Logger:   log,
		Metrics:  deps.Metrics,
		Clock:    deps.Clock,
	})
	if err != nil {
		return nil, errx.Wrap(err)
	}

	handlers := recommend.NewHandlers(recommend.HandlerDeps{
		Config:   cfg.Recommend,
		Pipeline: p,
		Units:    units,
		Cache:    e.cache,
		Ranker:   sel,
		Logger:   log,
		Clock:    deps.Clock,
	})

	b := cqrs.NewRegistryBuilder()
	handlers.Register(b, log)
	e.registry, err = b.Build()
	if err != nil {
		return nil, errx.Wrap(err)
	}
	e.dispatcher = cqrs.NewDispatcher(e.registry, log, deps.Metrics)

	log.Named("engine").With("operations", e.registry.Operations()).Info("engine ready")

	ok = true
	return e, nil
}

func (e *Engine) newCache(cfg cache.Config, client redis.UniversalClient) (cache.Cache, error) {
	switch cfg.Driver {
	case cache.DriverRedis:
		if client == nil {
			return nil, errx.New("[engine] redis cache driver needs a redis client")
		}
		return cache.NewRedis(client, cfg.KeyPrefix), nil
	default:
		mem := cache.NewMemory(cfg.JanitorInterval)
		e.closers = append(e.closers, mem.Close)
		return mem, nil
	}
}

func (e *Engine) newPublisher(cfg events.Config, override events.Publisher, log logger.Logger) (events.Publisher, error) {
	if override != nil {
		return override, nil
	}

	adapter := events.NewLoggerAdapter(log.Named("events"))

	var pub message.Publisher
	switch cfg.Driver {
	case events.DriverKafka:
		kafkaPub, err := events.NewKafkaPublisher(cfg, adapter)
		if err != nil {
			return nil, errx.Wrap(err)
		}
		pub = kafkaPub
	default:
		ch := events.NewInProcess(adapter)
		e.subscriber = ch
		pub = ch
	}

	wp := events.NewWatermillPublisher(pub, cfg.TopicPrefix)
	e.closers = append(e.closers, wp.Close)
	return wp, nil
}

// Dispatcher is the entry point for every command and query.
func (e *Engine) Dispatcher() *cqrs.Dispatcher { return e.dispatcher }

// Operations lists the registered operation ids.
func (e *Engine) Operations() []string { return e.registry.Operations() }

func (e *Engine) Cache() cache.Cache { return e.cache }

// Subscriber receives published events when the in-process driver is used. It is nil otherwise.
func (e *Engine) Subscriber() message.Subscriber { return e.subscriber }

// Close releases what New created, in reverse order.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errx.Wrap(errors.Join(errs...))
}
