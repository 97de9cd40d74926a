// Command recoengine runs the recommendation engine: the interaction consumer and the
// operational HTTP server on top of a configured dispatcher.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/rise-and-shine/recoengine/cache"
	"github.com/rise-and-shine/recoengine/cfgloader"
	"github.com/rise-and-shine/recoengine/domain"
	"github.com/rise-and-shine/recoengine/engine"
	"github.com/rise-and-shine/recoengine/http/server"
	"github.com/rise-and-shine/recoengine/http/server/middleware"
	"github.com/rise-and-shine/recoengine/ingest"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/meta"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/pg"
	"github.com/rise-and-shine/recoengine/rediswr"
	"github.com/rise-and-shine/recoengine/tracing"
)

const (
	serviceName     = "recoengine"
	shutdownTimeout = 15 * time.Second
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev" //nolint:gochecknoglobals // build-time value

func main() {
	cfg := cfgloader.MustLoad[engine.Config]()

	logger.SetGlobal(cfg.Logger)
	log := logger.Named("main")
	meta.SetServiceInfo(serviceName, version)

	if err := run(cfg, logger.Global()); err != nil {
		log.Errorx(err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(cfg engine.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitGlobalTracer(ctx, cfg.Tracing, serviceName, version)
	if err != nil {
		return errx.Wrap(err)
	}
	defer shutdown(log, "tracer", shutdownTracer)

	db, err := pg.NewBunDB(ctx, cfg.Postgres, log)
	if err != nil {
		return errx.Wrap(err)
	}
	defer func() { _ = db.Close() }()

	if err = domain.CreateSchema(ctx, db); err != nil {
		return errx.Wrap(err)
	}

	var redisClient redis.UniversalClient
	if cfg.Cache.Driver == cache.DriverRedis {
		redisClient, err = rediswr.Connect(ctx, cfg.Redis)
		if err != nil {
			return errx.Wrap(err)
		}
		defer func() { _ = redisClient.Close() }()
	}

	m := metrics.New()
	e, err := engine.New(ctx, cfg, engine.Deps{
		DB:      db,
		Redis:   redisClient,
		Logger:  log,
		Metrics: m,
	})
	if err != nil {
		return errx.Wrap(err)
	}
	defer func() { _ = e.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if !cfg.Server.Disable {
		srv := server.NewHTTPServer(cfg.Server, middleware.Default(cfg.Server, log))
		srv.RegisterRouter(func(r fiber.Router) {
			server.RegisterOps(r, server.Ops{
				Registry:   m.Registry(),
				Checks:     readinessChecks(db, redisClient),
				Operations: e.Operations,
			})
		})

		g.Go(func() error {
			log.With("address", cfg.Server.Address()).Info("ops server listening")
			return errx.Wrap(srv.Start())
		})
		g.Go(func() error {
			<-gctx.Done()
			return shutdownCtx(func(ctx context.Context) error { return srv.Stop(ctx) })
		})
	}

	if cfg.Ingest.Enabled {
		consumer, cerr := ingest.NewConsumer(cfg.Ingest, e.Dispatcher(), log, m)
		if cerr != nil {
			return errx.Wrap(cerr)
		}

		g.Go(func() error {
			log.With("topic", cfg.Ingest.Topic).Info("ingest consumer started")
			return consumer.Start(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			return consumer.Stop()
		})
	}

	log.Info("recoengine started")
	err = g.Wait()
	log.Info("recoengine stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func readinessChecks(db pinger, redisClient redis.UniversalClient) []server.Check {
	checks := []server.Check{{Name: "postgres", Fn: db.PingContext}}
	if redisClient != nil {
		checks = append(checks, server.Check{Name: "redis", Fn: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	return checks
}

type pinger interface {
	PingContext(ctx context.Context) error
}

func shutdownCtx(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return fn(ctx)
}

func shutdown(log logger.Logger, name string, fn func(ctx context.Context) error) {
	if err := shutdownCtx(fn); err != nil {
		log.With("component", name).Warnx(err)
	}
}
