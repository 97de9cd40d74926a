// Package pg provides PostgreSQL connections through pgx and the Bun ORM,
// together with error classification helpers and shared model fields.
package pg

import (
	"context"

	"github.com/code19m/errx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/pg/hooks"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/extra/bunotel"
)

// NewBunDB opens a pgx pool, checks it with a ping and wraps it in Bun with the query hooks.
func NewBunDB(ctx context.Context, cfg Config, log logger.Logger) (*bun.DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.dsn())
	if err != nil {
		return nil, errx.Wrap(err)
	}
	poolConfig.MaxConns = cfg.PoolMaxConns
	poolConfig.MinConns = cfg.PoolMinConns
	poolConfig.MaxConnIdleTime = cfg.PoolMaxConnIdleTime
	poolConfig.MaxConnLifetime = cfg.PoolMaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"host": cfg.Host, "database": cfg.Database}))
	}

	bunDB := bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New())
	ApplyHooks(bunDB, cfg, log)

	return bunDB, nil
}

// ApplyHooks adds the query log hook and the OpenTelemetry hook to db.
// The log hook is silent unless cfg.Debug is set or a query is slow or fails.
func ApplyHooks(db *bun.DB, cfg Config, log logger.Logger) {
	db.AddQueryHook(hooks.NewQueryLog(log,
		hooks.WithVerbose(cfg.Debug),
		hooks.WithSlowQueryThreshold(cfg.SlowQueryThreshold),
	))
	db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName(cfg.Database)))
}
