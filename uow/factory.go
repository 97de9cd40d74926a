package uow

import (
	"context"
	"database/sql"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/events"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/result"
	"github.com/uptrace/bun"
)

// Config tunes transactions and conflict retries.
type Config struct {
	// Isolation is one of default, read_committed, repeatable_read, serializable.
	Isolation string `yaml:"isolation" default:"default" validate:"oneof=default read_committed repeatable_read serializable"`
	// ConflictRetries is the number of attempts Execute makes on TRANSACTION_CONFLICT.
	ConflictRetries uint          `yaml:"conflict_retries" default:"3" validate:"gte=1"`
	RetryDelay      time.Duration `yaml:"retry_delay"      default:"20ms"`
}

func (c Config) txOptions() *sql.TxOptions {
	switch c.Isolation {
	case "read_committed":
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	case "repeatable_read":
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	case "serializable":
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	default:
		return nil
	}
}

// Factory creates units of work sharing one database, publisher and logger.
type Factory struct {
	cfg       Config
	db        *bun.DB
	publisher events.Publisher
	log       logger.Logger
	metrics   *metrics.Metrics
}

type FactoryOption func(*Factory)

func WithMetrics(m *metrics.Metrics) FactoryOption {
	return func(f *Factory) {
		f.metrics = m
	}
}

func NewFactory(cfg Config, db *bun.DB, publisher events.Publisher, log logger.Logger, opts ...FactoryOption) *Factory {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if cfg.ConflictRetries == 0 {
		cfg.ConflictRetries = 1
	}
	f := &Factory{
		cfg:       cfg,
		db:        db,
		publisher: publisher,
		log:       log.Named("uow"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// New returns a fresh idle unit of work.
func (f *Factory) New() *UnitOfWork {
	return &UnitOfWork{
		db:        f.db,
		txOpts:    f.cfg.txOptions(),
		publisher: f.publisher,
		log:       f.log,
		metrics:   f.metrics,
	}
}

// DB returns the underlying database for read-only access outside any unit.
func (f *Factory) DB() *bun.DB {
	return f.db
}

// Execute runs fn in a new unit of work per attempt and retries on TRANSACTION_CONFLICT.
// Every attempt starts from a clean unit, so fn must reload what it modifies.
func Execute[T any](
	ctx context.Context,
	f *Factory,
	fn func(ctx context.Context, u *UnitOfWork) (T, error),
) result.Result[T] {
	var res result.Result[T]

	_ = retry.Do(
		func() error {
			res = ExecuteInTransaction(ctx, f.New(), fn)
			if res.IsFail() {
				return res.Err()
			}
			return nil
		},
		retry.Attempts(f.cfg.ConflictRetries),
		retry.Delay(f.cfg.RetryDelay),
		retry.MaxJitter(f.cfg.RetryDelay/2+time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errx.IsCodeIn(err, CodeTransactionConflict)
		}),
		retry.OnRetry(func(n uint, err error) {
			f.log.WithContext(ctx).
				With("attempt", n+1, "max_attempts", f.cfg.ConflictRetries).
				Warnx(err)
		}),
		retry.Context(ctx),
	)

	return res
}
