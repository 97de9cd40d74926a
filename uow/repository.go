package uow

import (
	"context"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/events"
	"github.com/rise-and-shine/recoengine/repogen"
	"github.com/uptrace/bun"
)

type repoConfig struct {
	notFoundCode  string
	conflictCodes map[string]string
}

type RepoOption func(*repoConfig)

// WithNotFoundCode sets the code Get returns when nothing matches.
func WithNotFoundCode(code string) RepoOption {
	return func(c *repoConfig) {
		c.notFoundCode = code
	}
}

// WithConflictCodes maps unique constraint names to error codes.
func WithConflictCodes(codes map[string]string) RepoOption {
	return func(c *repoConfig) {
		c.conflictCodes = codes
	}
}

// Repository returns a repository for E bound to the unit's current scope. Obtain it after
// BeginTransaction so reads and writes share the transaction.
func Repository[E any](u *UnitOfWork, opts ...RepoOption) repogen.Repo[E] {
	return newRepo[E](u.DB(), opts...)
}

func newRepo[E any](idb bun.IDB, opts ...RepoOption) *repogen.PgRepo[E] {
	cfg := repoConfig{notFoundCode: repogen.CodeObjectNotFound}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := repogen.NewBuilder[E](idb).WithNotFoundCode(cfg.notFoundCode)
	if cfg.conflictCodes != nil {
		b = b.WithConflictCodes(cfg.conflictCodes)
	}
	return b.Build()
}

// Add queues an insert of entity for the next SaveChanges. Aggregates are tracked for
// event dispatch.
func Add[E any](u *UnitOfWork, entity *E, opts ...RepoOption) {
	u.enqueue(func(ctx context.Context, idb bun.IDB) (int64, error) {
		_, err := newRepo[E](idb, opts...).Create(ctx, entity)
		if err != nil {
			return 0, errx.Wrap(err)
		}
		return 1, nil
	}, aggregateOf(entity))
}

// AddAll queues a bulk insert.
func AddAll[E any](u *UnitOfWork, entities []E, opts ...RepoOption) {
	if len(entities) == 0 {
		return
	}
	u.enqueue(func(ctx context.Context, idb bun.IDB) (int64, error) {
		err := newRepo[E](idb, opts...).BulkCreate(ctx, entities)
		if err != nil {
			return 0, errx.Wrap(err)
		}
		return int64(len(entities)), nil
	}, nil)
}

// Update queues an update of entity for the next SaveChanges. Versioned entities fail the
// save with TRANSACTION_CONFLICT when the stored version moved on.
func Update[E any](u *UnitOfWork, entity *E, opts ...RepoOption) {
	u.enqueue(func(ctx context.Context, idb bun.IDB) (int64, error) {
		_, err := newRepo[E](idb, opts...).Update(ctx, entity)
		if err != nil {
			return 0, errx.Wrap(err)
		}
		return 1, nil
	}, aggregateOf(entity))
}

func aggregateOf(v any) events.Aggregate {
	agg, _ := v.(events.Aggregate)
	return agg
}
