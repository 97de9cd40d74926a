// Package uow implements the unit of work: a transaction boundary that owns repository
// access, flushes tracked changes and dispatches domain events only after a successful commit.
//
// A UnitOfWork moves from idle to transaction-open on BeginTransaction and ends in
// committed or rolled-back. Terminal states are final; take a new unit from the Factory.
package uow

import (
	"context"
	"database/sql"
	"sync"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/events"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/pg"
	"github.com/rise-and-shine/recoengine/repogen"
	"github.com/uptrace/bun"
)

const (
	CodeTransactionAlreadyOpen = "TRANSACTION_ALREADY_OPEN"
	CodeUnitOfWorkClosed       = "UNIT_OF_WORK_CLOSED"
	CodeTransactionConflict    = repogen.CodeTransactionConflict
)

type State int

const (
	StateIdle State = iota
	StateOpen
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "transaction_open"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// change is a queued write executed by SaveChanges.
type change func(ctx context.Context, idb bun.IDB) (int64, error)

// UnitOfWork is not safe for concurrent use. Each logical operation takes its own.
type UnitOfWork struct {
	db        *bun.DB
	txOpts    *sql.TxOptions
	publisher events.Publisher
	log       logger.Logger
	metrics   *metrics.Metrics

	mu       sync.Mutex
	state    State
	tx       bun.Tx
	pending  []change
	tracked  []events.Aggregate
	deferred []events.Event
}

// State returns the current lifecycle state.
func (u *UnitOfWork) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// BeginTransaction opens a transaction. It fails if one is already open or the unit
// has already been committed or rolled back.
func (u *UnitOfWork) BeginTransaction(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch u.state {
	case StateOpen:
		return errx.New("transaction is already open",
			errx.WithCode(CodeTransactionAlreadyOpen),
			errx.WithType(errx.T_Conflict),
		)
	case StateCommitted, StateRolledBack:
		return errx.New("unit of work is closed",
			errx.WithCode(CodeUnitOfWorkClosed),
			errx.WithType(errx.T_Conflict),
			errx.WithDetails(errx.D{"state": u.state.String()}),
		)
	case StateIdle:
	}

	tx, err := u.db.BeginTx(ctx, u.txOpts)
	if err != nil {
		return errx.Wrap(err)
	}

	u.tx = tx
	u.state = StateOpen
	return nil
}

// CommitTransaction commits the open transaction and then publishes the events
// deferred by SaveChangesAndDispatchEvents. Without an open transaction it is a no-op.
// A cancelled ctx rolls back instead of committing.
func (u *UnitOfWork) CommitTransaction(ctx context.Context) error {
	u.mu.Lock()
	if u.state != StateOpen {
		u.mu.Unlock()
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		u.mu.Unlock()
		rbErr := u.RollbackTransaction(context.WithoutCancel(ctx))
		if rbErr != nil {
			u.log.WithContext(ctx).Errorx(errx.Wrap(rbErr))
		}
		return errx.Wrap(ctxErr, errx.WithDetails(errx.D{"reason": "context done before commit"}))
	}

	err := u.tx.Commit()
	if err != nil {
		u.state = StateRolledBack
		u.clear()
		u.mu.Unlock()
		if pg.IsSerializationFailure(err) || pg.IsConflict(err) {
			u.metrics.IncUnitOfWork(metrics.OutcomeConflict)
			return errx.Wrap(err, errx.WithCode(CodeTransactionConflict), errx.WithType(errx.T_Conflict))
		}
		u.metrics.IncUnitOfWork(metrics.OutcomeFailure)
		return errx.Wrap(err)
	}

	u.state = StateCommitted
	toPublish := u.deferred
	u.clear()
	u.mu.Unlock()

	u.metrics.IncUnitOfWork(metrics.OutcomeSuccess)
	u.publish(ctx, toPublish)
	return nil
}

// RollbackTransaction discards the open transaction, its queued changes and its deferred
// events. Without an open transaction it is a no-op.
func (u *UnitOfWork) RollbackTransaction(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state != StateOpen {
		return nil
	}

	u.state = StateRolledBack
	u.clear()
	u.metrics.IncUnitOfWork(metrics.OutcomeRollback)

	err := u.tx.Rollback()
	if err != nil {
		return errx.Wrap(err)
	}
	return nil
}

// Track registers an aggregate whose buffered events are dispatched by
// SaveChangesAndDispatchEvents. Add and Update track automatically.
func (u *UnitOfWork) Track(agg events.Aggregate) {
	if agg == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tracked = append(u.tracked, agg)
}

// SaveChanges executes the queued changes in order and returns the affected row count.
// Without an open transaction the changes run in a short transaction of their own, so a
// failure never leaves some of them applied.
func (u *UnitOfWork) SaveChanges(ctx context.Context) (int64, error) {
	u.mu.Lock()
	if u.state == StateCommitted || u.state == StateRolledBack {
		u.mu.Unlock()
		return 0, errx.New("unit of work is closed",
			errx.WithCode(CodeUnitOfWorkClosed),
			errx.WithType(errx.T_Conflict),
		)
	}
	pending := u.pending
	u.pending = nil
	open := u.state == StateOpen
	tx := u.tx
	u.mu.Unlock()

	if len(pending) == 0 {
		return 0, nil
	}

	if open {
		return apply(ctx, tx, pending)
	}

	var affected int64
	err := u.db.RunInTx(ctx, u.txOpts, func(ctx context.Context, tx bun.Tx) error {
		n, err := apply(ctx, tx, pending)
		affected = n
		return err
	})
	if err != nil {
		return 0, errx.Wrap(err)
	}
	return affected, nil
}

// SaveChangesAndDispatchEvents saves, then collects and clears the events of every tracked
// aggregate. Inside a transaction the events are published after commit and dropped on
// rollback; outside one they are published immediately. Nothing is published when the
// save fails.
func (u *UnitOfWork) SaveChangesAndDispatchEvents(ctx context.Context) (int64, error) {
	affected, err := u.SaveChanges(ctx)
	if err != nil {
		return 0, errx.Wrap(err)
	}

	u.mu.Lock()
	var collected []events.Event
	for _, agg := range u.tracked {
		collected = append(collected, agg.PullEvents()...)
	}
	u.tracked = nil

	if u.state == StateOpen {
		u.deferred = append(u.deferred, collected...)
		u.mu.Unlock()
		return affected, nil
	}
	u.mu.Unlock()

	u.publish(ctx, collected)
	return affected, nil
}

// DB returns the scope repositories should use: the open transaction, or the database.
func (u *UnitOfWork) DB() bun.IDB {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state == StateOpen {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWork) enqueue(c change, agg events.Aggregate) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pending = append(u.pending, c)
	if agg != nil {
		u.tracked = append(u.tracked, agg)
	}
}

// clear must be called with mu held.
func (u *UnitOfWork) clear() {
	u.pending = nil
	u.tracked = nil
	u.deferred = nil
}

// publish logs failures instead of returning them: the data is already committed and
// event delivery is at most once.
func (u *UnitOfWork) publish(ctx context.Context, evts []events.Event) {
	if len(evts) == 0 || u.publisher == nil {
		return
	}
	for _, e := range evts {
		err := u.publisher.Publish(ctx, e)
		u.metrics.IncEvent(e.EventType(), err == nil)
		if err != nil {
			u.log.WithContext(ctx).
				With("event_type", e.EventType(), "aggregate_id", e.AggregateID()).
				Errorx(errx.Wrap(err))
		}
	}
}

func apply(ctx context.Context, idb bun.IDB, pending []change) (int64, error) {
	var total int64
	for _, c := range pending {
		n, err := c(ctx, idb)
		if err != nil {
			return total, errx.Wrap(err)
		}
		total += n
	}
	return total, nil
}
