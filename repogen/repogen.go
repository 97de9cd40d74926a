// Package repogen provides generic bun repositories that execute specifications.
//
// Repositories are cheap values bound to a bun.IDB, which is either the database or an
// open transaction. The unit of work hands them out so every read and write in one
// logical operation shares the same scope.
package repogen

import (
	"context"

	"github.com/rise-and-shine/recoengine/specification"
)

const (
	CodeObjectNotFound         = "OBJECT_NOT_FOUND"
	CodeMultipleRowsFound      = "MULTIPLE_ROWS_FOUND"
	CodeIncorrectRowsAffection = "INCORRECT_ROWS_AFFECTION"
	CodeTransactionConflict    = "TRANSACTION_CONFLICT"

	largeBulkSize = 10
)

// Versioned is implemented by entities updated with optimistic concurrency.
// Update only succeeds when the stored version still equals the entity's version,
// and then increments it.
type Versioned interface {
	GetVersion() int64
	SetVersion(v int64)
}

// ReadOnlyRepo reads entities of type E by specification.
type ReadOnlyRepo[E any] interface {
	// Get returns the single entity matching spec. It fails with the not-found code when
	// nothing matches and with MULTIPLE_ROWS_FOUND when more than one row matches.
	Get(ctx context.Context, spec specification.Specification[E]) (*E, error)
	// List returns all entities matching spec, ordered and paged as spec says.
	List(ctx context.Context, spec specification.Specification[E]) ([]E, error)
	// Count counts entities matching the predicate of spec, ignoring paging.
	Count(ctx context.Context, spec specification.Specification[E]) (int, error)
	// ListWithCount returns one page and the total count of matching entities.
	ListWithCount(ctx context.Context, spec specification.Specification[E]) ([]E, int, error)
	// FirstOrNil returns the first matching entity, or nil when nothing matches.
	FirstOrNil(ctx context.Context, spec specification.Specification[E]) (*E, error)
	// Exists reports whether any entity matches.
	Exists(ctx context.Context, spec specification.Specification[E]) (bool, error)
}

// Repo reads and writes entities of type E.
type Repo[E any] interface {
	ReadOnlyRepo[E]
	Create(ctx context.Context, entity *E) (*E, error)
	// Update writes entity by primary key. Versioned entities fail with
	// TRANSACTION_CONFLICT when another writer got there first.
	Update(ctx context.Context, entity *E) (*E, error)
	Delete(ctx context.Context, entity *E) error

	BulkCreate(ctx context.Context, entities []E) error
}
