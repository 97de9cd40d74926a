package repogen

import (
	"context"
	"fmt"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/pg"
	"github.com/uptrace/bun"
)

// PgRepo provides CRUD operations over a table through bun.
type PgRepo[E any] struct {
	*PgReadOnlyRepo[E]

	// conflictCodesMap maps constraint names to error codes.
	conflictCodesMap map[string]string
}

func (r *PgRepo[E]) Create(ctx context.Context, entity *E) (*E, error) {
	q := r.idb.NewInsert().Model(entity)
	q = r.applyInsertModelTableExpr(q)
	_, err := q.Exec(ctx)
	if err != nil {
		return nil, r.writeError(err, q, "creating")
	}

	return entity, nil
}

func (r *PgRepo[E]) Update(ctx context.Context, entity *E) (*E, error) {
	versioned, isVersioned := any(entity).(Versioned)

	q := r.idb.NewUpdate().Model(entity).WherePK()
	q = r.applyUpdateModelTableExpr(q)

	var prev int64
	if isVersioned {
		prev = versioned.GetVersion()
		versioned.SetVersion(prev + 1)
		q = q.Where("? = ?", bun.Ident("version"), prev)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		if isVersioned {
			versioned.SetVersion(prev)
		}
		return nil, r.writeError(err, q, "updating")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(pg.GetPgErrorDetails(err, q)))
	}

	if rowsAffected == 0 {
		if isVersioned {
			versioned.SetVersion(prev)
			return nil, errx.New(
				fmt.Sprintf("%s was modified concurrently", nameOf(entity)),
				errx.WithCode(CodeTransactionConflict),
				errx.WithType(errx.T_Conflict),
				errx.WithDetails(errx.D{"expected_version": prev}),
			)
		}
		return nil, errx.New(
			fmt.Sprintf("no %s found to update", nameOf(entity)),
			errx.WithCode(CodeIncorrectRowsAffection),
			errx.WithDetails(pg.GetPgErrorDetails(err, q)),
		)
	}

	return entity, nil
}

func (r *PgRepo[E]) Delete(ctx context.Context, entity *E) error {
	q := r.idb.NewDelete().Model(entity).WherePK()
	q = r.applyDeleteModelTableExpr(q)
	result, err := q.Exec(ctx)
	if err != nil {
		return errx.Wrap(err, errx.WithDetails(pg.GetPgErrorDetails(err, q)))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, errx.WithDetails(pg.GetPgErrorDetails(err, q)))
	}

	if rowsAffected == 0 {
		return errx.New(
			fmt.Sprintf("no %s found to delete", nameOf(entity)),
			errx.WithCode(CodeIncorrectRowsAffection),
			errx.WithDetails(pg.GetPgErrorDetails(err, q)),
		)
	}

	return nil
}

func (r *PgRepo[E]) BulkCreate(ctx context.Context, entities []E) error {
	if len(entities) == 0 {
		return nil
	}

	q := r.idb.NewInsert().Model(&entities)
	q = r.applyInsertModelTableExpr(q)
	_, err := q.Exec(ctx)
	if err != nil {
		if len(entities) > largeBulkSize {
			q = nil // Set q to nil to avoid huge log size in large inserts
		}
		return r.writeError(err, q, "bulk creating")
	}

	return nil
}

func (r *PgRepo[E]) writeError(err error, q fmt.Stringer, op string) error {
	if code, exists := r.conflictCodesMap[pg.ConstraintName(err)]; exists {
		return errx.New(
			fmt.Sprintf("conflict while %s %s", op, nameOf(new(E))),
			errx.WithCode(code),
			errx.WithType(errx.T_Conflict),
			errx.WithDetails(pg.GetPgErrorDetails(err, q)),
		)
	}
	if pg.IsSerializationFailure(err) {
		return errx.Wrap(err,
			errx.WithCode(CodeTransactionConflict),
			errx.WithType(errx.T_Conflict),
			errx.WithDetails(pg.GetPgErrorDetails(err, q)),
		)
	}
	return errx.Wrap(err, errx.WithDetails(pg.GetPgErrorDetails(err, q)))
}

func (r *PgRepo[E]) applyInsertModelTableExpr(q *bun.InsertQuery) *bun.InsertQuery {
	if r.schemaName == "" {
		return q
	}
	table := q.GetModel().(bun.TableModel).Table() //nolint:errcheck // table name is always available
	return q.ModelTableExpr("?.? AS ?", bun.Ident(r.schemaName), bun.Ident(table.Name), bun.Ident(table.Alias))
}

func (r *PgRepo[E]) applyUpdateModelTableExpr(q *bun.UpdateQuery) *bun.UpdateQuery {
	if r.schemaName == "" {
		return q
	}
	table := q.GetModel().(bun.TableModel).Table() //nolint:errcheck // table name is always available
	return q.ModelTableExpr("?.? AS ?", bun.Ident(r.schemaName), bun.Ident(table.Name), bun.Ident(table.Alias))
}

func (r *PgRepo[E]) applyDeleteModelTableExpr(q *bun.DeleteQuery) *bun.DeleteQuery {
	if r.schemaName == "" {
		return q
	}
	table := q.GetModel().(bun.TableModel).Table() //nolint:errcheck // table name is always available
	return q.ModelTableExpr("?.? AS ?", bun.Ident(r.schemaName), bun.Ident(table.Name), bun.Ident(table.Alias))
}
