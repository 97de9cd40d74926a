package repogen

import (
	"context"
	"fmt"
	"reflect"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/pg"
	"github.com/rise-and-shine/recoengine/specification"
	"github.com/uptrace/bun"
)

// PgReadOnlyRepo provides read-only access to a table through bun.
type PgReadOnlyRepo[E any] struct {
	idb          bun.IDB
	schemaName   string
	notFoundCode string
}

// Builder configures repositories with sensible defaults.
type Builder[E any] struct {
	idb              bun.IDB
	schemaName       string
	notFoundCode     string
	conflictCodesMap map[string]string
}

// NewBuilder creates a builder for repositories of E bound to idb.
func NewBuilder[E any](idb bun.IDB) *Builder[E] {
	return &Builder[E]{
		idb:              idb,
		notFoundCode:     CodeObjectNotFound,
		conflictCodesMap: map[string]string{},
	}
}

// WithSchemaName qualifies the table with a schema. Empty uses the connection's search path.
func (b *Builder[E]) WithSchemaName(name string) *Builder[E] {
	b.schemaName = name
	return b
}

// WithNotFoundCode sets the error code Get returns when nothing matches.
func (b *Builder[E]) WithNotFoundCode(code string) *Builder[E] {
	b.notFoundCode = code
	return b
}

// WithConflictCodes maps constraint names to error codes,
// e.g. map["interactions_dedup_key"] = "DUPLICATE_INTERACTION".
func (b *Builder[E]) WithConflictCodes(codes map[string]string) *Builder[E] {
	b.conflictCodesMap = codes
	return b
}

// BuildReadOnly creates the read-only repository.
func (b *Builder[E]) BuildReadOnly() *PgReadOnlyRepo[E] {
	return &PgReadOnlyRepo[E]{
		idb:          b.idb,
		schemaName:   b.schemaName,
		notFoundCode: b.notFoundCode,
	}
}

// Build creates the read-write repository.
func (b *Builder[E]) Build() *PgRepo[E] {
	return &PgRepo[E]{
		PgReadOnlyRepo:   b.BuildReadOnly(),
		conflictCodesMap: b.conflictCodesMap,
	}
}

func (r *PgReadOnlyRepo[E]) Get(ctx context.Context, spec specification.Specification[E]) (*E, error) {
	var entities = make([]E, 0)
	q := r.idb.NewSelect().Model(&entities)
	q = r.applyModelTableExpr(q)
	q = spec.Apply(q).Limit(2) //nolint:mnd // limit 2 to check for multiple rows

	err := q.Scan(ctx)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(pg.GetPgErrorDetails(err, q)))
	}

	if len(entities) == 0 {
		return nil, errx.New(
			fmt.Sprintf("no %s found", nameOf(new(E))),
			errx.WithCode(r.notFoundCode),
			errx.WithType(errx.T_NotFound),
			errx.WithDetails(pg.GetPgErrorDetails(err, q)),
		)
	}

	if len(entities) > 1 {
		return nil, errx.New(
			fmt.Sprintf("multiple %s found", nameOf(new(E))),
			errx.WithCode(CodeMultipleRowsFound),
			errx.WithDetails(pg.GetPgErrorDetails(err, q)),
		)
	}

	return &entities[0], nil
}

func (r *PgReadOnlyRepo[E]) List(ctx context.Context, spec specification.Specification[E]) ([]E, error) {
	var entities = make([]E, 0)
	q := r.idb.NewSelect().Model(&entities)
	q = r.applyModelTableExpr(q)
	q = spec.Apply(q)

	err := q.Scan(ctx)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(pg.GetPgErrorDetails(err, q)))
	}

	return entities, nil
}

func (r *PgReadOnlyRepo[E]) Count(ctx context.Context, spec specification.Specification[E]) (int, error) {
	q := r.idb.NewSelect().Model((*E)(nil))
	q = r.applyModelTableExpr(q)
	q = spec.ApplyFilter(q)

	count, err := q.Count(ctx)
	if err != nil {
		return 0, errx.Wrap(err, errx.WithDetails(pg.GetPgErrorDetails(err, q)))
	}

	return count, nil
}

func (r *PgReadOnlyRepo[E]) ListWithCount(
	ctx context.Context,
	spec specification.Specification[E],
) ([]E, int, error) {
	entities, err := r.List(ctx, spec)
	if err != nil {
		return nil, 0, errx.Wrap(err)
	}

	count, err := r.Count(ctx, spec)
	if err != nil {
		return nil, 0, errx.Wrap(err)
	}

	return entities, count, nil
}

func (r *PgReadOnlyRepo[E]) FirstOrNil(ctx context.Context, spec specification.Specification[E]) (*E, error) {
	var entities = make([]E, 0)
	q := r.idb.NewSelect().Model(&entities)
	q = r.applyModelTableExpr(q)
	q = spec.Apply(q).Limit(1)

	err := q.Scan(ctx)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(pg.GetPgErrorDetails(err, q)))
	}

	if len(entities) == 0 {
		return nil, nil //nolint:nilnil // Intentionally returning nil,nil as function name indicates
	}

	return &entities[0], nil
}

func (r *PgReadOnlyRepo[E]) Exists(ctx context.Context, spec specification.Specification[E]) (bool, error) {
	q := r.idb.NewSelect().Model((*E)(nil))
	q = r.applyModelTableExpr(q)
	q = spec.ApplyFilter(q)

	exists, err := q.Exists(ctx)
	if err != nil {
		return false, errx.Wrap(err, errx.WithDetails(pg.GetPgErrorDetails(err, q)))
	}

	return exists, nil
}

func (r *PgReadOnlyRepo[E]) applyModelTableExpr(q *bun.SelectQuery) *bun.SelectQuery {
	if r.schemaName == "" {
		return q
	}
	table := q.GetModel().(bun.TableModel).Table() //nolint:errcheck // table name is always available
	return q.ModelTableExpr("?.? AS ?", bun.Ident(r.schemaName), bun.Ident(table.Name), bun.Ident(table.Alias))
}

func nameOf(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
