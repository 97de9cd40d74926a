package specification

import (
	"cmp"
	"slices"
	"time"

	"github.com/uptrace/bun"
)

// Column conditions are rendered against the model's table alias so they stay
// unambiguous when relations are joined.
const (
	opEq    = "?TableAlias.? = ?"
	opNotEq = "?TableAlias.? <> ?"
	opGt    = "?TableAlias.? > ?"
	opGte   = "?TableAlias.? >= ?"
	opLt    = "?TableAlias.? < ?"
	opLte   = "?TableAlias.? <= ?"
	opIn    = "?TableAlias.? IN (?)"
	opNotIn = "?TableAlias.? NOT IN (?)"
	opNull  = "?TableAlias.? IS NULL"
	opNNull = "?TableAlias.? IS NOT NULL"
)

func column[E any](sql string, col string, match func(E) bool, args ...any) Specification[E] {
	return Specification[E]{pred: predicate[E]{
		sql:   sql,
		args:  append([]any{bun.Ident(col)}, args...),
		match: match,
	}}
}

// Where builds a criterion from a raw SQL fragment with bun placeholders and a matching
// in-memory function. match may be nil when the criterion is only used against the database.
func Where[E any](sql string, args []any, match func(E) bool) Specification[E] {
	return Specification[E]{pred: predicate[E]{sql: sql, args: slices.Clone(args), match: match}}
}

// Eq matches entities whose col equals v.
func Eq[E any, V comparable](col string, field func(E) V, v V) Specification[E] {
	return column(opEq, col, func(e E) bool { return field(e) == v }, v)
}

// NotEq matches entities whose col differs from v.
func NotEq[E any, V comparable](col string, field func(E) V, v V) Specification[E] {
	return column(opNotEq, col, func(e E) bool { return field(e) != v }, v)
}

// In matches entities whose col is one of values. An empty set matches nothing.
func In[E any, V comparable](col string, field func(E) V, values ...V) Specification[E] {
	if len(values) == 0 {
		return Specification[E]{pred: never[E]()}
	}
	vs := slices.Clone(values)
	return column(opIn, col, func(e E) bool { return slices.Contains(vs, field(e)) }, bun.In(vs))
}

// NotIn matches entities whose col is none of values. An empty set matches everything.
func NotIn[E any, V comparable](col string, field func(E) V, values ...V) Specification[E] {
	if len(values) == 0 {
		return All[E]()
	}
	vs := slices.Clone(values)
	return column(opNotIn, col, func(e E) bool { return !slices.Contains(vs, field(e)) }, bun.In(vs))
}

// Gt matches entities whose col is greater than v.
func Gt[E any, V cmp.Ordered](col string, field func(E) V, v V) Specification[E] {
	return column(opGt, col, func(e E) bool { return field(e) > v }, v)
}

// Gte matches entities whose col is greater than or equal to v.
func Gte[E any, V cmp.Ordered](col string, field func(E) V, v V) Specification[E] {
	return column(opGte, col, func(e E) bool { return field(e) >= v }, v)
}

// Lt matches entities whose col is less than v.
func Lt[E any, V cmp.Ordered](col string, field func(E) V, v V) Specification[E] {
	return column(opLt, col, func(e E) bool { return field(e) < v }, v)
}

// Lte matches entities whose col is less than or equal to v.
func Lte[E any, V cmp.Ordered](col string, field func(E) V, v V) Specification[E] {
	return column(opLte, col, func(e E) bool { return field(e) <= v }, v)
}

// OnOrAfter matches entities whose time column is at or after t.
func OnOrAfter[E any](col string, field func(E) time.Time, t time.Time) Specification[E] {
	return column(opGte, col, func(e E) bool { return !field(e).Before(t) }, t)
}

// Before matches entities whose time column is strictly before t.
func Before[E any](col string, field func(E) time.Time, t time.Time) Specification[E] {
	return column(opLt, col, func(e E) bool { return field(e).Before(t) }, t)
}

// IsNull matches entities whose nullable col is unset.
func IsNull[E any, V any](col string, field func(E) *V) Specification[E] {
	return column(opNull, col, func(e E) bool { return field(e) == nil })
}

// IsNotNull matches entities whose nullable col is set.
func IsNotNull[E any, V any](col string, field func(E) *V) Specification[E] {
	return column(opNNull, col, func(e E) bool { return field(e) != nil })
}
