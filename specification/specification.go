// Package specification describes reusable queries over one entity type: a filter
// predicate, eager-load hints, ordering and paging.
//
// Specifications are values. Every combinator returns a new Specification and leaves
// its operands untouched, so a base specification can be shared and extended freely.
// A specification with no criteria matches every entity.
package specification

import (
	"slices"

	"github.com/rise-and-shine/recoengine/pagination"
	"github.com/rise-and-shine/recoengine/sorter"
	"github.com/uptrace/bun"
)

// Specification is an immutable query description for entities of type E.
type Specification[E any] struct {
	pred     predicate[E]
	includes []string
	order    sorter.SortOpts
	skip     int
	take     int
	paged    bool
}

// All returns the identity specification, which matches every entity.
func All[E any]() Specification[E] {
	return Specification[E]{}
}

// New returns a specification whose predicate is the conjunction of criteria.
func New[E any](criteria ...Specification[E]) Specification[E] {
	s := All[E]()
	for _, c := range criteria {
		s = s.And(c)
	}
	return s
}

// And returns a specification matching entities satisfying both s and other.
// Includes are merged. Ordering and paging are taken from s, or from other when s has none.
func (s Specification[E]) And(other Specification[E]) Specification[E] {
	out := s.merge(other)
	out.pred = and(s.pred, other.pred)
	return out
}

// Or returns a specification matching entities satisfying s or other.
func (s Specification[E]) Or(other Specification[E]) Specification[E] {
	out := s.merge(other)
	out.pred = or(s.pred, other.pred)
	return out
}

// Not returns a specification matching entities that do not satisfy s.
func (s Specification[E]) Not() Specification[E] {
	out := s.clone()
	out.pred = not(s.pred)
	return out
}

// Include adds relations to eager-load. Names are bun relation names.
func (s Specification[E]) Include(relations ...string) Specification[E] {
	out := s.clone()
	for _, r := range relations {
		if !slices.Contains(out.includes, r) {
			out.includes = append(out.includes, r)
		}
	}
	return out
}

// ApplyOrderBy sets ascending ordering on field, replacing any earlier ordering.
func (s Specification[E]) ApplyOrderBy(field string) Specification[E] {
	out := s.clone()
	out.order = sorter.Make(sorter.By(field))
	return out
}

// ApplyOrderByDescending sets descending ordering on field, replacing any earlier ordering.
func (s Specification[E]) ApplyOrderByDescending(field string) Specification[E] {
	out := s.clone()
	out.order = sorter.Make(sorter.ByDesc(field))
	return out
}

// ThenBy adds a secondary ascending ordering.
func (s Specification[E]) ThenBy(field string) Specification[E] {
	out := s.clone()
	out.order = append(out.order, sorter.By(field))
	return out
}

// ThenByDescending adds a secondary descending ordering.
func (s Specification[E]) ThenByDescending(field string) Specification[E] {
	out := s.clone()
	out.order = append(out.order, sorter.ByDesc(field))
	return out
}

// WithOrder replaces the ordering with opts, typically parsed by sorter.MakeFromStr.
func (s Specification[E]) WithOrder(opts sorter.SortOpts) Specification[E] {
	out := s.clone()
	out.order = slices.Clone(opts)
	return out
}

// ApplyPaging skips skip entities and takes at most take. Negative values are treated as zero;
// take == 0 means no limit.
func (s Specification[E]) ApplyPaging(skip, take int) Specification[E] {
	out := s.clone()
	out.skip = max(skip, 0)
	out.take = max(take, 0)
	out.paged = true
	return out
}

// FromPagination applies paging from a normalized page request.
func (s Specification[E]) FromPagination(p pagination.Request) Specification[E] {
	p.Normalize()
	return s.ApplyPaging(p.Offset(), p.Limit())
}

// IsSatisfiedBy evaluates the predicate in memory.
func (s Specification[E]) IsSatisfiedBy(e E) bool {
	return s.pred.eval(e)
}

// Filter returns the entities of items satisfying s, keeping their order.
func (s Specification[E]) Filter(items []E) []E {
	out := make([]E, 0, len(items))
	for _, it := range items {
		if s.pred.eval(it) {
			out = append(out, it)
		}
	}
	return out
}

// IsIdentity reports whether the predicate matches every entity.
func (s Specification[E]) IsIdentity() bool {
	return s.pred.identity()
}

// Includes returns the relations to eager-load.
func (s Specification[E]) Includes() []string { return slices.Clone(s.includes) }

// Order returns the ordering options.
func (s Specification[E]) Order() sorter.SortOpts { return slices.Clone(s.order) }

// Paging returns skip, take and whether paging was set.
func (s Specification[E]) Paging() (skip, take int, ok bool) { return s.skip, s.take, s.paged }

// Apply applies predicate, includes, ordering and paging to q, in that order.
func (s Specification[E]) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	q = s.ApplyFilter(q)
	for _, rel := range s.includes {
		q = q.Relation(rel)
	}
	q = s.order.Apply(q)
	if s.paged {
		if s.skip > 0 {
			q = q.Offset(s.skip)
		}
		if s.take > 0 {
			q = q.Limit(s.take)
		}
	}
	return q
}

// ApplyFilter applies only the predicate. Use it for counts and existence checks.
func (s Specification[E]) ApplyFilter(q *bun.SelectQuery) *bun.SelectQuery {
	if s.pred.identity() {
		return q
	}
	return q.Where(s.pred.sql, s.pred.args...)
}

// ApplyToUpdate restricts an update query to entities satisfying the predicate.
func (s Specification[E]) ApplyToUpdate(q *bun.UpdateQuery) *bun.UpdateQuery {
	if s.pred.identity() {
		return q
	}
	return q.Where(s.pred.sql, s.pred.args...)
}

// ApplyToDelete restricts a delete query to entities satisfying the predicate.
func (s Specification[E]) ApplyToDelete(q *bun.DeleteQuery) *bun.DeleteQuery {
	if s.pred.identity() {
		return q
	}
	return q.Where(s.pred.sql, s.pred.args...)
}

func (s Specification[E]) clone() Specification[E] {
	out := s
	out.includes = slices.Clone(s.includes)
	out.order = slices.Clone(s.order)
	return out
}

func (s Specification[E]) merge(other Specification[E]) Specification[E] {
	out := s.Include(other.includes...)
	if len(out.order) == 0 {
		out.order = slices.Clone(other.order)
	}
	if !out.paged && other.paged {
		out.skip, out.take, out.paged = other.skip, other.take, true
	}
	return out
}
