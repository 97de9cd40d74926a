package specification

// predicate pairs a SQL fragment with an in-memory matcher. The zero value is the
// identity (matches everything) and renders no WHERE clause.
type predicate[E any] struct {
	sql   string
	args  []any
	match func(E) bool
	// never is set for the negated identity, which matches nothing.
	never bool
}

func (p predicate[E]) identity() bool {
	return p.sql == "" && !p.never
}

func (p predicate[E]) eval(e E) bool {
	switch {
	case p.never:
		return false
	case p.identity():
		return true
	case p.match == nil:
		return true
	default:
		return p.match(e)
	}
}

func and[E any](a, b predicate[E]) predicate[E] {
	switch {
	case a.never || b.never:
		return never[E]()
	case a.identity():
		return b
	case b.identity():
		return a
	}
	return predicate[E]{
		sql:   "(" + a.sql + ") AND (" + b.sql + ")",
		args:  concat(a.args, b.args),
		match: func(e E) bool { return a.eval(e) && b.eval(e) },
	}
}

func or[E any](a, b predicate[E]) predicate[E] {
	switch {
	case a.identity() || b.identity():
		return predicate[E]{}
	case a.never:
		return b
	case b.never:
		return a
	}
	return predicate[E]{
		sql:   "(" + a.sql + ") OR (" + b.sql + ")",
		args:  concat(a.args, b.args),
		match: func(e E) bool { return a.eval(e) || b.eval(e) },
	}
}

func not[E any](a predicate[E]) predicate[E] {
	switch {
	case a.identity():
		return never[E]()
	case a.never:
		return predicate[E]{}
	}
	return predicate[E]{
		sql:   "NOT (" + a.sql + ")",
		args:  a.args,
		match: func(e E) bool { return !a.eval(e) },
	}
}

func never[E any]() predicate[E] {
	return predicate[E]{sql: "1 = 0", never: true}
}

func concat(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
