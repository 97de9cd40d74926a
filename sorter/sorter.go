// Package sorter parses and applies ordering options such as "score:desc,created_at:asc".
package sorter

import (
	"slices"
	"strings"

	"github.com/uptrace/bun"
)

type (
	SortOpts []Opt

	SortDirection string
)

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"

	expectedPartsCount = 2
)

// MakeFromStr parses a sorting string into options, keeping only fields listed in
// allowedFields and the directions asc/desc. Invalid pairs are dropped silently.
func MakeFromStr(sortString string, allowedFields ...string) SortOpts {
	if sortString == "" {
		return nil
	}

	var options SortOpts
	for pair := range strings.SplitSeq(sortString, ",") {
		parts := strings.Split(pair, ":")
		if len(parts) != expectedPartsCount {
			continue
		}

		key := strings.TrimSpace(parts[0])
		if !slices.Contains(allowedFields, key) {
			continue
		}

		direction := SortDirection(strings.ToLower(strings.TrimSpace(parts[1])))
		if direction != Asc && direction != Desc {
			continue
		}

		options = append(options, Opt{F: key, D: direction})
	}

	return options
}

// Make creates SortOpts from a variadic list of Opt.
func Make(sortOptions ...Opt) SortOpts {
	return sortOptions
}

// By returns an ascending option on field.
func By(field string) Opt {
	return Opt{F: field, D: Asc}
}

// ByDesc returns a descending option on field.
func ByDesc(field string) Opt {
	return Opt{F: field, D: Desc}
}

// Opt represents a single sorting option, consisting of a field and a direction.
type Opt struct {
	F string        // F is the column to sort by.
	D SortDirection // D is the sorting direction (asc or desc).
}

// ToSQL converts an Opt into an SQL-compatible clause (e.g., "score desc").
func (o Opt) ToSQL() string {
	return o.F + " " + string(o.D)
}

// Apply appends the options to q as ORDER BY clauses. Column names are quoted as identifiers.
func (s SortOpts) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	for _, o := range s {
		if o.D == Desc {
			q = q.OrderExpr("? DESC", bun.Ident(o.F))
		} else {
			q = q.OrderExpr("? ASC", bun.Ident(o.F))
		}
	}
	return q
}
