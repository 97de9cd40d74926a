package dbtest

import (
	"testing"

	"github.com/rise-and-shine/recoengine/domain"
	"github.com/uptrace/bun"
)

// NewSchema opens a database with the full engine schema.
func NewSchema(tb testing.TB) *bun.DB {
	tb.Helper()

	db := New(tb)
	err := domain.CreateSchema(tb.Context(), db)
	if err != nil {
		tb.Fatalf("dbtest: create schema: %v", err)
	}
	return db
}

// Seed inserts each row. Rows must be pointers to models or to slices of models.
func Seed(tb testing.TB, db bun.IDB, rows ...any) {
	tb.Helper()

	for _, r := range rows {
		_, err := db.NewInsert().Model(r).Exec(tb.Context())
		if err != nil {
			tb.Fatalf("dbtest: seed %T: %v", r, err)
		}
	}
}
