// Package dbtest opens throwaway in-memory SQLite databases through bun for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/code19m/errx"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

var seq atomic.Int64

// New opens a private in-memory database and creates a table for each model.
// Set BUNDEBUG=1 to print queries, BUNDEBUG=2 to print them with arguments.
//
// The pool holds a single connection, so a test must not query the database directly
// while it holds an open transaction on it.
func New(tb testing.TB, models ...any) *bun.DB {
	tb.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(tb.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		tb.Fatalf("dbtest: open: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),
		bundebug.FromEnv("BUNDEBUG"),
	))

	tb.Cleanup(func() { _ = db.Close() })

	err = CreateTables(context.Background(), db, models...)
	if err != nil {
		tb.Fatalf("dbtest: create tables: %v", err)
	}

	return db
}

// CreateTables creates a table for each model if it does not exist.
func CreateTables(ctx context.Context, db bun.IDB, models ...any) error {
	for _, m := range models {
		_, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx)
		if err != nil {
			return errx.Wrap(err, errx.WithDetails(errx.D{"model": fmt.Sprintf("%T", m)}))
		}
	}
	return nil
}
