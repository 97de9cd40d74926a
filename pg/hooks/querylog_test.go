package hooks_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/pg/hooks"
)

type row struct {
	bun.BaseModel `bun:"table:rows"`

	ID int64 `bun:"id,pk"`
}

func open(t *testing.T, opts ...hooks.QueryLogOption) (*bun.DB, *observer.ObservedLogs) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	core, logs := observer.New(zapcore.DebugLevel)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.NewCreateTable().Model((*row)(nil)).Exec(t.Context())
	require.NoError(t, err)

	db.AddQueryHook(hooks.NewQueryLog(logger.FromZap(zap.New(core)), opts...))
	return db, logs
}

func TestQueryLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		opts      []hooks.QueryLogOption
		query     func(db *bun.DB) error
		wantLevel zapcore.Level
		wantNone  bool
	}{
		{
			name:     "quiet success",
			opts:     []hooks.QueryLogOption{hooks.WithSlowQueryThreshold(0)},
			query:    func(db *bun.DB) error { return db.NewSelect().Model((*row)(nil)).Scan(t.Context(), new([]row)) },
			wantNone: true,
		},
		{
			name:      "verbose success",
			opts:      []hooks.QueryLogOption{hooks.WithVerbose(true), hooks.WithSlowQueryThreshold(0)},
			query:     func(db *bun.DB) error { return db.NewSelect().Model((*row)(nil)).Scan(t.Context(), new([]row)) },
			wantLevel: zapcore.DebugLevel,
		},
		{
			name: "no rows is a warning",
			opts: []hooks.QueryLogOption{hooks.WithSlowQueryThreshold(0)},
			query: func(db *bun.DB) error {
				return db.NewSelect().Model(new(row)).Where("id = ?", 1).Scan(t.Context())
			},
			wantLevel: zapcore.WarnLevel,
		},
		{
			name:      "failure is an error",
			query:     func(db *bun.DB) error { _, err := db.ExecContext(t.Context(), "SELECT * FROM missing"); return err },
			wantLevel: zapcore.ErrorLevel,
		},
		{
			name:      "slow query",
			opts:      []hooks.QueryLogOption{hooks.WithSlowQueryThreshold(time.Nanosecond)},
			query:     func(db *bun.DB) error { return db.NewSelect().Model((*row)(nil)).Scan(t.Context(), new([]row)) },
			wantLevel: zapcore.WarnLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, logs := open(t, tt.opts...)
			_ = tt.query(db)

			if tt.wantNone {
				assert.Zero(t, logs.Len())
				return
			}
			require.Equal(t, 1, logs.Len())
			assert.Equal(t, tt.wantLevel, logs.All()[0].Level)
			assert.Equal(t, "pg.query", logs.All()[0].LoggerName)
		})
	}
}
