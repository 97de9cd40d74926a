// Package hooks holds Bun query hooks.
package hooks

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rise-and-shine/recoengine/logger"
	"github.com/uptrace/bun"
)

var _ bun.QueryHook = (*QueryLog)(nil)

// QueryLog logs failed and slow queries, and every query in verbose mode.
// sql.ErrNoRows is a warning and sql.ErrTxDone is ignored.
type QueryLog struct {
	log     logger.Logger
	verbose bool
	slow    time.Duration
}

type QueryLogOption func(*QueryLog)

// WithVerbose logs successful queries at debug level too.
func WithVerbose(verbose bool) QueryLogOption {
	return func(h *QueryLog) { h.verbose = verbose }
}

// WithSlowQueryThreshold logs queries at least this slow as warnings. Zero disables it.
func WithSlowQueryThreshold(threshold time.Duration) QueryLogOption {
	return func(h *QueryLog) { h.slow = threshold }
}

func NewQueryLog(log logger.Logger, opts ...QueryLogOption) *QueryLog {
	if log == nil {
		log = logger.Global()
	}
	h := &QueryLog{log: log.Named("pg.query"), slow: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *QueryLog) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryLog) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	took := time.Since(event.StartTime)

	noRows := errors.Is(event.Err, sql.ErrNoRows)
	failed := event.Err != nil && !noRows && !errors.Is(event.Err, sql.ErrTxDone)
	slow := h.slow > 0 && took >= h.slow

	if !failed && !noRows && !slow && !h.verbose {
		return
	}

	entry := h.log.WithContext(ctx).
		With("query", strings.ReplaceAll(event.Query, `"`, "")).
		With("duration", took.Round(time.Microsecond).String())
	if event.Err != nil {
		entry = entry.With("error", event.Err.Error())
	}

	op := event.Operation()
	switch {
	case failed:
		entry.Error(op)
	case noRows, slow:
		entry.Warn(op)
	default:
		entry.Debug(op)
	}
}
