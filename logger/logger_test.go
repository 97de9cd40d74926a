package logger_test

import (
	"errors"
	"testing"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/meta"
)

func newObserved() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.FromZap(zap.New(core)), logs
}

func TestErrorxAddsErrxFields(t *testing.T) {
	l, logs := newObserved()

	err := errx.New("player is blocked",
		errx.WithCode("PLAYER_INACTIVE"),
		errx.WithType(errx.T_Validation),
	)
	l.Errorx(err)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "PLAYER_INACTIVE", fields["error_code"])
	assert.Equal(t, errx.T_Validation.String(), fields["error_type"])
}

func TestWarnxPlainError(t *testing.T) {
	l, logs := newObserved()

	l.Warnx(errors.New("plain"))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "plain", logs.All()[0].Message)
	assert.NotContains(t, logs.All()[0].ContextMap(), "error_code")
}

func TestWithContextCopiesMeta(t *testing.T) {
	l, logs := newObserved()

	ctx := meta.InjectMetaToContext(t.Context(), map[meta.ContextKey]string{
		meta.PlayerID: "42",
		meta.TraceID:  "t-1",
	})
	l.Named("test").WithContext(ctx).Info("served")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "test", entry.LoggerName)
	assert.Equal(t, "42", entry.ContextMap()["player_id"])
	assert.Equal(t, "t-1", entry.ContextMap()["trace_id"])
}

func TestNewDisabled(t *testing.T) {
	l, err := logger.New(logger.Config{Level: "info", Encoding: logger.EncodingJSON, Disable: true})
	require.NoError(t, err)
	assert.NotPanics(t, func() { l.Info("dropped") })
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := logger.New(logger.Config{Level: "loud", Encoding: logger.EncodingJSON})
	assert.Error(t, err)
}
