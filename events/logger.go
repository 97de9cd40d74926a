package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rise-and-shine/recoengine/logger"
)

var _ watermill.LoggerAdapter = (*loggerAdapter)(nil)

// loggerAdapter adapts logger.Logger to watermill.LoggerAdapter.
type loggerAdapter struct {
	base logger.Logger
}

// NewLoggerAdapter wraps l for use by watermill publishers, subscribers and routers.
func NewLoggerAdapter(l logger.Logger) watermill.LoggerAdapter {
	return &loggerAdapter{base: l}
}

func (l *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	log := l.with(fields)
	if err != nil {
		log = log.With("error", err.Error())
	}
	log.Error(msg)
}

func (l *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.with(fields).Info(msg)
}

func (l *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.with(fields).Debug(msg)
}

// Trace is mapped to debug; watermill traces every message otherwise.
func (l *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	l.with(fields).Debug(msg)
}

func (l *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{base: l.with(fields)}
}

func (l *loggerAdapter) with(fields watermill.LogFields) logger.Logger {
	if len(fields) == 0 {
		return l.base
	}
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return l.base.With(kv...)
}
