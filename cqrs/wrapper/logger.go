package wrapper

import (
	"context"
	"time"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/cqrs"
	"github.com/rise-and-shine/recoengine/logger"
)

type loggerWrapper[R cqrs.Request, O any] struct {
	base[R, O]

	logger logger.Logger
}

// NewLogger logs every execution with its input, duration and, on failure, the coded error.
func NewLogger[R cqrs.Request, O any](log logger.Logger) cqrs.WrapFunc[R, O] {
	return func(next cqrs.Handler[R, O]) cqrs.Handler[R, O] {
		return &loggerWrapper[R, O]{
			base:   base[R, O]{next: next},
			logger: log.Named("cqrs.logger").With("operation_id", next.OperationID()),
		}
	}
}

func (w *loggerWrapper[R, O]) Handle(ctx context.Context, req R) (O, error) {
	start := time.Now()

	out, err := w.next.Handle(ctx, req)

	log := w.logger.
		WithContext(ctx).
		With("execution_time", time.Since(start).String()).
		With("input", req)

	if err != nil {
		e := errx.AsErrorX(err)
		log.With("error", map[string]any{
			"code":    e.Code(),
			"message": e.Error(),
			"type":    e.Type().String(),
			"trace":   e.Trace(),
			"fields":  e.Fields(),
			"details": e.Details(),
		}).Error(req.RequestName())
	} else {
		log.Info(req.RequestName())
	}

	return out, err
}
