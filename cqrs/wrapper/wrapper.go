// Package wrapper provides middleware for cqrs handlers.
//
// Wrappers add cross-cutting concerns such as tracing, logging and timeouts around a
// handler without changing its business logic. Compose them with cqrs.Chain or pass them
// to cqrs.Register; the first wrapper is the outermost.
package wrapper

import (
	"time"

	"github.com/rise-and-shine/recoengine/cqrs"
	"github.com/rise-and-shine/recoengine/logger"
)

// Default returns the standard chain used for every registered handler:
// meta, tracing, logging, validation, then an optional timeout.
func Default[R cqrs.Request, O any](log logger.Logger, timeout time.Duration) []cqrs.WrapFunc[R, O] {
	chain := []cqrs.WrapFunc[R, O]{
		NewMeta[R, O](),
		NewTracing[R, O](),
		NewLogger[R, O](log),
		NewValidation[R, O](),
	}
	if timeout > 0 {
		chain = append(chain, NewTimeout[R, O](timeout))
	}
	return chain
}

type base[R cqrs.Request, O any] struct {
	next cqrs.Handler[R, O]
}

func (b base[R, O]) OperationID() string {
	return b.next.OperationID()
}
