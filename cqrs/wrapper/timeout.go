package wrapper

import (
	"context"
	"time"

	"github.com/rise-and-shine/recoengine/cqrs"
)

type timeoutWrapper[R cqrs.Request, O any] struct {
	base[R, O]

	timeout time.Duration
}

func NewTimeout[R cqrs.Request, O any](timeout time.Duration) cqrs.WrapFunc[R, O] {
	return func(next cqrs.Handler[R, O]) cqrs.Handler[R, O] {
		return &timeoutWrapper[R, O]{base: base[R, O]{next: next}, timeout: timeout}
	}
}

func (w *timeoutWrapper[R, O]) Handle(ctx context.Context, req R) (O, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	return w.next.Handle(ctx, req)
}
