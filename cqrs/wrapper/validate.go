package wrapper

import (
	"context"

	"github.com/rise-and-shine/recoengine/cqrs"
	"github.com/rise-and-shine/recoengine/val"
)

type validationWrapper[R cqrs.Request, O any] struct {
	base[R, O]
}

// NewValidation rejects requests whose `validate` tags do not hold, before the handler runs.
func NewValidation[R cqrs.Request, O any]() cqrs.WrapFunc[R, O] {
	return func(next cqrs.Handler[R, O]) cqrs.Handler[R, O] {
		return &validationWrapper[R, O]{base: base[R, O]{next: next}}
	}
}

func (w *validationWrapper[R, O]) Handle(ctx context.Context, req R) (O, error) {
	if err := val.ValidateSchema(req); err != nil {
		var zero O
		return zero, err
	}
	return w.next.Handle(ctx, req)
}
