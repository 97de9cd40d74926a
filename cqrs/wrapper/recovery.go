package wrapper

import (
	"context"
	"fmt"
	"runtime"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/cqrs"
)

type recoveryWrapper[R cqrs.Request, O any] struct {
	base[R, O]
}

// NewRecovery turns a handler panic into a PANIC_RECOVERED error. The dispatcher already
// recovers; this wrapper is for handlers invoked outside of it.
func NewRecovery[R cqrs.Request, O any]() cqrs.WrapFunc[R, O] {
	return func(next cqrs.Handler[R, O]) cqrs.Handler[R, O] {
		return &recoveryWrapper[R, O]{base: base[R, O]{next: next}}
	}
}

func (w *recoveryWrapper[R, O]) Handle(ctx context.Context, req R) (_ O, err error) {
	defer func() {
		if r := recover(); r != nil {
			stackTrace := make([]byte, 4096) // 4KB
			stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]
			err = errx.New("panic recovered in handler",
				errx.WithCode(cqrs.CodePanicRecovered),
				errx.WithType(errx.T_Internal),
				errx.WithDetails(errx.D{
					"operation_id": w.next.OperationID(),
					"stack_trace":  string(stackTrace),
					"panic_values": fmt.Sprintf("%v", r),
				}),
			)
		}
	}()

	return w.next.Handle(ctx, req)
}
