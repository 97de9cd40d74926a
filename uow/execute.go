package uow

import (
	"context"
	"fmt"
	"runtime"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/result"
)

const CodePanicRecovered = "PANIC_RECOVERED"

// ExecuteInTransaction begins a transaction, runs fn and commits when fn succeeds.
// When fn fails or panics the transaction is rolled back before the failure is returned,
// so none of fn's writes become visible. A rollback error is logged and never replaces
// the original failure.
func ExecuteInTransaction[T any](
	ctx context.Context,
	u *UnitOfWork,
	fn func(ctx context.Context, u *UnitOfWork) (T, error),
) (res result.Result[T]) {
	err := u.BeginTransaction(ctx)
	if err != nil {
		return result.FromError[T](err)
	}

	defer func() {
		if r := recover(); r != nil {
			stackTrace := make([]byte, 4096) // 4KB
			stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]

			u.rollbackQuietly(ctx)
			res = result.FromError[T](errx.New(fmt.Sprintf("panic in transaction: %v", r),
				errx.WithCode(CodePanicRecovered),
				errx.WithType(errx.T_Internal),
				errx.WithDetails(errx.D{
					"stack_trace":  string(stackTrace),
					"panic_values": fmt.Sprintf("%v", r),
				}),
			))
		}
	}()

	value, err := fn(ctx, u)
	if err != nil {
		u.rollbackQuietly(ctx)
		return result.FromError[T](err)
	}

	err = u.CommitTransaction(ctx)
	if err != nil {
		return result.FromError[T](err)
	}

	return result.Ok(value)
}

func (u *UnitOfWork) rollbackQuietly(ctx context.Context) {
	err := u.RollbackTransaction(context.WithoutCancel(ctx))
	if err != nil {
		u.log.WithContext(ctx).Named("rollback").Errorx(errx.Wrap(err))
	}
}
