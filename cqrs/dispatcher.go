package cqrs

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"time"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/result"
)

const (
	CodeNoHandler             = "NO_HANDLER"
	CodePanicRecovered        = "PANIC_RECOVERED"
	CodeHandlerOutputMismatch = "HANDLER_OUTPUT_MISMATCH"
)

// Dispatcher routes requests through a Registry. It holds no per-request state.
type Dispatcher struct {
	registry *Registry
	logger   logger.Logger
	metrics  *metrics.Metrics
}

func NewDispatcher(registry *Registry, log logger.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   log.Named("cqrs.dispatcher"),
		metrics:  m,
	}
}

// Dispatch sends req to its handler and returns the typed output. A missing handler is a
// NO_HANDLER failure, a handler panic is a PANIC_RECOVERED failure, and an output that is
// not an O is a HANDLER_OUTPUT_MISMATCH failure.
func Dispatch[O any](ctx context.Context, d *Dispatcher, req Request) result.Result[O] {
	res := d.Send(ctx, req)
	if res.IsFail() {
		return result.Fail[O](res.Failure())
	}

	out, _ := res.Value()
	var zero O
	if out == nil && nilable(reflect.TypeFor[O]()) {
		return result.Ok(zero)
	}

	typed, ok := out.(O)
	if !ok {
		return result.FromError[O](errx.New("handler returned an unexpected type",
			errx.WithCode(CodeHandlerOutputMismatch),
			errx.WithType(errx.T_Internal),
			errx.WithDetails(errx.D{
				"request_type": fmt.Sprintf("%T", req),
				"expected":     fmt.Sprintf("%T", zero),
				"actual":       fmt.Sprintf("%T", out),
			}),
		))
	}
	return result.Ok(typed)
}

// Send dispatches req without knowing its output type.
func (d *Dispatcher) Send(ctx context.Context, req Request) (res result.Result[any]) {
	if req == nil {
		return result.FromError[any](errx.New("nil request",
			errx.WithCode(CodeNoHandler),
			errx.WithType(errx.T_NotFound),
		))
	}

	e, ok := d.registry.lookup(req)
	if !ok {
		res = result.FromError[any](errx.New(
			fmt.Sprintf("no handler registered for %T", req),
			errx.WithCode(CodeNoHandler),
			errx.WithType(errx.T_NotFound),
			errx.WithDetails(errx.D{"request_type": fmt.Sprintf("%T", req)}),
		))
		d.observe(ctx, req.RequestName(), "", "", res, 0)
		return res
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			stackTrace := make([]byte, 4096) // 4KB
			stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]

			res = result.FromError[any](errx.New(
				fmt.Sprintf("panic in handler %s: %v", e.operationID, r),
				errx.WithCode(CodePanicRecovered),
				errx.WithType(errx.T_Internal),
				errx.WithDetails(errx.D{
					"stack_trace":  string(stackTrace),
					"panic_values": fmt.Sprintf("%v", r),
				}),
			))
		}
		d.observe(ctx, req.RequestName(), e.operationID, e.kind(), res, time.Since(start))
	}()

	out, err := e.invoke(ctx, req)
	if err != nil {
		return result.FromError[any](err)
	}
	return result.Ok(out)
}

func (d *Dispatcher) observe(ctx context.Context, requestType, operationID, kind string, res result.Result[any], took time.Duration) {
	d.metrics.ObserveDispatch(requestType, res.IsOk(), took)

	log := d.logger.WithContext(ctx).With(
		"request_type", requestType,
		"operation_id", operationID,
		"kind", kind,
		"success", res.IsOk(),
		"execution_time", took.String(),
	)
	if res.IsOk() {
		log.Debug("request dispatched")
		return
	}

	f := res.Failure()
	log.With("error", map[string]any{
		"code":    f.Code,
		"message": f.Message,
		"type":    f.Type,
		"details": f.Details,
	}).Warn("request failed")
}

func nilable(t reflect.Type) bool {
	switch t.Kind() { //nolint:exhaustive // only kinds that accept nil
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}
