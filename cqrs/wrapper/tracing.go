package wrapper

import (
	"context"

	"github.com/rise-and-shine/recoengine/cqrs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type tracingWrapper[R cqrs.Request, O any] struct {
	base[R, O]

	tracer trace.Tracer
}

func NewTracing[R cqrs.Request, O any]() cqrs.WrapFunc[R, O] {
	return func(next cqrs.Handler[R, O]) cqrs.Handler[R, O] {
		return &tracingWrapper[R, O]{
			base:   base[R, O]{next: next},
			tracer: otel.Tracer("recoengine/cqrs"),
		}
	}
}

func (w *tracingWrapper[R, O]) Handle(ctx context.Context, req R) (O, error) {
	ctx, span := w.tracer.Start(ctx, w.next.OperationID(),
		trace.WithAttributes(attribute.String("cqrs.request", req.RequestName())),
	)
	defer span.End()

	out, err := w.next.Handle(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return out, err
}
