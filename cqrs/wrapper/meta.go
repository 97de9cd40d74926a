package wrapper

import (
	"context"

	"github.com/rise-and-shine/recoengine/cqrs"
	"github.com/rise-and-shine/recoengine/meta"
	"github.com/rise-and-shine/recoengine/tracing"
)

type metaWrapper[R cqrs.Request, O any] struct {
	base[R, O]
}

// NewMeta makes sure the context carries a trace id and the service identity.
// Values already present in the context are kept.
func NewMeta[R cqrs.Request, O any]() cqrs.WrapFunc[R, O] {
	return func(next cqrs.Handler[R, O]) cqrs.Handler[R, O] {
		return &metaWrapper[R, O]{base: base[R, O]{next: next}}
	}
}

func (w *metaWrapper[R, O]) Handle(ctx context.Context, req R) (O, error) {
	metadata := map[meta.ContextKey]string{} //nolint:exhaustive // only keys we own
	if meta.Get(ctx, meta.TraceID) == "" {
		metadata[meta.TraceID] = tracing.TraceID(ctx)
	}
	if meta.Get(ctx, meta.ServiceName) == "" {
		metadata[meta.ServiceName] = meta.GetServiceName()
		metadata[meta.ServiceVersion] = meta.GetServiceVersion()
	}
	if len(metadata) > 0 {
		ctx = meta.InjectMetaToContext(ctx, metadata)
	}

	return w.next.Handle(ctx, req)
}
