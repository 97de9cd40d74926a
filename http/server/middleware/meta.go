package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rise-and-shine/recoengine/http/server"
	"github.com/rise-and-shine/recoengine/meta"
	"github.com/rise-and-shine/recoengine/tracing"
)

const headerActorID = "X-Actor-ID"

// NewMetaInjectMW injects the trace id, service identity and caller id into the request context.
func NewMetaInjectMW() server.Middleware {
	return server.Middleware{
		Priority: 700,
		Handler: func(c *fiber.Ctx) error {
			ctx := c.UserContext()

			metaData := map[meta.ContextKey]string{ //nolint:exhaustive // only keys known at the edge
				meta.TraceID:        tracing.TraceID(ctx),
				meta.ActorID:        c.Get(headerActorID),
				meta.ServiceName:    meta.GetServiceName(),
				meta.ServiceVersion: meta.GetServiceVersion(),
			}
			if meta.Get(ctx, meta.TraceID) != "" {
				delete(metaData, meta.TraceID)
			}

			c.SetUserContext(meta.InjectMetaToContext(ctx, metaData))

			return c.Next()
		},
	}
}
