// Package middleware provides the Fiber middleware of the operational server.
//
// Each middleware declares a Priority; higher values run earlier:
//
//   - Recovery (1000): catches panics in the chain
//   - Tracing (900): opens a server span
//   - MetaInject (700): puts trace and service metadata into the context
//   - Logger (500): logs the request outcome
//   - ErrorHandler (400): writes errors as result.Failure JSON
//   - Timeout (300): bounds the request context and codes late failures
//
// Usage:
//
//	srv := server.NewHTTPServer(cfg, []server.Middleware{
//		middleware.NewRecoveryMW(log),
//		middleware.NewTracingMW(),
//		middleware.NewMetaInjectMW(),
//		middleware.NewLoggerMW(log),
//		middleware.NewErrorHandlerMW(cfg.HideErrorDetails),
//		middleware.NewTimeoutMW(cfg.HandleTimeout),
//	})
package middleware

import (
	"github.com/rise-and-shine/recoengine/http/server"
	"github.com/rise-and-shine/recoengine/logger"
)

// Default returns the full middleware set for cfg.
func Default(cfg server.Config, log logger.Logger) []server.Middleware {
	return []server.Middleware{
		NewRecoveryMW(log),
		NewTracingMW(),
		NewMetaInjectMW(),
		NewLoggerMW(log),
		NewErrorHandlerMW(cfg.HideErrorDetails),
		NewTimeoutMW(cfg.HandleTimeout),
	}
}
