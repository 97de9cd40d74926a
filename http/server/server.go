// Package server runs the engine's operational HTTP endpoints on Fiber.
package server

import (
	"context"
	"net/http"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
)

// HTTPServer is a Fiber app with priority-ordered middleware. Use NewHTTPServer to create one.
type HTTPServer struct {
	cfg        Config
	router     *fiber.App
	listenAddr string
}

// NewHTTPServer creates a server with the middlewares applied in descending priority.
func NewHTTPServer(cfg Config, middlewares []Middleware) *HTTPServer {
	router := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		ErrorHandler:          customErrorHandler(cfg.HideErrorDetails),
		DisableStartupMessage: true,
		Immutable:             true,
	})

	applyMiddlewares(router, middlewares)

	return &HTTPServer{
		cfg:        cfg,
		router:     router,
		listenAddr: cfg.Address(),
	}
}

// RegisterRouter registers routes with the server using the provided register function.
func (s *HTTPServer) RegisterRouter(registerFunc func(r fiber.Router)) {
	registerFunc(s.router)
}

// Start listens on the configured address until Stop is called.
func (s *HTTPServer) Start() error {
	return s.router.Listen(s.listenAddr)
}

// Stop waits for in-flight requests until ctx is done.
func (s *HTTPServer) Stop(ctx context.Context) error {
	return errx.Wrap(s.router.ShutdownWithContext(ctx))
}

// Test serves req in memory. Timeout -1 disables the Fiber test deadline.
func (s *HTTPServer) Test(req *http.Request) (*http.Response, error) {
	return s.router.Test(req, -1)
}
