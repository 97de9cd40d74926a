package middleware

import (
	"time"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/rise-and-shine/recoengine/http/server"
	"github.com/rise-and-shine/recoengine/logger"
)

// NewLoggerMW logs every request; the level follows the status code
// (info below 400, warn for 4xx, error for 5xx).
func NewLoggerMW(log logger.Logger) server.Middleware {
	log = log.Named("middleware.logger")
	return server.Middleware{
		Priority: 500,
		Handler: func(c *fiber.Ctx) error {
			start := time.Now()

			err := c.Next()

			statusCode := c.Response().StatusCode()
			if err != nil && statusCode < fiber.StatusBadRequest {
				statusCode = fiber.StatusInternalServerError
			}

			l := log.WithContext(c.UserContext()).
				With("http_status_code", statusCode).
				With("http_method", c.Method()).
				With("http_path", c.Path()).
				With("http_route", c.Route().Path).
				With("duration", time.Since(start).String())

			if err != nil {
				e := errx.AsErrorX(err)
				l = l.With("error", map[string]any{
					"code":    e.Code(),
					"message": e.Error(),
					"type":    e.Type().String(),
					"trace":   e.Trace(),
					"fields":  e.Fields(),
					"details": e.Details(),
				})
			}

			switch {
			case statusCode >= fiber.StatusInternalServerError:
				l.Error("request failed")
			case statusCode >= fiber.StatusBadRequest:
				l.Warn("request rejected")
			default:
				l.Debug("request processed")
			}

			return err
		},
	}
}
