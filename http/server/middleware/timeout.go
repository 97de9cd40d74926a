package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/rise-and-shine/recoengine/http/server"
)

// CodeRequestTimeout marks requests whose handler outlived the request deadline.
const CodeRequestTimeout = "REQUEST_TIMEOUT"

// NewTimeoutMW gives every request a deadline. A handler failing after the deadline
// is reported as REQUEST_TIMEOUT. A non-positive duration disables it.
func NewTimeoutMW(duration time.Duration) server.Middleware {
	return server.Middleware{
		Priority: 300,
		Handler: func(c *fiber.Ctx) error {
			if duration <= 0 {
				return c.Next()
			}

			ctx, cancel := context.WithTimeout(c.UserContext(), duration)
			defer cancel()
			c.SetUserContext(ctx)

			err := c.Next()
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return errx.Wrap(err,
					errx.WithCode(CodeRequestTimeout),
					errx.WithType(errx.T_Internal),
					errx.WithDetails(errx.D{"timeout": duration.String()}),
				)
			}
			return err
		},
	}
}
