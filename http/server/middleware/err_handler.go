package middleware

import (
	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/rise-and-shine/recoengine/http/server"
)

// HeaderErrorCode repeats the failure code of an error response for proxies and log shippers.
const HeaderErrorCode = "X-Error-Code"

// NewErrorHandlerMW turns handler errors into result.Failure bodies.
// Responses a handler already wrote with an error status are kept as they are.
func NewErrorHandlerMW(hideDetails bool) server.Middleware {
	return server.Middleware{
		Priority: 400,
		Handler: func(c *fiber.Ctx) error {
			err := c.Next()
			if err == nil || c.Response().StatusCode() >= fiber.StatusBadRequest {
				return err
			}

			c.Set(HeaderErrorCode, errx.AsErrorX(err).Code())
			return server.WriteErrorResponse(c, err, hideDetails)
		},
	}
}
