package middleware

import (
	"fmt"
	"runtime"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/rise-and-shine/recoengine/http/server"
	"github.com/rise-and-shine/recoengine/logger"
)

const CodePanicRecovered = "PANIC_RECOVERED"

// NewRecoveryMW turns a panic anywhere in the chain into an internal errx error.
func NewRecoveryMW(log logger.Logger) server.Middleware {
	log = log.Named("middleware.recovery")
	return server.Middleware{
		Priority: 1000,
		Handler: func(c *fiber.Ctx) (err error) {
			defer func() {
				if r := recover(); r != nil {
					stackTrace := make([]byte, 4096) // 4KB
					stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]

					log.WithContext(c.UserContext()).
						With("stack_trace", string(stackTrace)).
						With("panic_message", fmt.Sprintf("%v", r)).
						Error("recovered from panic")

					err = errx.New("panic recovered",
						errx.WithCode(CodePanicRecovered),
						errx.WithType(errx.T_Internal),
						errx.WithDetails(errx.D{"panic_message": fmt.Sprintf("%v", r)}),
					)
				}
			}()

			return c.Next()
		},
	}
}
