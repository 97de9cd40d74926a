package server

import (
	"errors"
	"strconv"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/rise-and-shine/recoengine/meta"
	"github.com/rise-and-shine/recoengine/result"
)

const codeRouterError = "ROUTER_ERROR"

// errorResponse is the body of every failed request.
type errorResponse struct {
	TraceID string         `json:"trace_id,omitempty"`
	Error   result.Failure `json:"error"`
}

// WriteErrorResponse writes err as a result.Failure with the status of its errx type.
func WriteErrorResponse(c *fiber.Ctx, err error, hideDetails bool) error {
	e := toErrorX(err)

	failure := result.NewFailure(e)
	if hideDetails {
		failure.Details = nil
	}

	c.Status(statusOf(e.Type()))
	_ = c.JSON(errorResponse{
		TraceID: meta.Get(c.UserContext(), meta.TraceID),
		Error:   failure,
	})

	return e
}

// customErrorHandler leaves responses that already carry an error status untouched.
func customErrorHandler(hideDetails bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if r := c.Response(); r != nil && r.StatusCode() >= fiber.StatusBadRequest {
			return nil
		}
		_ = WriteErrorResponse(c, err, hideDetails)
		return nil
	}
}

func statusOf(t errx.Type) int {
	switch t {
	case errx.T_Authentication:
		return fiber.StatusUnauthorized
	case errx.T_Forbidden:
		return fiber.StatusForbidden
	case errx.T_NotFound:
		return fiber.StatusNotFound
	case errx.T_Validation:
		return fiber.StatusBadRequest
	case errx.T_Conflict:
		return fiber.StatusConflict
	case errx.T_Throttling:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// toErrorX gives router errors (unknown route, bad method) a code and a matching type.
func toErrorX(err error) errx.ErrorX {
	var fiberErr *fiber.Error
	if !errors.As(err, &fiberErr) {
		return errx.AsErrorX(err)
	}

	var t errx.Type
	switch code := fiberErr.Code; {
	case code == fiber.StatusUnauthorized:
		t = errx.T_Authentication
	case code == fiber.StatusForbidden:
		t = errx.T_Forbidden
	case code == fiber.StatusNotFound:
		t = errx.T_NotFound
	case code == fiber.StatusConflict:
		t = errx.T_Conflict
	case code == fiber.StatusTooManyRequests:
		t = errx.T_Throttling
	case code >= 400 && code < 500:
		t = errx.T_Validation
	default:
		t = errx.T_Internal
	}

	return errx.AsErrorX(errx.New(fiberErr.Message,
		errx.WithCode(codeRouterError),
		errx.WithType(t),
		errx.WithDetails(errx.D{"fiber_code": strconv.Itoa(fiberErr.Code)}),
	))
}
