// Package result provides Result, the tagged success/failure value returned by every
// public boundary of the engine (dispatcher, pipeline, unit of work).
package result

import (
	"errors"
	"fmt"

	"github.com/code19m/errx"
)

// CodeInternal is used for failures built from errors that carry no code.
const CodeInternal = "INTERNAL_ERROR"

// Failure describes why an operation did not produce a value.
type Failure struct {
	Code    string            `json:"code"`
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Details map[string]any    `json:"details,omitempty"`

	err error
}

// Error implements error so a Failure can flow through plain Go error paths.
func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Unwrap exposes the coded error the failure was built from.
func (f Failure) Unwrap() error {
	return f.err
}

// Result holds either a value of type T or a Failure. The zero Result is a failure
// with CodeInternal, so an uninitialised Result is never mistaken for success.
type Result[T any] struct {
	value   T
	failure *Failure
	ok      bool
}

// Ok wraps v as a successful result.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Fail builds a failed result from a Failure.
func Fail[T any](f Failure) Result[T] {
	if f.Code == "" {
		f.Code = CodeInternal
	}
	return Result[T]{failure: &f}
}

// FromError converts err into a failed result. A nil err is a programmer error and
// still yields a failure rather than a success with a zero value.
func FromError[T any](err error) Result[T] {
	return Fail[T](NewFailure(err))
}

// Of returns Ok(v) when err is nil, FromError(err) otherwise.
func Of[T any](v T, err error) Result[T] {
	if err != nil {
		return FromError[T](err)
	}
	return Ok(v)
}

// NewFailure maps an error onto a Failure, keeping errx code, type, fields and details.
func NewFailure(err error) Failure {
	if err == nil {
		err = errx.New("nil error converted to failure", errx.WithCode(CodeInternal))
	}

	var f Failure
	if errors.As(err, &f) {
		return f
	}

	e := errx.AsErrorX(err)
	f = Failure{
		Code:    e.Code(),
		Type:    e.Type().String(),
		Message: err.Error(),
		Fields:  e.Fields(),
		Details: e.Details(),
		err:     e,
	}
	if f.Code == "" {
		f.Code = CodeInternal
	}
	return f
}

func (r Result[T]) IsOk() bool {
	return r.ok
}

func (r Result[T]) IsFail() bool {
	return !r.ok
}

// Value returns the value and true on success, the zero value and false otherwise.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.ok
}

// MustValue returns the value or panics on a failed result. Intended for tests.
func (r Result[T]) MustValue() T {
	if !r.ok {
		panic("result: MustValue on failure: " + r.Failure().Error())
	}
	return r.value
}

// Failure returns the failure description. It is the zero Failure on success.
func (r Result[T]) Failure() Failure {
	if r.ok {
		return Failure{}
	}
	if r.failure == nil {
		return Failure{Code: CodeInternal, Message: "uninitialised result"}
	}
	return *r.failure
}

// Code is a shortcut for Failure().Code; empty on success.
func (r Result[T]) Code() string {
	if r.ok {
		return ""
	}
	return r.Failure().Code
}

// Err returns the failure as a coded error, or nil on success.
func (r Result[T]) Err() error {
	if r.ok {
		return nil
	}
	f := r.Failure()
	if f.err != nil {
		return f.err
	}
	return errx.New(f.Message, errx.WithCode(f.Code), errx.WithFields(f.Fields), errx.WithDetails(f.Details))
}

// Unwrap returns the value and error, for call sites that prefer Go's (T, error) style.
func (r Result[T]) Unwrap() (T, error) {
	return r.value, r.Err()
}
