package pipeline

import (
	"context"
	"fmt"

	"github.com/code19m/errx"
)

// Step is one stage of a pipeline. Input is the previous step's output.
type Step interface {
	Name() string
	Order() int
	Enabled() bool
	Execute(ctx context.Context, input any, pc *Context) (any, error)
}

// FailureHandler is implemented by steps that can recover from a panic in Execute.
// The run completes only if the returned value is the pipeline's output type.
type FailureHandler interface {
	HandleFailure(ctx context.Context, input any, pc *Context, fault error) (any, error)
}

// TypedStep adapts a typed function to Step.
type TypedStep[In, Out any] struct {
	name      string
	order     int
	fn        func(ctx context.Context, in In, pc *Context) (Out, error)
	onFailure func(ctx context.Context, in In, pc *Context, fault error) (Out, error)
}

func NewStep[In, Out any](
	name string,
	order int,
	fn func(ctx context.Context, in In, pc *Context) (Out, error),
) *TypedStep[In, Out] {
	return &TypedStep[In, Out]{name: name, order: order, fn: fn}
}

// OnFailure sets the panic recovery of the step.
func (s *TypedStep[In, Out]) OnFailure(
	fn func(ctx context.Context, in In, pc *Context, fault error) (Out, error),
) *TypedStep[In, Out] {
	s.onFailure = fn
	return s
}

func (s *TypedStep[In, Out]) Name() string  { return s.name }
func (s *TypedStep[In, Out]) Order() int    { return s.order }
func (s *TypedStep[In, Out]) Enabled() bool { return true }

func (s *TypedStep[In, Out]) Execute(ctx context.Context, input any, pc *Context) (any, error) {
	in, err := s.cast(input)
	if err != nil {
		return nil, err
	}
	return s.fn(ctx, in, pc)
}

func (s *TypedStep[In, Out]) HandleFailure(ctx context.Context, input any, pc *Context, fault error) (any, error) {
	if s.onFailure == nil {
		return nil, fault
	}
	in, err := s.cast(input)
	if err != nil {
		return nil, err
	}
	return s.onFailure(ctx, in, pc, fault)
}

func (s *TypedStep[In, Out]) cast(input any) (In, error) {
	in, ok := input.(In)
	if !ok {
		return in, errx.New(fmt.Sprintf("step %q expects %T, got %T", s.name, in, input),
			errx.WithCode(CodeStepFault),
			errx.WithType(errx.T_Internal),
			errx.WithDetails(errx.D{"step": s.name}),
		)
	}
	return in, nil
}

// Predicate decides whether a conditional step runs.
type Predicate func(ctx context.Context, input any, pc *Context) bool

type conditional struct {
	Step

	when Predicate
}

// When runs step only when pred holds. Otherwise the input passes through unchanged.
func When(step Step, pred Predicate) Step {
	return &conditional{Step: step, when: pred}
}

func (c *conditional) Execute(ctx context.Context, input any, pc *Context) (any, error) {
	if !c.when(ctx, input, pc) {
		return input, nil
	}
	return c.Step.Execute(ctx, input, pc)
}

func (c *conditional) HandleFailure(ctx context.Context, input any, pc *Context, fault error) (any, error) {
	if fh, ok := c.Step.(FailureHandler); ok {
		return fh.HandleFailure(ctx, input, pc, fault)
	}
	return nil, fault
}

type disabled struct {
	Step
}

// Disable keeps step in the pipeline but never runs it.
func Disable(step Step) Step {
	return disabled{Step: step}
}

func (disabled) Enabled() bool { return false }

type reordered struct {
	Step

	order int
}

// WithOrder moves step to a different position.
func WithOrder(step Step, order int) Step {
	return &reordered{Step: step, order: order}
}

func (r *reordered) Order() int { return r.order }

func (r *reordered) HandleFailure(ctx context.Context, input any, pc *Context, fault error) (any, error) {
	if fh, ok := r.Step.(FailureHandler); ok {
		return fh.HandleFailure(ctx, input, pc, fault)
	}
	return nil, fault
}
