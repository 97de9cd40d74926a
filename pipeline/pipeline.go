// Package pipeline runs ordered, typed steps that turn an input into a result.
//
// A Pipeline is immutable after Build and safe for concurrent use. State shared between
// the steps of one run lives in a Context.
package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/result"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	CodeContextMissing = "PIPELINE_CONTEXT_MISSING"
	CodeStepFault      = "PIPELINE_STEP_FAULT"
	CodeInvalid        = "PIPELINE_INVALID"
)

// Builder collects steps for a Pipeline producing Out from In.
type Builder[In, Out any] struct {
	name    string
	log     logger.Logger
	metrics *metrics.Metrics
	steps   []Step
	errs    []error
}

func NewBuilder[In, Out any](name string, log logger.Logger, m *metrics.Metrics) *Builder[In, Out] {
	return &Builder[In, Out]{name: name, log: log, metrics: m}
}

func (b *Builder[In, Out]) Add(steps ...Step) *Builder[In, Out] {
	b.steps = append(b.steps, steps...)
	return b
}

// Configure replaces the step called name with fn applied to it.
// Naming a step that was not added is reported by Build.
func (b *Builder[In, Out]) Configure(name string, fn func(Step) Step) *Builder[In, Out] {
	for i, s := range b.steps {
		if s.Name() == name {
			b.steps[i] = fn(s)
			return b
		}
	}
	b.errs = append(b.errs, fmt.Errorf("configure: no step named %q", name))
	return b
}

// Build sorts the steps by Order, keeping insertion order for ties.
func (b *Builder[In, Out]) Build() (*Pipeline[In, Out], error) {
	if len(b.errs) > 0 {
		return nil, invalid(b.name, b.errs[0].Error())
	}
	if len(b.steps) == 0 {
		return nil, invalid(b.name, "no steps")
	}

	seen := make(map[string]struct{}, len(b.steps))
	for _, s := range b.steps {
		if _, dup := seen[s.Name()]; dup {
			return nil, invalid(b.name, fmt.Sprintf("step %q added twice", s.Name()))
		}
		seen[s.Name()] = struct{}{}
	}

	steps := slices.Clone(b.steps)
	slices.SortStableFunc(steps, func(x, y Step) int { return cmp.Compare(x.Order(), y.Order()) })

	log := b.log
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline[In, Out]{
		name:    b.name,
		steps:   steps,
		log:     log.Named("pipeline." + b.name),
		metrics: b.metrics,
		tracer:  otel.Tracer("recoengine/pipeline"),
	}, nil
}

func invalid(pipeline, msg string) error {
	return errx.New(msg,
		errx.WithCode(CodeInvalid),
		errx.WithDetails(errx.D{"pipeline": pipeline}),
	)
}

type Pipeline[In, Out any] struct {
	name    string
	steps   []Step
	log     logger.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func (p *Pipeline[In, Out]) Name() string { return p.name }

// Steps returns the step names in execution order.
func (p *Pipeline[In, Out]) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs the pipeline with a fresh Context.
func (p *Pipeline[In, Out]) Execute(ctx context.Context, in In) result.Result[Out] {
	return p.ExecuteWith(ctx, in, NewContext())
}

// ExecuteWith runs the pipeline with a caller supplied Context.
//
// Steps run in order until one returns an Out, which ends the run. An error from a step
// ends the run with that error. A panic is passed to the step's FailureHandler; the run
// completes only when the handler produces an Out, otherwise it fails naming the step.
func (p *Pipeline[In, Out]) ExecuteWith(ctx context.Context, in In, pc *Context) result.Result[Out] {
	var current any = in

	for _, step := range p.steps {
		if !step.Enabled() {
			p.observe(ctx, step, metrics.OutcomeSkipped, 0)
			continue
		}
		if err := ctx.Err(); err != nil {
			return result.FromError[Out](errx.Wrap(err, errx.WithDetails(errx.D{"step": step.Name()})))
		}

		out, recovered, err := p.run(ctx, step, current, pc)
		if err != nil {
			return result.FromError[Out](p.stepFailure(step, err))
		}
		if v, ok := out.(Out); ok {
			return result.Ok(v)
		}
		if recovered {
			var zero Out
			return result.FromError[Out](p.stepFailure(step, errx.New(
				fmt.Sprintf("step %q recovered with %T instead of %T", step.Name(), out, zero),
				errx.WithCode(CodeStepFault),
				errx.WithType(errx.T_Internal),
			)))
		}
		current = out
	}

	var zero Out
	return result.FromError[Out](errx.New(
		fmt.Sprintf("pipeline %q ended without producing %T", p.name, zero),
		errx.WithCode(CodeStepFault),
		errx.WithType(errx.T_Internal),
		errx.WithDetails(errx.D{"pipeline": p.name, "last_output": fmt.Sprintf("%T", current)}),
	))
}

// stepFailure attaches the step to err unless a deeper layer already did.
func (p *Pipeline[In, Out]) stepFailure(step Step, err error) error {
	d := errx.D{"pipeline": p.name}
	if _, ok := errx.AsErrorX(err).Details()["step"]; !ok {
		d["step"] = step.Name()
	}
	return errx.Wrap(err, errx.WithDetails(d))
}

// run executes step. recovered reports that out came from a FailureHandler after a panic.
func (p *Pipeline[In, Out]) run(
	ctx context.Context,
	step Step,
	input any,
	pc *Context,
) (out any, recovered bool, err error) {
	ctx, span := p.tracer.Start(ctx, p.name+"."+step.Name(),
		trace.WithAttributes(attribute.Int("pipeline.step.order", step.Order())),
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			recovered = true
			out, err = p.recoverStep(ctx, step, input, pc, r)
		}

		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		p.observe(ctx, step, outcome, time.Since(start))
	}()

	out, err = step.Execute(ctx, input, pc)
	return out, false, err
}

func (p *Pipeline[In, Out]) recoverStep(ctx context.Context, step Step, input any, pc *Context, r any) (any, error) {
	fault := errx.New(fmt.Sprintf("step %q panicked: %v", step.Name(), r),
		errx.WithCode(CodeStepFault),
		errx.WithType(errx.T_Internal),
		errx.WithDetails(errx.D{
			"step":  step.Name(),
			"stack": string(debug.Stack()),
		}),
	)
	p.log.WithContext(ctx).With("step", step.Name()).Errorx(fault)

	fh, ok := step.(FailureHandler)
	if !ok {
		return nil, fault
	}
	return handleSafely(ctx, fh, input, pc, fault)
}

func handleSafely(ctx context.Context, fh FailureHandler, input any, pc *Context, fault error) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fault
		}
	}()
	return fh.HandleFailure(ctx, input, pc, fault)
}

func (p *Pipeline[In, Out]) observe(ctx context.Context, step Step, outcome string, d time.Duration) {
	p.metrics.ObserveStep(p.name, step.Name(), outcome, d)
	p.log.WithContext(ctx).With(
		"step", step.Name(),
		"outcome", outcome,
		"duration", d.String(),
	).Debug("pipeline step finished")
}
