package cqrs

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/code19m/errx"
)

const CodeDuplicateHandler = "DUPLICATE_HANDLER"

type entry struct {
	operationID string
	isCommand   bool
	invoke      func(ctx context.Context, req Request) (any, error)
}

func (e entry) kind() string {
	if e.isCommand {
		return "command"
	}
	return "query"
}

// RegistryBuilder collects handlers before the registry is frozen.
type RegistryBuilder struct {
	entries map[reflect.Type]entry
	errs    []error
}

func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{entries: make(map[reflect.Type]entry)}
}

// Register adds h as the handler for requests of type R, decorated by wrappers
// (the first wrapper is the outermost). Registering a second handler for the same
// request type makes Build fail.
func Register[R Request, O any](b *RegistryBuilder, h Handler[R, O], wrappers ...WrapFunc[R, O]) {
	key := reflect.TypeFor[R]()
	if _, exists := b.entries[key]; exists {
		b.errs = append(b.errs, errx.New(
			fmt.Sprintf("handler for %s is already registered", key),
			errx.WithCode(CodeDuplicateHandler),
		))
		return
	}

	wrapped := Chain(h, wrappers...)
	var zero R
	_, isCommand := any(zero).(Command)

	b.entries[key] = entry{
		operationID: h.OperationID(),
		isCommand:   isCommand,
		invoke: func(ctx context.Context, req Request) (any, error) {
			typed, ok := req.(R)
			if !ok {
				return nil, errx.New("request type does not match handler",
					errx.WithCode(CodeHandlerOutputMismatch),
					errx.WithDetails(errx.D{"request_type": fmt.Sprintf("%T", req)}),
				)
			}
			return wrapped.Handle(ctx, typed)
		},
	}
}

// Build freezes the registered handlers. It fails if any registration failed.
func (b *RegistryBuilder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, errx.Wrap(b.errs[0], errx.WithDetails(errx.D{"failed_registrations": len(b.errs)}))
	}

	entries := make(map[reflect.Type]entry, len(b.entries))
	for k, v := range b.entries {
		entries[k] = v
	}
	return &Registry{entries: entries}, nil
}

// Registry maps request types to handlers. It is immutable and safe for concurrent use.
type Registry struct {
	entries map[reflect.Type]entry
}

func (r *Registry) lookup(req Request) (entry, bool) {
	e, ok := r.entries[reflect.TypeOf(req)]
	return e, ok
}

// Operations lists the registered operation ids, sorted.
func (r *Registry) Operations() []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.operationID)
	}
	sort.Strings(out)
	return out
}
