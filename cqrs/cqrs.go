// Package cqrs routes typed commands and queries to exactly one registered handler.
//
// Handlers are registered on a RegistryBuilder during start-up. Build freezes the set into
// an immutable Registry that a Dispatcher shares across concurrent callers. Dispatch never
// panics and never returns a bare error: every outcome is a result.Result.
package cqrs

import "context"

// Request is implemented by every command and query.
type Request interface {
	RequestName() string
}

// Command is a request that changes state. Embed CommandMarker to implement it.
type Command interface {
	Request
	isCommand()
}

// Query is a read-only request. Embed QueryMarker to implement it.
type Query interface {
	Request
	isQuery()
}

// CommandMarker marks a struct as a Command.
type CommandMarker struct{}

func (CommandMarker) isCommand() {}

// QueryMarker marks a struct as a Query.
type QueryMarker struct{}

func (QueryMarker) isQuery() {}

// Empty is the output of commands that produce no value.
type Empty = struct{}

// Handler handles one request type.
type Handler[R Request, O any] interface {
	// OperationID names the operation in logs, spans and metrics.
	OperationID() string
	Handle(ctx context.Context, req R) (O, error)
}

// WrapFunc decorates a handler with a cross-cutting concern.
type WrapFunc[R Request, O any] func(Handler[R, O]) Handler[R, O]

// HandlerFunc adapts a function to Handler.
type HandlerFunc[R Request, O any] struct {
	ID string
	Fn func(ctx context.Context, req R) (O, error)
}

func (h HandlerFunc[R, O]) OperationID() string { return h.ID }

func (h HandlerFunc[R, O]) Handle(ctx context.Context, req R) (O, error) {
	return h.Fn(ctx, req)
}

// Chain applies wrappers so that the first one is the outermost.
func Chain[R Request, O any](h Handler[R, O], wrappers ...WrapFunc[R, O]) Handler[R, O] {
	for i := len(wrappers) - 1; i >= 0; i-- {
		h = wrappers[i](h)
	}
	return h
}
