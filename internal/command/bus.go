/*
Package command implements the in-process command bus that decouples
producers of dispatch intents (the participant service, bus listeners)
from the connections that actually write to sockets (the registry).

One command type routes to exactly one handler. A middleware chain fixed
at construction wraps every dispatch. Handle is synchronous from the
caller's perspective; handlers are free to schedule further asynchronous
work.
*/
package command

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	// ErrHandlerExists reports a second registration for a command type.
	ErrHandlerExists = errors.New("command: handler already registered")
	// ErrNoHandler reports a dispatch for a type nobody registered.
	ErrNoHandler = errors.New("command: no handler registered")
)

// HandlerFunc consumes one dispatched command.
type HandlerFunc func(ctx context.Context, cmd any) error

// Middleware wraps every dispatch with a cross-cutting concern.
type Middleware func(next HandlerFunc) HandlerFunc

// Dispatcher is the producer-facing side of the bus.
type Dispatcher interface {
	Handle(ctx context.Context, cmd any) error
}

// Interface guard
var _ Dispatcher = (*Bus)(nil)

// Bus routes commands by concrete type.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]HandlerFunc
	chain    []Middleware
}

// NewBus builds a bus whose middleware chain applies to every handler in
// registration order: the first middleware is the outermost wrapper.
func NewBus(chain ...Middleware) *Bus {
	return &Bus{
		handlers: make(map[reflect.Type]HandlerFunc),
		chain:    chain,
	}
}

// Register binds a handler to the concrete type of cmd. The zero value of
// the command type serves as the registration key.
func (b *Bus) Register(cmd any, handler HandlerFunc) error {
	key := reflect.TypeOf(cmd)

	for i := len(b.chain) - 1; i >= 0; i-- {
		handler = b.chain[i](handler)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.handlers[key]; dup {
		return fmt.Errorf("%w: %s", ErrHandlerExists, key)
	}
	b.handlers[key] = handler
	return nil
}

// Handle dispatches cmd to its registered handler.
func (b *Bus) Handle(ctx context.Context, cmd any) error {
	key := reflect.TypeOf(cmd)

	b.mu.RLock()
	handler, ok := b.handlers[key]
	b.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, key)
	}
	return handler(ctx, cmd)
}
