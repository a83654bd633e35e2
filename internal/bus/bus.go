// Package bus is the synchronous command/event dispatcher the window
// manager's transitions are written against.
//
// Commands have exactly one handler and return a Response. Events have any
// number of subscribers, called in registration order. Dispatch is a plain
// call stack: a handler may Invoke or Publish again and the nested dispatch
// finishes before the outer handler resumes.
//
// A Bus is not safe for concurrent use. Callers serialize access onto one
// goroutine.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoHandler is returned when a command is invoked with no handler registered.
var ErrNoHandler = errors.New("no handler registered")

// Response is the synchronous result of a command.
type Response struct {
	Data any
	Err  error
}

// OK builds a successful response.
func OK(data any) Response {
	return Response{Data: data}
}

// Fail builds a failed response.
func Fail(err error) Response {
	return Response{Err: err}
}

// Failed reports whether the command failed.
func (r Response) Failed() bool {
	return r.Err != nil
}

// Observer receives one call per completed dispatch. Used for metrics.
type Observer interface {
	CommandDispatched(name string, depth int, err error)
	EventPublished(name string, subscribers int)
}

type commandHandler func(ctx context.Context, cmd any) Response

type subscriber struct {
	name string
	fn   func(ctx context.Context, event any) error
}

// Bus routes commands and events by their Go type.
type Bus struct {
	logger   *slog.Logger
	commands map[string]commandHandler
	events   map[string][]subscriber
	depth    int
	observer Observer
}

// New creates an empty bus. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:   logger.With("package", "bus"),
		commands: make(map[string]commandHandler),
		events:   make(map[string][]subscriber),
	}
}

// SetObserver installs o to be told about every dispatch.
func (b *Bus) SetObserver(o Observer) {
	b.observer = o
}

// Depth returns the current nesting level of dispatch. Zero outside any handler.
func (b *Bus) Depth() int {
	return b.depth
}

func topic[T any]() string {
	return fmt.Sprintf("%T", *new(T))
}

// HandleCommand registers the handler for command type C. Registering a
// second handler for the same type panics.
func HandleCommand[C any](b *Bus, fn func(ctx context.Context, cmd C) Response) {
	name := topic[C]()
	if _, dup := b.commands[name]; dup {
		panic(fmt.Sprintf("bus: duplicate handler for command %s", name))
	}
	b.commands[name] = func(ctx context.Context, cmd any) Response {
		return fn(ctx, cmd.(C))
	}
}

// Invoke dispatches cmd to its handler and returns the handler's response.
func Invoke[C any](ctx context.Context, b *Bus, cmd C) Response {
	name := topic[C]()
	h, ok := b.commands[name]
	if !ok {
		return Fail(fmt.Errorf("command %s: %w", name, ErrNoHandler))
	}

	b.depth++
	depth := b.depth
	defer func() { b.depth-- }()

	b.logger.Debug("dispatch", "command", name, "depth", depth)
	resp := h(ctx, cmd)
	if resp.Err != nil {
		b.logger.Debug("command failed", "command", name, "depth", depth, "error", resp.Err)
	}
	if b.observer != nil {
		b.observer.CommandDispatched(name, depth, resp.Err)
	}
	return resp
}

// Subscribe registers fn for events of type E. The name identifies the
// subscriber in logs.
func Subscribe[E any](b *Bus, name string, fn func(ctx context.Context, event E) error) {
	t := topic[E]()
	b.events[t] = append(b.events[t], subscriber{
		name: name,
		fn: func(ctx context.Context, event any) error {
			return fn(ctx, event.(E))
		},
	})
}

// Publish calls every subscriber of E in registration order. Subscriber
// errors are logged and do not stop later subscribers.
func Publish[E any](ctx context.Context, b *Bus, event E) {
	t := topic[E]()
	subs := b.events[t]

	b.depth++
	depth := b.depth
	defer func() { b.depth-- }()

	b.logger.Debug("publish", "event", t, "subscribers", len(subs), "depth", depth)
	for _, s := range subs {
		if err := s.fn(ctx, event); err != nil {
			b.logger.Error("Failed to handle event", "event", t, "name", s.name, "error", err)
		}
	}
	if b.observer != nil {
		b.observer.EventPublished(t, len(subs))
	}
}
