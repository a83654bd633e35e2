package daemon

import (
	"context"
	"errors"
	"log/slog"

	"github.com/1broseidon/tiletree/internal/platform"
	"github.com/thejerf/suture/v4"
)

// Service is a supervised component. String names it in supervisor logs.
type Service interface {
	String() string
	suture.Service
}

// NewSupervisor creates the root supervisor, logging its lifecycle events
// through logger.
func NewSupervisor(name string, logger *slog.Logger) *suture.Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return suture.New(name, suture.Spec{
		EventHook: eventHook(logger.With("component", "supervisor")),
	})
}

func eventHook(logger *slog.Logger) suture.EventHook {
	return func(ei suture.Event) {
		switch e := ei.(type) {
		case suture.EventStopTimeout:
			logger.Info("Service failed to terminate in a timely manner", "supervisor", e.SupervisorName, "service", e.ServiceName)
		case suture.EventServicePanic:
			logger.Warn("Caught a service panic", "service", e.ServiceName, "panic", e.PanicMsg)
			logger.Debug(e.Stacktrace)
		case suture.EventServiceTerminate:
			logger.Error("Service failed", "error", e.Err, "supervisor", e.SupervisorName, "service", e.ServiceName, "restarting", e.Restarting)
		case suture.EventBackoff:
			logger.Debug("Too many service failures - entering the backoff state", "supervisor", e.SupervisorName)
		case suture.EventResume:
			logger.Debug("Exiting backoff state", "supervisor", e.SupervisorName)
		default:
			logger.Warn("Unknown suture supervisor event type", "type", int(e.Type()))
		}
	}
}

// Add registers service with super.
func Add(super *suture.Supervisor, service Service) suture.ServiceToken {
	return super.Add(sanitizeService{Service: service})
}

type sanitizeService struct {
	Service
}

func (s sanitizeService) Serve(ctx context.Context) error {
	return SanitizeError(ctx, s.Service.Serve(ctx))
}

// SanitizeError keeps a service error from being read as a context error
// unless ctx really is done, since suture stops restarting a service that
// returns one.
func SanitizeError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var kept []error
	if errors.Is(err, suture.ErrDoNotRestart) {
		kept = append(kept, suture.ErrDoNotRestart)
	}
	if errors.Is(err, suture.ErrTerminateSupervisorTree) {
		kept = append(kept, suture.ErrTerminateSupervisorTree)
	}
	kept = append(kept, errors.New(err.Error()))
	return errors.Join(kept...)
}

// EventSource forwards window-system events into the control loop.
type EventSource struct {
	daemon *Daemon
}

// NewEventSource creates the service watching d's backend.
func NewEventSource(d *Daemon) *EventSource {
	return &EventSource{daemon: d}
}

func (s *EventSource) String() string {
	return "daemon.EventSource"
}

// Serve blocks in the backend watch until ctx is done.
func (s *EventSource) Serve(ctx context.Context) error {
	d := s.daemon
	return d.backend.Watch(ctx, func(ev platform.Event) {
		if err := d.Post(ctx, func(ctx context.Context) error {
			return d.HandleEvent(ctx, ev)
		}); err != nil {
			d.logger.Debug("dropped window event", "kind", ev.Kind.String(), "error", err)
		}
	})
}
