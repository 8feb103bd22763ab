package relay

import (
	"context"
	"fmt"

	"modmail/internal/infrastructure/discord"
	"modmail/internal/shared/logger"
	"modmail/internal/shared/tasks"
)

// EventSource is the consuming side of a gateway session.
type EventSource interface {
	Next(ctx context.Context) (*discord.Event, error)
}

// Dispatcher pulls events off the gateway and hands each one to its own
// tracked goroutine, so a slow handler never blocks the stream.
type Dispatcher struct {
	source  EventSource
	service *Service
	tracker *tasks.Tracker
	log     logger.Interface
}

func NewDispatcher(source EventSource, service *Service, tracker *tasks.Tracker, log logger.Interface) *Dispatcher {
	return &Dispatcher{
		source:  source,
		service: service,
		tracker: tracker,
		log:     log,
	}
}

// Run consumes events until ctx is canceled or the stream fails. In-flight
// handlers are always drained before Run returns; cancellation stops intake,
// not work already started.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer func() {
		d.log.Infow("draining in-flight handlers", "in_flight", d.tracker.InFlight())
		<-d.tracker.Drain()
		d.log.Infow("all handlers finished")
	}()

	// Handlers keep running after shutdown begins; give them a context that
	// survives the cancellation that stops intake.
	handlerCtx := context.WithoutCancel(ctx)

	for {
		ev, err := d.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("event stream failed: %w", err)
		}

		event := ev
		d.tracker.Go(d.log, "relay.event."+event.Kind, func() {
			if err := d.service.HandleEvent(handlerCtx, event); err != nil {
				d.log.Errorw("event handler failed", "event", event.Kind, "error", err)
			}
		})
	}
}
