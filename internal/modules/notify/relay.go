// README: Asynchronous fire-and-forget relay fanning events out to sinks.
package notify

import (
	"context"
	"time"

	"github.com/apex/log"

	"routedesk/internal/metrics"
)

// Notifier accepts events without blocking the caller.
type Notifier interface {
	Notify(e Event)
}

// Sink delivers one event over one transport.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e Event) error
}

const (
	DefaultQueueSize   = 256
	DefaultSinkTimeout = 5 * time.Second
)

type Relay struct {
	queue   chan Event
	sinks   []Sink
	timeout time.Duration
}

func NewRelay(size int, sinks ...Sink) *Relay {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Relay{queue: make(chan Event, size), sinks: sinks, timeout: DefaultSinkTimeout}
}

// Notify enqueues e, dropping it when the queue is full.
func (r *Relay) Notify(e Event) {
	select {
	case r.queue <- e:
	default:
		metrics.NotificationsDropped.Inc()
		log.WithField("kind", e.Kind).Warn("notification queue full; dropping event")
	}
}

// Run delivers queued events until ctx is cancelled, then drains what is
// already queued.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case e := <-r.queue:
			r.deliver(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-r.queue:
					r.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Relay) deliver(e Event) {
	for _, s := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := s.Deliver(ctx, e)
		cancel()
		if err != nil {
			metrics.NotificationsTotal.WithLabelValues(s.Name(), "error").Inc()
			log.WithFields(log.Fields{"sink": s.Name(), "kind": e.Kind}).Warnf("notification delivery failed: %v", err)
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(s.Name(), "ok").Inc()
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(Event) {}
