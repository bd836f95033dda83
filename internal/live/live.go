// Package live consumes the MQTT event stream and stores every reading it
// carries. Events are handled one at a time on the calling goroutine.
package live

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/energyhub/internal/service"
)

type EventKind int

const (
	// Publish carries a message received on Topic.
	Publish EventKind = iota
	// ConnAck is a completed (re)connection to the broker.
	ConnAck
	// Diagnostic is any other transport event, surfaced only for logging.
	Diagnostic
)

func (k EventKind) String() string {
	switch k {
	case Publish:
		return "publish"
	case ConnAck:
		return "connack"
	default:
		return "diagnostic"
	}
}

type Event struct {
	Kind           EventKind
	Topic          string
	Payload        []byte
	SessionPresent bool
	Detail         string
}

// QoS is an MQTT delivery guarantee.
type QoS byte

const (
	AtMostOnce QoS = iota
	AtLeastOnce
	ExactlyOnce
)

type Subscription struct {
	Topic string
	QoS   QoS
}

// Feed is a live transport. The driver reads Events until the channel is
// closed, which ends the session.
type Feed interface {
	Events() <-chan Event
	Subscribe(ctx context.Context, subs []Subscription) error
}

// Ingester stores the reading carried by one message.
type Ingester interface {
	FromMQTT(ctx context.Context, topic string, payload []byte) (service.Outcome, error)
}

type Stats struct {
	Received   int
	Inserted   int
	Duplicates int
	Dropped    int
	Failed     int
}

type Driver struct {
	readings Ingester
	subs     []Subscription
	log      zerolog.Logger
	stats    Stats
}

// New returns a driver subscribing to every reading topic at least once.
// Duplicate deliveries are harmless since inserts ignore known timestamps.
func New(readings Ingester, log zerolog.Logger) *Driver {
	subs := make([]Subscription, 0, len(service.Topics))
	for _, topic := range service.Topics {
		subs = append(subs, Subscription{Topic: topic, QoS: AtLeastOnce})
	}
	return &Driver{readings: readings, subs: subs, log: log}
}

// Stats returns the counters accumulated so far. Not safe to call while Run
// is active on another goroutine.
func (d *Driver) Stats() Stats { return d.stats }

// Run processes events until ctx is cancelled or the feed closes its event
// channel. Failures on individual events are logged and never end the loop.
// Cancellation only interrupts the wait; an event already received is
// processed to completion.
func (d *Driver) Run(ctx context.Context, feed Feed) error {
	events := feed.Events()
	work := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("live ingestion stopped")
			return nil
		case ev, ok := <-events:
			if !ok {
				d.log.Info().Msg("live feed closed")
				return nil
			}
			d.handle(work, feed, ev)
		}
	}
}

func (d *Driver) handle(ctx context.Context, feed Feed, ev Event) {
	switch ev.Kind {
	case Publish:
		d.publish(ctx, ev)
	case ConnAck:
		if ev.SessionPresent {
			d.log.Debug().Msg("resumed session, subscriptions kept")
			return
		}
		if err := feed.Subscribe(ctx, d.subs); err != nil {
			d.log.Error().Err(err).Msg("subscribe failed")
			return
		}
		d.log.Info().Strs("topics", service.Topics).Msg("subscribed")
	default:
		d.log.Debug().Str("kind", ev.Kind.String()).Str("detail", ev.Detail).Msg("transport event")
	}
}

func (d *Driver) publish(ctx context.Context, ev Event) {
	d.stats.Received++
	out, err := d.readings.FromMQTT(ctx, ev.Topic, ev.Payload)
	if err != nil {
		d.stats.Failed++
		d.log.Error().
			Err(err).
			Str("topic", ev.Topic).
			Str("payload", string(ev.Payload)).
			Msg("error handling message")
		return
	}

	switch out {
	case service.Inserted:
		d.stats.Inserted++
	case service.Duplicate:
		d.stats.Duplicates++
	case service.Dropped:
		d.stats.Dropped++
		d.log.Warn().Str("topic", ev.Topic).Msg("received message from unknown topic")
		return
	}
	d.log.Debug().Str("topic", ev.Topic).Str("outcome", out.String()).Msg("message stored")
}
