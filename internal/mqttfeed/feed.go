// Package mqttfeed adapts the paho MQTT client to the live.Feed interface.
//
// Paho delivers messages and connection changes on its own goroutines. The
// feed turns each of them into a live.Event on a buffered channel so the
// live driver can process them one at a time.
package mqttfeed

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/energyhub/internal/live"
)

const (
	defaultBuffer  = 10
	subscribeFail  = 0x80
	disconnectWait = 250
)

type Options struct {
	Broker    string
	ClientID  string
	KeepAlive time.Duration
	// Buffer is the number of events queued before paho callbacks block.
	Buffer int
}

type Feed struct {
	client mqtt.Client
	log    zerolog.Logger

	events chan live.Event
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func newFeed(buffer int, log zerolog.Logger) *Feed {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Feed{
		log:    log,
		events: make(chan live.Event, buffer),
		done:   make(chan struct{}),
	}
}

// New configures a client that reconnects on its own. Sessions are always
// clean, so every connection is reported as a fresh session and the driver
// resubscribes.
func New(o Options, log zerolog.Logger) *Feed {
	f := newFeed(o.Buffer, log)

	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetKeepAlive(o.KeepAlive).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(mqtt.Client) {
			f.emit(live.Event{Kind: live.ConnAck, SessionPresent: false})
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			f.emit(live.Event{Kind: live.Diagnostic, Detail: "connection lost: " + err.Error()})
		}).
		SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
			f.emit(live.Event{Kind: live.Diagnostic, Detail: "reconnecting"})
		})
	f.client = mqtt.NewClient(opts)
	return f
}

// Connect blocks until the first connection succeeds or ctx is done.
func (f *Feed) Connect(ctx context.Context) error {
	return wait(ctx, f.client.Connect(), "mqtt connect")
}

func (f *Feed) Events() <-chan live.Event { return f.events }

// Subscribe requests every subscription in one SUBSCRIBE packet and fails if
// the broker refuses any of them.
func (f *Feed) Subscribe(ctx context.Context, subs []live.Subscription) error {
	filters := make(map[string]byte, len(subs))
	for _, s := range subs {
		filters[s.Topic] = byte(s.QoS)
	}
	tok := f.client.SubscribeMultiple(filters, f.onMessage)
	if err := wait(ctx, tok, "mqtt subscribe"); err != nil {
		return err
	}
	if st, ok := tok.(*mqtt.SubscribeToken); ok {
		return checkGrants(st.Result())
	}
	return nil
}

// Close disconnects and ends the event stream.
func (f *Feed) Close() {
	f.once.Do(func() {
		// Release callbacks blocked on a full buffer first; paho waits for
		// them while disconnecting.
		close(f.done)
		if f.client != nil {
			f.client.Disconnect(disconnectWait)
		}
		f.mu.Lock()
		f.closed = true
		close(f.events)
		f.mu.Unlock()
	})
}

func (f *Feed) onMessage(_ mqtt.Client, msg mqtt.Message) {
	f.emit(live.Event{Kind: live.Publish, Topic: msg.Topic(), Payload: msg.Payload()})
}

// emit blocks while the buffer is full, which in turn holds back paho's
// acknowledgements of QoS 1 messages.
func (f *Feed) emit(ev live.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		f.log.Debug().Str("kind", ev.Kind.String()).Msg("event after close dropped")
		return
	}
	select {
	case f.events <- ev:
	case <-f.done:
	}
}

func wait(ctx context.Context, tok mqtt.Token, op string) error {
	select {
	case <-tok.Done():
		return errors.Wrap(tok.Error(), op)
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), op)
	}
}

func checkGrants(granted map[string]byte) error {
	for topic, qos := range granted {
		if qos == subscribeFail {
			return errors.Errorf("broker refused subscription to %q", topic)
		}
	}
	return nil
}
