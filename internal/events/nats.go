package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// AllTopics matches every explorer event subject.
const AllTopics = "kgv.>"

// subscriberBuffer is the per-subscription delivery queue. Messages beyond
// it are dropped rather than blocking the NATS client.
const subscriberBuffer = 64

func connect(url, name string, opts []nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes JSON-encoded events to NATS subjects named after
// their topic. Scene frames stay local to the SSE hub.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url (KGV_NATS_URL).
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := connect(url, "kgv-publisher", opts)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == TopicSceneFrame {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	if err := p.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Flush waits until the server has processed everything published so far.
func (p *NATSPublisher) Flush() error { return p.conn.Flush() }

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber receives explorer events from NATS.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to NATS and keeps reconnecting. Extra options
// such as disconnect and reconnect handlers are applied after the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connect(url, "kgv-subscriber", opts)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// natsSubscription bridges one NATS subscription to a Message channel.
type natsSubscription struct {
	sub *nats.Subscription
	ch  chan Message

	mu     sync.Mutex
	closed bool
}

func (s *natsSubscription) deliver(msg *nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- Message{Topic: msg.Subject, Data: msg.Data}:
	default:
	}
}

// close unsubscribes, drops anything still queued and closes the channel.
// Only the first call has an effect.
func (s *natsSubscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	for len(s.ch) > 0 {
		<-s.ch
	}
	close(s.ch)
}

// Subscribe delivers events whose subject matches topic, which may use
// NATS wildcards such as "kgv.node.*" or AllTopics. The subscription is
// registered on the server before Subscribe returns.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan Message, func(), error) {
	ns := &natsSubscription{ch: make(chan Message, subscriberBuffer)}
	sub, err := s.conn.Subscribe(topic, ns.deliver)
	if err != nil {
		ns.close()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	ns.sub = sub
	if err := s.conn.Flush(); err != nil {
		ns.close()
		return nil, nil, fmt.Errorf("flushing subscription to %s: %w", topic, err)
	}
	return ns.ch, ns.close, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
