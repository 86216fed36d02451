package backplane

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"CampusHub/tools/safe"
)

// NatsBackplane distributes events over core NATS subjects. Core-mode
// only: same fan-out semantics as Redis pub/sub, no JetStream durability.
type NatsBackplane struct {
	nc *nats.Conn
}

type NatsConfig struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

func NewNatsBackplane(cfg NatsConfig) (*NatsBackplane, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}
	return &NatsBackplane{nc: nc}, nil
}

func (b *NatsBackplane) Publish(_ context.Context, topic string, payload []byte) error {
	if err := b.nc.Publish(topic, payload); err != nil {
		return errors.Wrapf(err, "nats publish topic=%s", topic)
	}
	return nil
}

func (b *NatsBackplane) Subscribe(_ context.Context, topics ...string) (Subscription, error) {
	in := make(chan *nats.Msg, 64)
	subs := make([]*nats.Subscription, 0, len(topics))
	for _, topic := range topics {
		s, err := b.nc.ChanSubscribe(topic, in)
		if err != nil {
			for _, done := range subs {
				_ = done.Unsubscribe()
			}
			return nil, errors.Wrapf(err, "nats subscribe topic=%s", topic)
		}
		subs = append(subs, s)
	}

	sub := &natsSubscription{subs: subs, in: in, out: make(chan Message, 64)}
	safe.Go(sub.relay)
	return sub, nil
}

func (b *NatsBackplane) Close() {
	b.nc.Close()
}

type natsSubscription struct {
	subs      []*nats.Subscription
	in        chan *nats.Msg
	out       chan Message
	closeOnce sync.Once
}

func (s *natsSubscription) relay() {
	defer close(s.out)
	for msg := range s.in {
		deliver(s.out, Message{Topic: msg.Subject, Payload: msg.Data})
	}
}

func (s *natsSubscription) Messages() <-chan Message { return s.out }

func (s *natsSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, sub := range s.subs {
			if e := sub.Unsubscribe(); e != nil && err == nil {
				err = e
			}
		}
		close(s.in)
	})
	return err
}
