package backplane

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"CampusHub/tools/safe"
)

// RedisBackplane distributes events over Redis pub/sub channels.
// This is the production default.
type RedisBackplane struct {
	rdb redis.UniversalClient
}

func NewRedisBackplane(rdb redis.UniversalClient) *RedisBackplane {
	return &RedisBackplane{rdb: rdb}
}

func (b *RedisBackplane) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return errors.Wrapf(err, "redis publish topic=%s", topic)
	}
	return nil
}

func (b *RedisBackplane) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, topics...)
	// Force the SUBSCRIBE round trip so a dead broker fails here, not
	// silently in the relay loop.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrapf(err, "redis subscribe topics=%v", topics)
	}

	sub := &redisSubscription{ps: ps, out: make(chan Message, 64)}
	safe.Go(sub.relay)
	return sub, nil
}

type redisSubscription struct {
	ps        *redis.PubSub
	out       chan Message
	closeOnce sync.Once
}

func (s *redisSubscription) relay() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		deliver(s.out, Message{Topic: msg.Channel, Payload: []byte(msg.Payload)})
	}
}

func (s *redisSubscription) Messages() <-chan Message { return s.out }

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		// Closing the PubSub unsubscribes and ends Channel(), which in
		// turn ends the relay goroutine and closes out.
		err = s.ps.Close()
	})
	return err
}
