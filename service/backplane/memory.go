package backplane

import (
	"context"
	"sync"
)

// MemoryBackplane is an in-process Backplane for tests and single-node
// development. Delivery order per subscription matches publish order.
type MemoryBackplane struct {
	mu     sync.Mutex
	topics map[string]map[*memorySubscription]struct{}
}

func NewMemoryBackplane() *MemoryBackplane {
	return &MemoryBackplane{topics: make(map[string]map[*memorySubscription]struct{})}
}

func (b *MemoryBackplane) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.topics[topic] {
		deliver(sub.out, Message{Topic: topic, Payload: payload})
	}
	return nil
}

func (b *MemoryBackplane) Subscribe(_ context.Context, topics ...string) (Subscription, error) {
	sub := &memorySubscription{
		b:      b,
		topics: topics,
		out:    make(chan Message, 256),
	}
	b.mu.Lock()
	for _, topic := range topics {
		set := b.topics[topic]
		if set == nil {
			set = make(map[*memorySubscription]struct{})
			b.topics[topic] = set
		}
		set[sub] = struct{}{}
	}
	b.mu.Unlock()
	return sub, nil
}

// Subscribers reports how many live subscriptions a topic has. Handy for
// synchronising tests and for the memory-mode stats surface.
func (b *MemoryBackplane) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

type memorySubscription struct {
	b         *MemoryBackplane
	topics    []string
	out       chan Message
	closeOnce sync.Once
}

func (s *memorySubscription) Messages() <-chan Message { return s.out }

func (s *memorySubscription) Close() error {
	s.closeOnce.Do(func() {
		s.b.mu.Lock()
		for _, topic := range s.topics {
			if set := s.b.topics[topic]; set != nil {
				delete(set, s)
				if len(set) == 0 {
					delete(s.b.topics, topic)
				}
			}
		}
		// Closing under the lock keeps Publish from writing to a closed
		// channel.
		close(s.out)
		s.b.mu.Unlock()
	})
	return nil
}
