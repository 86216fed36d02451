package backplane

import (
	"context"

	"CampusHub/logger"
)

// Message is one unit delivered on a subscribed topic. Payload is the
// serialized event envelope; the backplane itself only carries bytes.
type Message struct {
	Topic   string
	Payload []byte
}

// Subscription is one handle over a batch of topics, owned by a single
// connection. Messages() yields in the order the broker delivered them;
// the channel is closed by Close. Close is idempotent.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Backplane is the pub/sub broker boundary. Publish is fire-and-forget:
// success means the broker accepted the message, topics with zero
// subscribers simply drop it. No persistence, no redelivery.
type Backplane interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topics ...string) (Subscription, error)
}

// deliver hands one relayed message to the subscription buffer without
// blocking the broker stream. A subscriber that stopped reading drops;
// the relay must stay free to drain the stream to completion, otherwise
// a teardown with a full buffer would strand it.
func deliver(out chan Message, msg Message) {
	select {
	case out <- msg:
	default:
		logger.Warnf("[backplane] subscriber buffer full, drop topic=%s", msg.Topic)
	}
}
