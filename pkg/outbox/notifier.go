package outbox

import "context"

// WakeChannel carries the fire-and-forget hint that new events are pending.
// Delivery is a liveness optimization only; the worker's fallback poll is
// what correctness rests on.
const WakeChannel = "pfw:outbox:wakeup"

// WakeNotifier nudges the worker loop after a publish.
type WakeNotifier interface {
	Notify(ctx context.Context) error
}

type channelPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// RedisNotifier publishes wake-up hints on a redis channel.
type RedisNotifier struct {
	client channelPublisher
}

func NewRedisNotifier(client channelPublisher) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Notify(ctx context.Context) error {
	if n == nil || n.client == nil {
		return nil
	}
	return n.client.Publish(ctx, WakeChannel, "1")
}
