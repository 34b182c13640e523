package broker

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBroker routes payloads through Redis pub/sub, one channel per
// room, so hub instances in different processes see the same stream.
type RedisBroker struct {
	client *redis.Client

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewRedisBroker(addr string) *RedisBroker {
	return &RedisBroker{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Ping checks connectivity before the server starts accepting traffic.
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Publish(ctx context.Context, roomID int, payload []byte) error {
	return b.client.Publish(ctx, Topic(roomID), payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, roomID int) (Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	pubsub := b.client.Subscribe(ctx, Topic(roomID))
	b.mu.Unlock()

	// Force the SUBSCRIBE round trip so a dead Redis fails here rather
	// than silently dropping events later.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan []byte, subscriptionBuffer),
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(sub.ch)
		for msg := range pubsub.Channel() {
			// Same policy as the in-process backend: a stalled subscriber
			// loses events instead of wedging the pump.
			select {
			case sub.ch <- []byte(msg.Payload):
			default:
			}
		}
	}()
	return sub, nil
}

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	err := b.client.Close()
	b.wg.Wait()
	return err
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan []byte
}

func (s *redisSubscription) C() <-chan []byte { return s.ch }

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
