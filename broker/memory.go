package broker

import (
	"context"
	"sync"
)

const subscriptionBuffer = 256

// MemoryBroker routes payloads between subscribers within a single
// process. Suitable when one server instance holds all live connections.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[int]map[*memorySubscription]struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subs: make(map[int]map[*memorySubscription]struct{}),
	}
}

type memorySubscription struct {
	broker *MemoryBroker
	roomID int
	ch     chan []byte
	once   sync.Once
}

func (s *memorySubscription) C() <-chan []byte { return s.ch }

func (s *memorySubscription) Close() error {
	s.broker.remove(s)
	return nil
}

func (b *MemoryBroker) Publish(_ context.Context, roomID int, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	for sub := range b.subs[roomID] {
		// A subscriber that falls subscriptionBuffer events behind loses
		// events rather than blocking other rooms' publishers.
		select {
		case sub.ch <- payload:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, roomID int) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}
	sub := &memorySubscription{
		broker: b,
		roomID: roomID,
		ch:     make(chan []byte, subscriptionBuffer),
	}
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[*memorySubscription]struct{})
	}
	b.subs[roomID][sub] = struct{}{}
	return sub, nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for sub := range subs {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	b.subs = make(map[int]map[*memorySubscription]struct{})
	return nil
}

func (b *MemoryBroker) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.subs[sub.roomID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.subs, sub.roomID)
	}
	sub.once.Do(func() { close(sub.ch) })
}
