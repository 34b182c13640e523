// Package broker is the message-passing seam between connection hub
// instances. Events published for a room reach every instance subscribed
// to that room, so moderation completions can originate in a different
// process than the one holding the live connections. Delivery is FIFO per
// room for a given subscriber.
package broker

import (
	"context"
	"errors"
	"strconv"
)

var ErrBrokerClosed = errors.New("broker is closed")

type Broker interface {
	Publish(ctx context.Context, roomID int, payload []byte) error
	Subscribe(ctx context.Context, roomID int) (Subscription, error)
	Close() error
}

type Subscription interface {
	// C yields published payloads in publish order. It is closed when the
	// subscription or the broker shuts down.
	C() <-chan []byte
	Close() error
}

// Topic names the per-room channel used by networked backends.
func Topic(roomID int) string {
	return "room." + strconv.Itoa(roomID)
}
