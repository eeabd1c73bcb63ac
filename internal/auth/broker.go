// Package auth keeps the current identity of the operator and follows the
// auth state changes published by the gateway sign-in flow.
package auth

import (
	"context"
	"sync"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
)

type EventKind string

const (
	SignedIn       EventKind = "SIGNED_IN"
	SignedOut      EventKind = "SIGNED_OUT"
	TokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Event is an auth state change. Session is nil for SignedOut.
type Event struct {
	Kind    EventKind        `json:"kind"`
	Session *gateway.Session `json:"session,omitempty"`
}

// Broker fans auth events out to every State sharing it and remembers the
// session of the last SignedIn or TokenRefreshed event.
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe returns a channel of events and a func that ends the
	// subscription and closes the channel.
	Subscribe(ctx context.Context) (<-chan Event, func(), error)
	Latest(ctx context.Context) (*gateway.Session, error)
	Close() error
}

const subscriberBuffer = 16

// MemoryBroker is a Broker for a single process.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	latest *gateway.Session
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[int]chan Event)}
}

func (b *MemoryBroker) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.Kind == SignedOut {
		b.latest = nil
	} else {
		b.latest = ev.Session
	}

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger.Error.Printf("Auth subscriber %d is not keeping up, dropping %s event", id, ev.Kind)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}

func (b *MemoryBroker) Latest(_ context.Context) (*gateway.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}
