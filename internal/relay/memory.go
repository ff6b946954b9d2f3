package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"wclink/internal/domain"
)

// Broker is an in-process relay: topic pub/sub plus store-and-forward
// mailboxes honoring publish TTL. It backs MemoryTransport instances the way
// the relay server backs websocket clients.
type Broker struct {
	mu      sync.Mutex
	subs    map[domain.Topic]map[*MemoryTransport]string
	mailbox map[domain.Topic][]queued
	now     func() time.Time
}

type queued struct {
	message string
	expiry  time.Time
}

func NewBroker() *Broker {
	return &Broker{
		subs:    make(map[domain.Topic]map[*MemoryTransport]string),
		mailbox: make(map[domain.Topic][]queued),
		now:     time.Now,
	}
}

// Transport returns a new client endpoint attached to this broker.
func (b *Broker) Transport() *MemoryTransport {
	return &MemoryTransport{broker: b}
}

func (b *Broker) subscribe(t *MemoryTransport, topic domain.Topic) string {
	b.mu.Lock()
	id := uuid.NewString()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*MemoryTransport]string)
	}
	b.subs[topic][t] = id

	// Drain the mailbox: messages published before the subscriber attached.
	var backlog []string
	kept := b.mailbox[topic][:0]
	for _, q := range b.mailbox[topic] {
		if b.now().Before(q.expiry) {
			backlog = append(backlog, q.message)
			kept = append(kept, q)
		}
	}
	b.mailbox[topic] = kept
	b.mu.Unlock()

	for _, msg := range backlog {
		t.deliver(domain.RelayMessage{Topic: topic, Message: msg})
	}
	return id
}

func (b *Broker) unsubscribe(t *MemoryTransport, topic domain.Topic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[topic], t)
}

func (b *Broker) publish(from *MemoryTransport, topic domain.Topic, message string, ttl time.Duration) {
	b.mu.Lock()
	targets := make([]*MemoryTransport, 0, len(b.subs[topic]))
	for t := range b.subs[topic] {
		if t != from {
			targets = append(targets, t)
		}
	}
	if ttl > 0 {
		b.mailbox[topic] = append(b.mailbox[topic], queued{message: message, expiry: b.now().Add(ttl)})
	}
	b.mu.Unlock()

	for _, t := range targets {
		t.deliver(domain.RelayMessage{Topic: topic, Message: message})
	}
}

// MemoryTransport implements domain.RelayTransport against an in-process
// Broker.
type MemoryTransport struct {
	broker    *Broker
	connected atomic.Bool
	handler   atomic.Value // func(domain.RelayMessage)
}

var _ domain.RelayTransport = (*MemoryTransport)(nil)

func (t *MemoryTransport) Connect(context.Context) error {
	t.connected.Store(true)
	return nil
}

func (t *MemoryTransport) Disconnect() error {
	t.connected.Store(false)
	return nil
}

func (t *MemoryTransport) SetMessageHandler(fn func(domain.RelayMessage)) {
	t.handler.Store(fn)
}

func (t *MemoryTransport) Subscribe(_ context.Context, topic domain.Topic) (string, error) {
	if !t.connected.Load() {
		return "", ErrNotConnected
	}
	return t.broker.subscribe(t, topic), nil
}

func (t *MemoryTransport) Unsubscribe(_ context.Context, topic domain.Topic, _ string) error {
	if !t.connected.Load() {
		return ErrNotConnected
	}
	t.broker.unsubscribe(t, topic)
	return nil
}

func (t *MemoryTransport) Publish(_ context.Context, topic domain.Topic, message string, opts domain.RelayPublishOptions) error {
	if !t.connected.Load() {
		return ErrNotConnected
	}
	t.broker.publish(t, topic, message, opts.TTL)
	return nil
}

func (t *MemoryTransport) deliver(msg domain.RelayMessage) {
	if !t.connected.Load() {
		return
	}
	if fn, ok := t.handler.Load().(func(domain.RelayMessage)); ok && fn != nil {
		fn(msg)
	}
}
