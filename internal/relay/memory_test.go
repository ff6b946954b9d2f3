package relay_test

import (
	"context"
	"testing"
	"time"

	"wclink/internal/domain"
	"wclink/internal/relay"
)

func TestMemoryTransport_PublishReachesSubscriber(t *testing.T) {
	broker := relay.NewBroker()
	a := broker.Transport()
	b := broker.Transport()

	ctx := context.Background()
	if err := a.Connect(ctx); err != nil {
		t.Fatalf("connect a: %v", err)
	}
	if err := b.Connect(ctx); err != nil {
		t.Fatalf("connect b: %v", err)
	}

	got := make(chan domain.RelayMessage, 1)
	b.SetMessageHandler(func(m domain.RelayMessage) { got <- m })
	if _, err := b.Subscribe(ctx, "topic-1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := a.Publish(ctx, "topic-1", "hello", domain.RelayPublishOptions{TTL: time.Minute}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case m := <-got:
		if m.Topic != "topic-1" || m.Message != "hello" {
			t.Fatalf("got %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestMemoryTransport_PublisherDoesNotEchoToSelf(t *testing.T) {
	broker := relay.NewBroker()
	a := broker.Transport()
	ctx := context.Background()
	_ = a.Connect(ctx)

	got := make(chan domain.RelayMessage, 1)
	a.SetMessageHandler(func(m domain.RelayMessage) { got <- m })
	if _, err := a.Subscribe(ctx, "t"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := a.Publish(ctx, "t", "self", domain.RelayPublishOptions{}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case m := <-got:
		t.Fatalf("publisher received its own message: %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryTransport_MailboxDeliversOnLateSubscribe(t *testing.T) {
	broker := relay.NewBroker()
	a := broker.Transport()
	b := broker.Transport()
	ctx := context.Background()
	_ = a.Connect(ctx)
	_ = b.Connect(ctx)

	if err := a.Publish(ctx, "t", "stored", domain.RelayPublishOptions{TTL: time.Minute}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := make(chan domain.RelayMessage, 1)
	b.SetMessageHandler(func(m domain.RelayMessage) { got <- m })
	if _, err := b.Subscribe(ctx, "t"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case m := <-got:
		if m.Message != "stored" {
			t.Fatalf("got %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("mailbox message not delivered")
	}
}

func TestMemoryTransport_DisconnectedOperationsFail(t *testing.T) {
	broker := relay.NewBroker()
	a := broker.Transport()
	ctx := context.Background()

	if _, err := a.Subscribe(ctx, "t"); err != relay.ErrNotConnected {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}
	if err := a.Publish(ctx, "t", "m", domain.RelayPublishOptions{}); err != relay.ErrNotConnected {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}
}
