package network_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"wclink/internal/crypto"
	"wclink/internal/domain"
	"wclink/internal/keyring"
	"wclink/internal/network"
	"wclink/internal/relay"
	"wclink/internal/rpc"
	"wclink/internal/serializer"
	"wclink/internal/store"
)

// peer is one side of an in-memory relay link with its own keyring.
type peer struct {
	keys       *keyring.Service
	interactor *network.Interactor
}

func newPeers(t *testing.T) (a, b *peer, topic domain.Topic) {
	t.Helper()
	broker := relay.NewBroker()

	key, err := crypto.RandomSymKey()
	if err != nil {
		t.Fatalf("RandomSymKey: %v", err)
	}
	topic = crypto.DeriveTopic(key.Slice())

	mk := func() *peer {
		keys := keyring.New(store.NewMemoryStore())
		if err := keys.SetSymmetricKey(key, topic); err != nil {
			t.Fatalf("SetSymmetricKey: %v", err)
		}
		tr := broker.Transport()
		in := network.NewInteractor(tr, serializer.New(keys), network.Options{})
		if err := in.Connect(context.Background()); err != nil {
			t.Fatalf("connect: %v", err)
		}
		return &peer{keys: keys, interactor: in}
	}
	return mk(), mk(), topic
}

func TestRequestResponse_RoundTrip(t *testing.T) {
	a, b, topic := newPeers(t)
	ctx := context.Background()

	if err := a.interactor.Subscribe(ctx, topic); err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	if err := b.interactor.Subscribe(ctx, topic); err != nil {
		t.Fatalf("subscribe b: %v", err)
	}

	stream := b.interactor.RequestStream(rpc.SessionPing)
	defer stream.Close()

	go func() {
		in := <-stream.C
		_ = b.interactor.Respond(ctx, in.Topic, in.Request.ID, in.Method, true)
	}()

	resp, err := a.interactor.Request(ctx, topic, rpc.SessionPing, map[string]any{})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var ok bool
	if err := json.Unmarshal(resp.Result, &ok); err != nil || !ok {
		t.Fatalf("unexpected result %s err=%v", resp.Result, err)
	}
}

func TestRequest_ErrorResponse(t *testing.T) {
	a, b, topic := newPeers(t)
	ctx := context.Background()
	_ = a.interactor.Subscribe(ctx, topic)
	_ = b.interactor.Subscribe(ctx, topic)

	stream := b.interactor.RequestStream(rpc.SessionRequest)
	defer stream.Close()
	go func() {
		in := <-stream.C
		_ = b.interactor.RespondError(ctx, in.Topic, in.Request.ID, in.Method, 3001, "unauthorized method")
	}()

	resp, err := a.interactor.Request(ctx, topic, rpc.SessionRequest, map[string]any{"chainId": "eip155:1"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.Err == nil || resp.Err.Code != 3001 {
		t.Fatalf("want error response, got %+v", resp)
	}
}

func TestRequest_Timeout(t *testing.T) {
	a, _, topic := newPeers(t)
	ctx := context.Background()
	_ = a.interactor.Subscribe(ctx, topic)

	short := rpc.SessionPing
	short.TTL = 50 * time.Millisecond

	_, err := a.interactor.Request(ctx, topic, short, map[string]any{})
	if !errors.Is(err, network.ErrRequestTimeout) {
		t.Fatalf("want ErrRequestTimeout, got %v", err)
	}
}

func TestSubscribe_RefCounted(t *testing.T) {
	a, _, topic := newPeers(t)
	ctx := context.Background()

	if err := a.interactor.Subscribe(ctx, topic); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := a.interactor.Subscribe(ctx, topic); err != nil {
		t.Fatalf("second subscribe: %v", err)
	}
	// First unsubscribe keeps the transport subscription alive.
	if err := a.interactor.Unsubscribe(ctx, topic); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := a.interactor.Unsubscribe(ctx, topic); err != nil {
		t.Fatalf("final unsubscribe: %v", err)
	}
	if err := a.interactor.Unsubscribe(ctx, topic); !errors.Is(err, network.ErrNotSubscribed) {
		t.Fatalf("want ErrNotSubscribed, got %v", err)
	}
}

func TestRequestNetworkAck_NoResponseExpected(t *testing.T) {
	a, _, topic := newPeers(t)
	ctx := context.Background()
	_ = a.interactor.Subscribe(ctx, topic)

	id, err := a.interactor.RequestNetworkAck(ctx, topic, rpc.SessionDelete, map[string]any{"code": 6000})
	if err != nil {
		t.Fatalf("RequestNetworkAck: %v", err)
	}
	if id == 0 {
		t.Fatal("missing correlation id")
	}
}
