package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"wclink/internal/domain"
	"wclink/internal/keyring"
	"wclink/internal/network"
	"wclink/internal/pairing"
	"wclink/internal/relay"
	"wclink/internal/rpc"
	"wclink/internal/serializer"
	"wclink/internal/session"
	"wclink/internal/store"
)

type testPeer struct {
	keys     *keyring.Service
	net      *network.Interactor
	pairings *pairing.Service
	sessions *session.Service
}

func newTestPeer(t *testing.T, broker *relay.Broker, opts session.Options) *testPeer {
	t.Helper()
	keys := keyring.New(store.NewMemoryStore())
	in := network.NewInteractor(broker.Transport(), serializer.New(keys), network.Options{})
	if err := in.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	pairings := pairing.NewService(keys, in, store.NewPairingStore(store.NewMemoryStore()), pairing.Options{})
	svc := session.NewService(keys, in, store.NewSessionStore(store.NewMemoryStore()), pairings, opts)
	return &testPeer{keys: keys, net: in, pairings: pairings, sessions: svc}
}

func requiredNamespaces() map[string]domain.Namespace {
	return map[string]domain.Namespace{
		"eip155": {
			Chains:  []string{"eip155:1"},
			Methods: []string{"eth_sign"},
			Events:  []string{"chainChanged"},
		},
	}
}

func grantedNamespaces() map[string]domain.Namespace {
	return map[string]domain.Namespace{
		"eip155": {
			Accounts: []string{"eip155:1:0xab16a96d359ec26a11e2c2b3d8f8b8942d5bfcdb"},
			Chains:   []string{"eip155:1", "eip155:137"},
			Methods:  []string{"eth_sign", "eth_sendTransaction"},
			Events:   []string{"chainChanged", "accountsChanged"},
		},
	}
}

// settle runs the full proposal flow between two fresh peers and returns
// them with the settled session topic. The wallet approves automatically.
func settle(t *testing.T, ctx context.Context, dapp, wallet *testPeer, approved chan domain.Session) domain.Session {
	t.Helper()

	_, uri, err := dapp.pairings.Create(ctx)
	if err != nil {
		t.Fatalf("pairing create: %v", err)
	}
	paired, err := wallet.pairings.Pair(ctx, uri)
	if err != nil {
		t.Fatalf("pair: %v", err)
	}

	dapp.sessions.Start(ctx)
	wallet.sessions.Start(ctx)

	sess, err := dapp.sessions.Propose(ctx, paired.Topic, requiredNamespaces())
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	select {
	case walletSess := <-approved:
		if walletSess.Topic != sess.Topic {
			t.Fatalf("session topics differ: %s vs %s", walletSess.Topic, sess.Topic)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("wallet never settled")
	}
	return sess
}

func autoApprove(t *testing.T, wallet **testPeer, approved chan domain.Session) session.Options {
	t.Helper()
	return session.Options{
		OnProposal: func(ev session.ProposalEvent) {
			sess, err := (*wallet).sessions.Approve(context.Background(), ev.ID, grantedNamespaces())
			if err != nil {
				t.Errorf("approve: %v", err)
				return
			}
			approved <- sess
		},
	}
}

func TestProposeApprove_SettlesBothSides(t *testing.T) {
	broker := relay.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	approved := make(chan domain.Session, 1)
	var wallet *testPeer
	dapp := newTestPeer(t, broker, session.Options{})
	wallet = newTestPeer(t, broker, autoApprove(t, &wallet, approved))

	sess := settle(t, ctx, dapp, wallet, approved)

	if !sess.Acknowledged {
		t.Fatal("proposer session not acknowledged")
	}
	if sess.Controller {
		t.Fatal("proposer marked as controller")
	}
	walletSess, err := wallet.sessions.Get(sess.Topic)
	if err != nil {
		t.Fatalf("wallet session: %v", err)
	}
	if !walletSess.Acknowledged || !walletSess.Controller {
		t.Fatalf("wallet session state: ack=%v controller=%v", walletSess.Acknowledged, walletSess.Controller)
	}

	dSecret, ok, err := dapp.keys.AgreementSecret(sess.Topic)
	if err != nil || !ok {
		t.Fatalf("proposer secret: ok=%v err=%v", ok, err)
	}
	wSecret, ok, err := wallet.keys.AgreementSecret(sess.Topic)
	if err != nil || !ok {
		t.Fatalf("controller secret: ok=%v err=%v", ok, err)
	}
	if dSecret.SharedKey != wSecret.SharedKey {
		t.Fatal("agreement secrets differ")
	}
}

func TestPropose_Rejected(t *testing.T) {
	broker := relay.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wallet *testPeer
	dapp := newTestPeer(t, broker, session.Options{})
	wallet = newTestPeer(t, broker, session.Options{
		OnProposal: func(ev session.ProposalEvent) {
			if err := wallet.sessions.Reject(context.Background(), ev.ID, "user declined"); err != nil {
				t.Errorf("reject: %v", err)
			}
		},
	})

	_, uri, err := dapp.pairings.Create(ctx)
	if err != nil {
		t.Fatalf("pairing create: %v", err)
	}
	paired, err := wallet.pairings.Pair(ctx, uri)
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	dapp.sessions.Start(ctx)
	wallet.sessions.Start(ctx)

	if _, err := dapp.sessions.Propose(ctx, paired.Topic, requiredNamespaces()); err == nil {
		t.Fatal("rejected proposal reported success")
	}
	if _, err := dapp.sessions.Get(paired.Topic); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected no session, got %v", err)
	}
}

func TestPropose_MalformedNamespacesNeverSent(t *testing.T) {
	broker := relay.NewBroker()
	dapp := newTestPeer(t, broker, session.Options{})

	bad := map[string]domain.Namespace{"eip155": {Chains: []string{"not a chain"}}}
	if _, err := dapp.sessions.Propose(context.Background(), "deadbeef", bad); !errors.Is(err, session.ErrMalformedNamespaces) {
		t.Fatalf("want ErrMalformedNamespaces, got %v", err)
	}
}

func TestRequest_AuthorizationEnforced(t *testing.T) {
	broker := relay.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	approved := make(chan domain.Session, 1)
	var wallet *testPeer
	dapp := newTestPeer(t, broker, session.Options{})

	opts := autoApprove(t, &wallet, approved)
	opts.OnRequest = func(_ context.Context, ev session.RequestEvent) (any, *rpc.Error) {
		return "0xsigned", nil
	}
	wallet = newTestPeer(t, broker, opts)

	sess := settle(t, ctx, dapp, wallet, approved)

	resp, err := dapp.sessions.Request(ctx, sess.Topic, domain.SessionRequest{
		ChainID: "eip155:1",
		Method:  "eth_sign",
		Params:  json.RawMessage(`["0xdeadbeef"]`),
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.Err != nil {
		t.Fatalf("authorized request rejected: %v", resp.Err)
	}
	var result string
	if err := json.Unmarshal(resp.Result, &result); err != nil || result != "0xsigned" {
		t.Fatalf("result = %q, err = %v", result, err)
	}

	resp, err = dapp.sessions.Request(ctx, sess.Topic, domain.SessionRequest{
		ChainID: "eip155:1",
		Method:  "personal_sign",
		Params:  json.RawMessage(`[]`),
	})
	if err != nil {
		t.Fatalf("unauthorized request transport error: %v", err)
	}
	if resp.Err == nil {
		t.Fatal("unauthorized method accepted")
	}

	resp, err = dapp.sessions.Request(ctx, sess.Topic, domain.SessionRequest{
		ChainID: "cosmos:hub-4",
		Method:  "eth_sign",
	})
	if err != nil {
		t.Fatalf("unauthorized chain transport error: %v", err)
	}
	if resp.Err == nil {
		t.Fatal("unauthorized chain accepted")
	}
}

func TestEmit_DeliveredAndGuarded(t *testing.T) {
	broker := relay.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	approved := make(chan domain.Session, 1)
	events := make(chan domain.SessionEvent, 1)
	var wallet *testPeer
	dapp := newTestPeer(t, broker, session.Options{
		OnEvent: func(_ domain.Topic, ev domain.SessionEvent) { events <- ev },
	})
	wallet = newTestPeer(t, broker, autoApprove(t, &wallet, approved))

	sess := settle(t, ctx, dapp, wallet, approved)

	err := wallet.sessions.Emit(ctx, sess.Topic, domain.SessionEvent{
		ChainID: "eip155:1",
		Name:    "chainChanged",
		Data:    json.RawMessage(`"0x89"`),
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	select {
	case ev := <-events:
		if ev.Name != "chainChanged" {
			t.Fatalf("event name = %q", ev.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event never delivered")
	}

	err = wallet.sessions.Emit(ctx, sess.Topic, domain.SessionEvent{
		ChainID: "eip155:1",
		Name:    "somethingElse",
	})
	if !errors.Is(err, session.ErrUnauthorizedMethod) {
		t.Fatalf("want ErrUnauthorizedMethod, got %v", err)
	}
}

func TestUpdate_SupersetOnly(t *testing.T) {
	broker := relay.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	approved := make(chan domain.Session, 1)
	var wallet *testPeer
	dapp := newTestPeer(t, broker, session.Options{})
	wallet = newTestPeer(t, broker, autoApprove(t, &wallet, approved))

	sess := settle(t, ctx, dapp, wallet, approved)

	narrower := map[string]domain.Namespace{
		"eip155": {Chains: []string{"eip155:1"}, Methods: []string{"eth_sign"}},
	}
	if err := wallet.sessions.Update(ctx, sess.Topic, narrower); !errors.Is(err, session.ErrNamespacesMismatch) {
		t.Fatalf("narrowing update: want ErrNamespacesMismatch, got %v", err)
	}

	wider := grantedNamespaces()
	wider["eip155"] = domain.Namespace{
		Chains:  append(wider["eip155"].Chains, "eip155:10"),
		Methods: wider["eip155"].Methods,
		Events:  wider["eip155"].Events,
	}
	if err := wallet.sessions.Update(ctx, sess.Topic, wider); err != nil {
		t.Fatalf("widening update: %v", err)
	}

	got, err := dapp.sessions.Get(sess.Topic)
	if err != nil {
		t.Fatalf("proposer session: %v", err)
	}
	if !containsString(got.Namespaces["eip155"].Chains, "eip155:10") {
		t.Fatalf("update not applied on peer: %v", got.Namespaces["eip155"].Chains)
	}
}

func TestDisconnect_IdempotentAndPropagated(t *testing.T) {
	broker := relay.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	approved := make(chan domain.Session, 1)
	deleted := make(chan domain.Topic, 1)
	var wallet *testPeer
	dapp := newTestPeer(t, broker, session.Options{
		OnDelete: func(topic domain.Topic) { deleted <- topic },
	})
	wallet = newTestPeer(t, broker, autoApprove(t, &wallet, approved))

	sess := settle(t, ctx, dapp, wallet, approved)

	if err := wallet.sessions.Disconnect(ctx, sess.Topic); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := wallet.sessions.Disconnect(ctx, sess.Topic); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}

	select {
	case topic := <-deleted:
		if topic != sess.Topic {
			t.Fatalf("deleted topic = %s", topic)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("delete never propagated")
	}
	if _, err := dapp.sessions.Get(sess.Topic); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("peer state after delete: %v", err)
	}
	if _, ok, err := wallet.keys.AgreementSecret(sess.Topic); err != nil || ok {
		t.Fatalf("agreement secret survived disconnect: ok=%v err=%v", ok, err)
	}
}

func TestGet_LazyExpiry_FiresCallbackOnce(t *testing.T) {
	broker := relay.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now()
	clock := &now
	var fired atomic.Int32

	approved := make(chan domain.Session, 1)
	var wallet *testPeer
	dapp := newTestPeer(t, broker, session.Options{
		Now:      func() time.Time { return *clock },
		OnExpire: func(domain.Session) { fired.Add(1) },
	})
	wallet = newTestPeer(t, broker, autoApprove(t, &wallet, approved))

	sess := settle(t, ctx, dapp, wallet, approved)

	later := now.Add(8 * 24 * time.Hour)
	clock = &later

	if _, err := dapp.sessions.Get(sess.Topic); !errors.Is(err, session.ErrSessionExpired) {
		t.Fatalf("want ErrSessionExpired, got %v", err)
	}
	if _, err := dapp.sessions.Get(sess.Topic); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("second read: want ErrSessionNotFound, got %v", err)
	}
	if got := fired.Load(); got != 1 {
		t.Fatalf("expiry callback fired %d times", got)
	}
	if _, ok, err := dapp.keys.AgreementSecret(sess.Topic); err != nil || ok {
		t.Fatalf("agreement secret survived expiry: ok=%v err=%v", ok, err)
	}
}

func TestPing_RoundTrip(t *testing.T) {
	broker := relay.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	approved := make(chan domain.Session, 1)
	var wallet *testPeer
	dapp := newTestPeer(t, broker, session.Options{})
	wallet = newTestPeer(t, broker, autoApprove(t, &wallet, approved))

	sess := settle(t, ctx, dapp, wallet, approved)

	if err := dapp.sessions.Ping(ctx, sess.Topic); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
