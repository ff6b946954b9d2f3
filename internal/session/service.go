package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"wclink/internal/crypto"
	"wclink/internal/domain"
	"wclink/internal/keyring"
	"wclink/internal/network"
	"wclink/internal/pairing"
	"wclink/internal/rpc"
	"wclink/internal/store"
)

const (
	// sessionTTL is the settlement expiry and the cap for Extend.
	sessionTTL = 7 * 24 * time.Hour
)

var (
	// ErrSessionNotFound indicates no session row for the topic.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionExpired is returned by the read that observes expiry.
	ErrSessionExpired = errors.New("session: expired")
	// ErrSessionNotAcknowledged indicates traffic on a settled but
	// unacknowledged session.
	ErrSessionNotAcknowledged = errors.New("session: not acknowledged")
	// ErrProposalNotFound indicates an Approve/Reject for an unknown or
	// already-resolved proposal id.
	ErrProposalNotFound = errors.New("session: proposal not found")
	// ErrSettlementRejected indicates the proposer refused our settlement.
	ErrSettlementRejected = errors.New("session: settlement rejected")
)

// ProposalEvent is delivered to the responder when a proposal arrives on a
// pairing topic.
type ProposalEvent struct {
	ID       int64
	Proposal domain.SessionProposal
}

// RequestEvent is an authorized application-level request awaiting a result.
type RequestEvent struct {
	Topic   domain.Topic
	ID      int64
	Request domain.SessionRequest
}

// Options configure the session service.
type Options struct {
	Metadata domain.AppMetadata
	Logger   *slog.Logger
	Now      func() time.Time

	// OnProposal notifies about inbound proposals; approval happens via
	// Approve/Reject with the event's ID.
	OnProposal func(ProposalEvent)
	// OnRequest produces the result for an authorized inbound request.
	// Requests with no handler are rejected.
	OnRequest func(ctx context.Context, ev RequestEvent) (any, *rpc.Error)
	// OnEvent receives authorized peer-emitted session events.
	OnEvent func(topic domain.Topic, ev domain.SessionEvent)
	// OnDelete fires after a peer-initiated delete removed local state.
	OnDelete func(topic domain.Topic)
	// OnExpire fires at most once per session, on the read observing expiry.
	OnExpire func(domain.Session)
}

// Service drives the session state machine for both roles: proposer (dapp
// side) and controller (wallet side).
type Service struct {
	keys     *keyring.Service
	net      *network.Interactor
	sessions *store.SessionStore
	pairings *pairing.Service
	opts     Options
	log      *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	proposals map[int64]pendingProposal
	settling  map[domain.Topic]*settleWaiter

	expireMu sync.Mutex
}

type pendingProposal struct {
	topic    domain.Topic // pairing topic the proposal arrived on
	proposal domain.SessionProposal
}

type settleWaiter struct {
	required map[string]domain.Namespace
	selfPub  domain.X25519Public
	pairing  domain.Topic
	ch       chan settleOutcome
}

type settleOutcome struct {
	session domain.Session
	err     error
}

func NewService(keys *keyring.Service, net *network.Interactor, sessions *store.SessionStore, pairings *pairing.Service, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		keys:      keys,
		net:       net,
		sessions:  sessions,
		pairings:  pairings,
		opts:      opts,
		log:       opts.Logger,
		now:       opts.Now,
		proposals: make(map[int64]pendingProposal),
		settling:  make(map[domain.Topic]*settleWaiter),
	}
}

// Start serves inbound session protocol traffic until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	stream := s.net.RequestStream(
		rpc.SessionPropose, rpc.SessionSettle, rpc.SessionUpdate, rpc.SessionExtend,
		rpc.SessionRequest, rpc.SessionEvent, rpc.SessionDelete, rpc.SessionPing,
	)
	go func() {
		defer stream.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case in, ok := <-stream.C:
				if !ok {
					return
				}
				s.handleInbound(ctx, in)
			}
		}
	}()
}

// Propose sends a session proposal over an existing pairing and blocks until
// the peer settles, the method TTL lapses, or ctx is cancelled. On success the
// settled session is acknowledged on our side and the pairing is activated.
func (s *Service) Propose(ctx context.Context, pairingTopic domain.Topic, required map[string]domain.Namespace) (domain.Session, error) {
	if err := ValidateProposal(required); err != nil {
		return domain.Session{}, err
	}
	if _, err := s.pairings.Get(pairingTopic); err != nil {
		return domain.Session{}, err
	}

	selfPub, err := s.keys.CreateX25519KeyPair()
	if err != nil {
		return domain.Session{}, err
	}

	params := proposeParams{
		Relay:              domain.DefaultRelay,
		Proposer:           domain.Participant{PublicKey: selfPub.Hex(), Metadata: s.opts.Metadata},
		RequiredNamespaces: required,
	}
	resp, err := s.net.Request(ctx, pairingTopic, rpc.SessionPropose, params)
	if err != nil {
		return domain.Session{}, err
	}
	if resp.Err != nil {
		return domain.Session{}, fmt.Errorf("session: proposal rejected: %w", resp.Err)
	}
	var approved proposeResult
	if err := json.Unmarshal(resp.Result, &approved); err != nil {
		return domain.Session{}, fmt.Errorf("session: malformed approval: %w", err)
	}

	// Both sides derive the session topic from the shared key.
	secret, err := s.keys.PerformKeyAgreement(selfPub, approved.ResponderPublicKey)
	if err != nil {
		return domain.Session{}, err
	}
	sessionTopic := crypto.DeriveTopic(secret.SharedKey.Slice())
	if err := s.keys.SetAgreementSecret(secret, sessionTopic); err != nil {
		return domain.Session{}, err
	}

	waiter := &settleWaiter{
		required: required,
		selfPub:  selfPub,
		pairing:  pairingTopic,
		ch:       make(chan settleOutcome, 1),
	}
	s.mu.Lock()
	s.settling[sessionTopic] = waiter
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.settling, sessionTopic)
		s.mu.Unlock()
	}()

	if err := s.net.Subscribe(ctx, sessionTopic); err != nil {
		return domain.Session{}, err
	}

	timer := time.NewTimer(rpc.SessionSettle.TTL)
	defer timer.Stop()
	select {
	case outcome := <-waiter.ch:
		return outcome.session, outcome.err
	case <-timer.C:
		return domain.Session{}, fmt.Errorf("%w: settle", network.ErrRequestTimeout)
	case <-ctx.Done():
		return domain.Session{}, ctx.Err()
	}
}

// Approve settles a pending proposal with the granted namespaces. The grant
// must be a superset of what the proposal required.
func (s *Service) Approve(ctx context.Context, proposalID int64, granted map[string]domain.Namespace) (domain.Session, error) {
	s.mu.Lock()
	pending, ok := s.proposals[proposalID]
	if ok {
		delete(s.proposals, proposalID)
	}
	s.mu.Unlock()
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: %d", ErrProposalNotFound, proposalID)
	}

	if err := ValidateGrant(pending.proposal.RequiredNamespaces, granted); err != nil {
		return domain.Session{}, err
	}

	selfPub, err := s.keys.CreateX25519KeyPair()
	if err != nil {
		return domain.Session{}, err
	}
	secret, err := s.keys.PerformKeyAgreement(selfPub, pending.proposal.ProposerPublicKey)
	if err != nil {
		return domain.Session{}, err
	}
	sessionTopic := crypto.DeriveTopic(secret.SharedKey.Slice())
	if err := s.keys.SetAgreementSecret(secret, sessionTopic); err != nil {
		return domain.Session{}, err
	}
	if err := s.net.Subscribe(ctx, sessionTopic); err != nil {
		return domain.Session{}, err
	}

	// Approval response on the pairing topic carries our public key so the
	// proposer can derive the same session topic.
	if err := s.net.Respond(ctx, pending.topic, proposalID, rpc.SessionPropose, proposeResult{
		Relay:              domain.DefaultRelay,
		ResponderPublicKey: selfPub.Hex(),
	}); err != nil {
		return domain.Session{}, err
	}

	expiry := s.now().Add(sessionTTL)
	sess := domain.Session{
		Topic:              sessionTopic,
		PairingTopic:       pending.topic,
		Relay:              domain.DefaultRelay,
		Self:               domain.Participant{PublicKey: selfPub.Hex(), Metadata: s.opts.Metadata},
		Peer:               domain.Participant{PublicKey: pending.proposal.ProposerPublicKey, Metadata: pending.proposal.ProposerMetadata},
		Controller:         true,
		RequiredNamespaces: pending.proposal.RequiredNamespaces,
		Namespaces:         granted,
		Expiry:             expiry,
		Acknowledged:       false,
	}
	if err := s.sessions.Set(sess); err != nil {
		return domain.Session{}, err
	}
	if err := s.pairings.Activate(pending.topic, &pending.proposal.ProposerMetadata); err != nil {
		s.log.Debug("pairing activation failed", "topic", pending.topic, "error", err)
	}

	resp, err := s.net.Request(ctx, sessionTopic, rpc.SessionSettle, settleParams{
		Relay:      domain.DefaultRelay,
		Controller: sess.Self,
		Namespaces: granted,
		Expiry:     expiry.Unix(),
	})
	if err != nil {
		return domain.Session{}, err
	}
	if resp.Err != nil {
		// The proposer refused our settlement; roll the session back.
		_ = s.remove(sessionTopic)
		return domain.Session{}, fmt.Errorf("%w: %s", ErrSettlementRejected, resp.Err.Message)
	}

	sess.Acknowledged = true
	if err := s.sessions.Set(sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// Reject refuses a pending proposal.
func (s *Service) Reject(ctx context.Context, proposalID int64, reason string) error {
	s.mu.Lock()
	pending, ok := s.proposals[proposalID]
	if ok {
		delete(s.proposals, proposalID)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrProposalNotFound, proposalID)
	}
	return s.net.RespondError(ctx, pending.topic, proposalID, rpc.SessionPropose, codeUserRejected, reason)
}

// Get reads a session, applying lazy expiry with an exactly-once expiration
// callback, mirroring pairing reads.
func (s *Service) Get(topic domain.Topic) (domain.Session, error) {
	s.expireMu.Lock()
	defer s.expireMu.Unlock()

	sess, ok, err := s.sessions.Get(topic)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, topic)
	}
	if sess.Expired(s.now()) {
		if err := s.removeLocked(topic); err != nil {
			return domain.Session{}, err
		}
		if s.opts.OnExpire != nil {
			s.opts.OnExpire(sess)
		}
		return domain.Session{}, fmt.Errorf("%w: %s", ErrSessionExpired, topic)
	}
	return sess, nil
}

// List returns all live sessions, expiring stale rows on the way.
func (s *Service) List() ([]domain.Session, error) {
	all, err := s.sessions.List()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, sess := range all {
		switch live, err := s.Get(sess.Topic); {
		case err == nil:
			out = append(out, live)
		case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrSessionNotFound):
		default:
			return nil, err
		}
	}
	return out, nil
}

// Update replaces the granted namespaces, re-checked against the original
// proposal's requirements, and informs the peer.
func (s *Service) Update(ctx context.Context, topic domain.Topic, namespaces map[string]domain.Namespace) error {
	sess, err := s.Get(topic)
	if err != nil {
		return err
	}
	if err := ValidateGrant(sess.RequiredNamespaces, namespaces); err != nil {
		return err
	}
	resp, err := s.net.Request(ctx, topic, rpc.SessionUpdate, updateParams{Namespaces: namespaces})
	if err != nil {
		return err
	}
	if resp.Err != nil {
		return fmt.Errorf("session: update rejected: %w", resp.Err)
	}
	sess.Namespaces = namespaces
	return s.sessions.Set(sess)
}

// Extend pushes the expiry forward, capped at the maximum session lifetime
// from now. Extending an expired session fails on the Get.
func (s *Service) Extend(ctx context.Context, topic domain.Topic) error {
	sess, err := s.Get(topic)
	if err != nil {
		return err
	}
	newExpiry := s.now().Add(sessionTTL)
	resp, err := s.net.Request(ctx, topic, rpc.SessionExtend, extendParams{Expiry: newExpiry.Unix()})
	if err != nil {
		return err
	}
	if resp.Err != nil {
		return fmt.Errorf("session: extend rejected: %w", resp.Err)
	}
	sess.Expiry = newExpiry
	return s.sessions.Set(sess)
}

// Request routes an application-level call over the session topic and waits
// for the peer's result. The peer enforces namespace authorization.
func (s *Service) Request(ctx context.Context, topic domain.Topic, req domain.SessionRequest) (*rpc.Response, error) {
	sess, err := s.Get(topic)
	if err != nil {
		return nil, err
	}
	if !sess.Acknowledged {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotAcknowledged, topic)
	}
	return s.net.Request(ctx, topic, rpc.SessionRequest, requestParams{
		ChainID: req.ChainID,
		Request: requestPayload{Method: req.Method, Params: req.Params},
	})
}

// Emit publishes a session event to the peer, enforcing the grant locally
// first.
func (s *Service) Emit(ctx context.Context, topic domain.Topic, ev domain.SessionEvent) error {
	sess, err := s.Get(topic)
	if err != nil {
		return err
	}
	if err := AuthorizeEvent(sess.Namespaces, ev.ChainID, ev.Name); err != nil {
		return err
	}
	_, err = s.net.RequestNetworkAck(ctx, topic, rpc.SessionEvent, eventParams{
		ChainID: ev.ChainID,
		Event:   eventPayload{Name: ev.Name, Data: ev.Data},
	})
	return err
}

// Ping runs a liveness probe over the session topic.
func (s *Service) Ping(ctx context.Context, topic domain.Topic) error {
	if _, err := s.Get(topic); err != nil {
		return err
	}
	resp, err := s.net.Request(ctx, topic, rpc.SessionPing, struct{}{})
	if err != nil {
		return err
	}
	if resp.Err != nil {
		return fmt.Errorf("session: ping rejected: %w", resp.Err)
	}
	return nil
}

// Disconnect deletes the session. The peer notification is best effort;
// local state is removed regardless. Deleting twice is a no-op.
func (s *Service) Disconnect(ctx context.Context, topic domain.Topic) error {
	_, ok, err := s.sessions.Get(topic)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if _, err := s.net.RequestNetworkAck(ctx, topic, rpc.SessionDelete, deleteParams{Code: codeDisconnect, Message: "user disconnected"}); err != nil {
		s.log.Debug("session delete notification failed", "topic", topic, "error", err)
	}
	if err := s.net.Unsubscribe(ctx, topic); err != nil && !errors.Is(err, network.ErrNotSubscribed) {
		s.log.Debug("unsubscribe failed", "topic", topic, "error", err)
	}
	return s.remove(topic)
}

func (s *Service) remove(topic domain.Topic) error {
	s.expireMu.Lock()
	defer s.expireMu.Unlock()
	return s.removeLocked(topic)
}

// removeLocked deletes the row and its agreement secret together.
func (s *Service) removeLocked(topic domain.Topic) error {
	if err := s.sessions.Delete(topic); err != nil {
		return err
	}
	return s.keys.DeleteAgreementSecret(topic)
}
