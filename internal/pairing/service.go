package pairing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"wclink/internal/crypto"
	"wclink/internal/domain"
	"wclink/internal/keyring"
	"wclink/internal/network"
	"wclink/internal/rpc"
	"wclink/internal/store"
)

const (
	// proposedTTL bounds how long an unredeemed pairing URI stays valid.
	proposedTTL = 5 * time.Minute
	// activeTTL applies once a pairing has carried a successful handshake.
	activeTTL = 30 * 24 * time.Hour
)

var (
	// ErrPairingNotFound indicates no pairing row for the topic.
	ErrPairingNotFound = errors.New("pairing: not found")
	// ErrPairingExpired is returned by the read that observes expiry.
	ErrPairingExpired = errors.New("pairing: expired")
	// ErrPairingAlreadyExists indicates pairing a URI whose topic is known.
	ErrPairingAlreadyExists = errors.New("pairing: already exists")
)

// Options configure the pairing service.
type Options struct {
	Metadata domain.AppMetadata
	Methods  []string
	Logger   *slog.Logger
	Now      func() time.Time

	// OnExpire fires at most once per pairing, on the read that observes
	// expiry.
	OnExpire func(domain.Pairing)
}

// Service drives the pairing state machine.
type Service struct {
	keys     *keyring.Service
	net      *network.Interactor
	pairings *store.PairingStore
	opts     Options
	log      *slog.Logger
	now      func() time.Time

	// Guards the read-expire-delete transition so the callback fires once.
	expireMu sync.Mutex
}

func NewService(keys *keyring.Service, net *network.Interactor, pairings *store.PairingStore, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		keys:     keys,
		net:      net,
		pairings: pairings,
		opts:     opts,
		log:      opts.Logger,
		now:      opts.Now,
	}
}

// Create generates a topic and symmetric key, persists a proposed pairing and
// returns its shareable URI. The caller hands the URI to the peer out of band.
func (s *Service) Create(ctx context.Context) (domain.Pairing, string, error) {
	symKey, err := crypto.RandomSymKey()
	if err != nil {
		return domain.Pairing{}, "", err
	}
	topic := crypto.DeriveTopic(symKey.Slice())
	if err := s.keys.SetSymmetricKey(symKey, topic); err != nil {
		return domain.Pairing{}, "", err
	}

	p := domain.Pairing{
		Topic:   topic,
		Expiry:  s.now().Add(proposedTTL),
		Relay:   domain.DefaultRelay,
		Methods: s.opts.Methods,
	}
	if err := s.pairings.Set(p); err != nil {
		return domain.Pairing{}, "", err
	}
	if err := s.net.Subscribe(ctx, topic); err != nil {
		return domain.Pairing{}, "", err
	}

	uri := URI{
		Topic:   topic,
		Version: Version,
		SymKey:  symKey,
		Relay:   p.Relay,
		Expiry:  p.Expiry,
		Methods: p.Methods,
	}
	s.log.Debug("pairing created", "topic", topic)
	return p, uri.String(), nil
}

// Pair redeems a URI produced by a peer's Create: binds the symmetric key,
// persists the row and subscribes to the topic.
func (s *Service) Pair(ctx context.Context, uriString string) (domain.Pairing, error) {
	uri, err := ParseURI(uriString)
	if err != nil {
		return domain.Pairing{}, err
	}
	if !uri.Expiry.IsZero() && s.now().After(uri.Expiry) {
		return domain.Pairing{}, fmt.Errorf("%w: uri expired", ErrPairingExpired)
	}
	if _, ok, err := s.pairings.Get(uri.Topic); err != nil {
		return domain.Pairing{}, err
	} else if ok {
		return domain.Pairing{}, fmt.Errorf("%w: %s", ErrPairingAlreadyExists, uri.Topic)
	}

	if err := s.keys.SetSymmetricKey(uri.SymKey, uri.Topic); err != nil {
		return domain.Pairing{}, err
	}
	expiry := uri.Expiry
	if expiry.IsZero() {
		expiry = s.now().Add(proposedTTL)
	}
	p := domain.Pairing{
		Topic:   uri.Topic,
		Expiry:  expiry,
		Relay:   uri.Relay,
		Methods: uri.Methods,
	}
	if err := s.pairings.Set(p); err != nil {
		return domain.Pairing{}, err
	}
	if err := s.net.Subscribe(ctx, uri.Topic); err != nil {
		return domain.Pairing{}, err
	}
	s.log.Debug("paired", "topic", uri.Topic)
	return p, nil
}

// Get reads a pairing, applying lazy expiry: a row past its expiry date is
// removed (with its agreement secret), the expiration callback fires once,
// and ErrPairingExpired is returned. Later reads see ErrPairingNotFound.
func (s *Service) Get(topic domain.Topic) (domain.Pairing, error) {
	s.expireMu.Lock()
	defer s.expireMu.Unlock()

	p, ok, err := s.pairings.Get(topic)
	if err != nil {
		return domain.Pairing{}, err
	}
	if !ok {
		return domain.Pairing{}, fmt.Errorf("%w: %s", ErrPairingNotFound, topic)
	}
	if p.Expired(s.now()) {
		if err := s.removeLocked(topic); err != nil {
			return domain.Pairing{}, err
		}
		if s.opts.OnExpire != nil {
			s.opts.OnExpire(p)
		}
		return domain.Pairing{}, fmt.Errorf("%w: %s", ErrPairingExpired, topic)
	}
	return p, nil
}

// List returns all live pairings, expiring stale rows on the way.
func (s *Service) List() ([]domain.Pairing, error) {
	all, err := s.pairings.List()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		switch live, err := s.Get(p.Topic); {
		case err == nil:
			out = append(out, live)
		case errors.Is(err, ErrPairingExpired), errors.Is(err, ErrPairingNotFound):
		default:
			return nil, err
		}
	}
	return out, nil
}

// Activate marks the pairing active after its first successful session
// handshake, recording peer metadata and extending the expiry.
func (s *Service) Activate(topic domain.Topic, peer *domain.AppMetadata) error {
	p, err := s.Get(topic)
	if err != nil {
		return err
	}
	p.Active = true
	p.PeerMetadata = peer
	p.Expiry = s.now().Add(activeTTL)
	return s.pairings.Set(p)
}

// Ping runs a liveness probe over the pairing topic. State is not mutated.
func (s *Service) Ping(ctx context.Context, topic domain.Topic) error {
	if _, err := s.Get(topic); err != nil {
		return err
	}
	resp, err := s.net.Request(ctx, topic, rpc.PairingPing, struct{}{})
	if err != nil {
		return err
	}
	if resp.Err != nil {
		return fmt.Errorf("pairing: ping rejected: %w", resp.Err)
	}
	return nil
}

// Disconnect deletes the pairing: peer notification is best effort, local row
// and agreement secret go away regardless. Deleting twice is a no-op.
func (s *Service) Disconnect(ctx context.Context, topic domain.Topic) error {
	_, ok, err := s.pairings.Get(topic)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if _, err := s.net.RequestNetworkAck(ctx, topic, rpc.PairingDelete, deleteParams{Code: 6000, Message: "user disconnected"}); err != nil {
		s.log.Debug("pairing delete notification failed", "topic", topic, "error", err)
	}
	if err := s.net.Unsubscribe(ctx, topic); err != nil && !errors.Is(err, network.ErrNotSubscribed) {
		s.log.Debug("unsubscribe failed", "topic", topic, "error", err)
	}

	s.expireMu.Lock()
	defer s.expireMu.Unlock()
	return s.removeLocked(topic)
}

// Start serves inbound pairing pings and peer-initiated deletes until ctx is
// cancelled.
func (s *Service) Start(ctx context.Context) {
	stream := s.net.RequestStream(rpc.PairingPing, rpc.PairingDelete)
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

func (s *Service) handleInbound(ctx context.Context, in network.InboundRequest) {
	switch in.Method.Name {
	case rpc.PairingPing.Name:
		if _, err := s.Get(in.Topic); err != nil {
			_ = s.net.RespondError(ctx, in.Topic, in.Request.ID, in.Method, 6100, "no pairing for topic")
			return
		}
		_ = s.net.Respond(ctx, in.Topic, in.Request.ID, in.Method, true)
	case rpc.PairingDelete.Name:
		s.expireMu.Lock()
		err := s.removeLocked(in.Topic)
		s.expireMu.Unlock()
		if err != nil {
			s.log.Debug("peer delete cleanup failed", "topic", in.Topic, "error", err)
		}
	}
}

// removeLocked deletes the row and its secret together; callers hold expireMu
// so no reader sees one without the other.
func (s *Service) removeLocked(topic domain.Topic) error {
	if err := s.pairings.Delete(topic); err != nil {
		return err
	}
	return s.keys.DeleteAgreementSecret(topic)
}

type deleteParams struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
