package keyring

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"wclink/internal/crypto"
	"wclink/internal/domain"
)

const (
	keyPairPrefix   = "keypair:"
	agreementPrefix = "agreement:"
)

var (
	// ErrKeyPairNotFound indicates no private key is stored for the public key.
	ErrKeyPairNotFound = errors.New("keyring: key pair not found")
	// ErrAgreementExists indicates a second handshake attempted to overwrite a
	// topic's agreement secret. That is a protocol error, not a race to resolve.
	ErrAgreementExists = errors.New("keyring: agreement secret already set for topic")
)

// Service manages key pairs and topic-keyed agreement secrets.
type Service struct {
	keychain domain.Keychain

	// Serializes check-then-set on agreement secrets so at most one handshake
	// can bind a topic.
	mu sync.Mutex
}

func New(keychain domain.Keychain) *Service {
	return &Service{keychain: keychain}
}

// CreateX25519KeyPair generates and persists a key pair, returning only the
// public half.
func (s *Service) CreateX25519KeyPair() (domain.X25519Public, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.X25519Public{}, err
	}
	if err := s.keychain.Set(keyPairPrefix+pub.Hex(), priv.Slice()); err != nil {
		return domain.X25519Public{}, err
	}
	return pub, nil
}

// PerformKeyAgreement runs X25519 between our stored private key (addressed
// by selfPublicKey) and the peer's public key hex, hashing the shared secret
// into a symmetric key via HKDF.
func (s *Service) PerformKeyAgreement(selfPublicKey domain.X25519Public, peerPublicKeyHex string) (domain.AgreementSecret, error) {
	peerPub, err := parsePublicKey(peerPublicKeyHex)
	if err != nil {
		return domain.AgreementSecret{}, err
	}

	raw, ok, err := s.keychain.Get(keyPairPrefix + selfPublicKey.Hex())
	if err != nil {
		return domain.AgreementSecret{}, err
	}
	if !ok {
		return domain.AgreementSecret{}, ErrKeyPairNotFound
	}
	var priv domain.X25519Private
	copy(priv[:], raw)
	crypto.Wipe(raw)

	shared, err := crypto.DH(priv, peerPub)
	crypto.Wipe(priv[:])
	if err != nil {
		return domain.AgreementSecret{}, err
	}
	symKey, err := crypto.DeriveSymKey(shared)
	crypto.Wipe(shared[:])
	if err != nil {
		return domain.AgreementSecret{}, err
	}
	return domain.AgreementSecret{SharedKey: symKey, SelfPublicKey: selfPublicKey}, nil
}

// SetAgreementSecret binds a secret to a topic. A topic can be bound once;
// rebinding fails with ErrAgreementExists.
func (s *Service) SetAgreementSecret(secret domain.AgreementSecret, topic domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := agreementPrefix + string(topic)
	if _, ok, err := s.keychain.Get(key); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrAgreementExists, topic)
	}

	blob := make([]byte, 0, 64)
	blob = append(blob, secret.SharedKey.Slice()...)
	blob = append(blob, secret.SelfPublicKey.Slice()...)
	return s.keychain.Set(key, blob)
}

// AgreementSecret returns the secret bound to topic, if any. A false return
// means the channel is not yet encryptable.
func (s *Service) AgreementSecret(topic domain.Topic) (domain.AgreementSecret, bool, error) {
	blob, ok, err := s.keychain.Get(agreementPrefix + string(topic))
	if err != nil || !ok {
		return domain.AgreementSecret{}, false, err
	}
	if len(blob) != 64 {
		return domain.AgreementSecret{}, false, fmt.Errorf("keyring: corrupt agreement blob for %s", topic)
	}
	var secret domain.AgreementSecret
	copy(secret.SharedKey[:], blob[:32])
	copy(secret.SelfPublicKey[:], blob[32:])
	crypto.Wipe(blob)
	return secret, true, nil
}

// DeleteAgreementSecret removes a topic's secret immediately. Deleting an
// unbound topic is a no-op.
func (s *Service) DeleteAgreementSecret(topic domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keychain.Delete(agreementPrefix + string(topic))
}

// SetSymmetricKey binds a raw symmetric key (for example from a pairing URI)
// to a topic, with no associated key pair.
func (s *Service) SetSymmetricKey(key domain.SymmetricKey, topic domain.Topic) error {
	return s.SetAgreementSecret(domain.AgreementSecret{SharedKey: key}, topic)
}

func parsePublicKey(hexKey string) (domain.X25519Public, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != 32 {
		return domain.X25519Public{}, fmt.Errorf("keyring: malformed public key %q", hexKey)
	}
	var pub domain.X25519Public
	copy(pub[:], raw)
	return pub, nil
}
