// Package serializer wraps JSON-RPC payloads into relay envelopes and back:
// base64(typeByte || payload), where type 0 is plaintext bootstrap traffic and
// type 1 is a sealbox encrypted under the topic's agreement secret.
package serializer

import (
	"encoding/base64"
	"errors"
	"fmt"

	"wclink/internal/codec"
	"wclink/internal/domain"
	"wclink/internal/keyring"
)

// EnvelopeType is the leading framing byte of a relay envelope.
type EnvelopeType byte

const (
	// TypePlain carries unencrypted payloads for bootstrap methods only.
	TypePlain EnvelopeType = 0
	// TypeEncrypted carries a sealbox under the topic's symmetric key.
	TypeEncrypted EnvelopeType = 1
)

var (
	// ErrMissingAgreementSecret indicates encryption was required but no
	// agreement exists for the topic.
	ErrMissingAgreementSecret = errors.New("serializer: missing agreement secret for topic")
	// ErrUnsupportedEnvelopeType indicates a type byte this client cannot
	// handle (reserved asymmetric framings included).
	ErrUnsupportedEnvelopeType = errors.New("serializer: unsupported envelope type")
	// ErrMalformedEnvelope indicates base64 or framing failure.
	ErrMalformedEnvelope = errors.New("serializer: malformed envelope")
)

// Metadata describes how an inbound envelope was framed.
type Metadata struct {
	Type EnvelopeType
}

// Serializer routes payloads through the codec using per-topic keys from the
// keyring. It holds no state of its own.
type Serializer struct {
	keys *keyring.Service
}

func New(keys *keyring.Service) *Serializer {
	return &Serializer{keys: keys}
}

// Serialize frames payload for topic. TypeEncrypted requires an agreement
// secret; its absence is ErrMissingAgreementSecret.
func (s *Serializer) Serialize(topic domain.Topic, payload []byte, typ EnvelopeType) (string, error) {
	switch typ {
	case TypePlain:
		framed := append([]byte{byte(TypePlain)}, payload...)
		return base64.StdEncoding.EncodeToString(framed), nil
	case TypeEncrypted:
		secret, ok, err := s.keys.AgreementSecret(topic)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingAgreementSecret, topic)
		}
		box, err := codec.Encode(payload, secret.SharedKey, nil)
		if err != nil {
			return "", err
		}
		framed := append([]byte{byte(TypeEncrypted)}, box...)
		return base64.StdEncoding.EncodeToString(framed), nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnsupportedEnvelopeType, typ)
	}
}

// Deserialize unwraps an envelope received on topic. Failures never mutate
// state; the caller drops the message.
func (s *Serializer) Deserialize(topic domain.Topic, envelope string) ([]byte, Metadata, error) {
	framed, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, Metadata{}, errors.Join(ErrMalformedEnvelope, err)
	}
	if len(framed) < 1 {
		return nil, Metadata{}, ErrMalformedEnvelope
	}

	typ := EnvelopeType(framed[0])
	body := framed[1:]
	switch typ {
	case TypePlain:
		return body, Metadata{Type: TypePlain}, nil
	case TypeEncrypted:
		secret, ok, err := s.keys.AgreementSecret(topic)
		if err != nil {
			return nil, Metadata{}, err
		}
		if !ok {
			return nil, Metadata{}, fmt.Errorf("%w: %s", ErrMissingAgreementSecret, topic)
		}
		pt, err := codec.Decode(body, secret.SharedKey)
		if err != nil {
			return nil, Metadata{}, err
		}
		return pt, Metadata{Type: TypeEncrypted}, nil
	default:
		return nil, Metadata{}, fmt.Errorf("%w: %d", ErrUnsupportedEnvelopeType, typ)
	}
}
