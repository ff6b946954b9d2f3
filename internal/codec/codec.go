package codec

import (
	"errors"
	"fmt"

	"wclink/internal/domain"
)

const (
	// VersionLegacy marks AES-256-CBC + HMAC-SHA256 sealboxes.
	VersionLegacy byte = 1
	// VersionAEAD marks ChaCha20-Poly1305 sealboxes.
	VersionAEAD byte = 2
)

var (
	// ErrMessageTooShort indicates input under the minimum sealbox size.
	ErrMessageTooShort = errors.New("codec: message too short")
	// ErrMalformedSealbox indicates framing or padding that cannot be parsed.
	ErrMalformedSealbox = errors.New("codec: malformed sealbox")
	// ErrMACAuthentication indicates a MAC or AEAD tag mismatch. The payload
	// was tampered with or sealed under a different key.
	ErrMACAuthentication = errors.New("codec: mac authentication failed")
)

// Decode opens a sealbox of either version and returns the plaintext.
func Decode(sealbox []byte, key domain.SymmetricKey) ([]byte, error) {
	if len(sealbox) < 1 {
		return nil, ErrMessageTooShort
	}
	switch sealbox[0] {
	case VersionAEAD:
		return openAEAD(sealbox[1:], key)
	case VersionLegacy:
		return openLegacy(sealbox[1:], key)
	default:
		return nil, fmt.Errorf("%w: unknown version %d", ErrMalformedSealbox, sealbox[0])
	}
}
