package codec

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"wclink/internal/domain"
)

// Encode seals plaintext into a version-2 sealbox: version || nonce || ct+tag.
// A nil nonce is drawn from crypto/rand; callers inject a fixed nonce only for
// deterministic testing.
func Encode(plaintext []byte, key domain.SymmetricKey, nonce []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key.Slice())
	if err != nil {
		return nil, err
	}
	if nonce == nil {
		nonce = make([]byte, chacha20poly1305.NonceSize)
		if _, err := rand.Read(nonce); err != nil {
			return nil, err
		}
	}
	if len(nonce) != chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrMalformedSealbox, chacha20poly1305.NonceSize)
	}

	out := make([]byte, 0, 1+len(nonce)+len(plaintext)+chacha20poly1305.Overhead)
	out = append(out, VersionAEAD)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

func openAEAD(body []byte, key domain.SymmetricKey) ([]byte, error) {
	if len(body) < chacha20poly1305.NonceSize+chacha20poly1305.Overhead {
		return nil, ErrMessageTooShort
	}
	aead, err := chacha20poly1305.New(key.Slice())
	if err != nil {
		return nil, err
	}
	nonce, ct := body[:chacha20poly1305.NonceSize], body[chacha20poly1305.NonceSize:]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrMACAuthentication
	}
	return pt, nil
}
