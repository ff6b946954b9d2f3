package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"wclink/internal/domain"
)

// DeriveTopic returns sha256(keyMaterial) hex-encoded. Both parties of a
// handshake derive the same topic from the same key material without
// coordination beyond the URI exchange.
func DeriveTopic(keyMaterial []byte) domain.Topic {
	sum := sha256.Sum256(keyMaterial)
	return domain.Topic(hex.EncodeToString(sum[:]))
}

// RandomTopic returns a fresh random 256-bit topic for pairing creation.
func RandomTopic() (domain.Topic, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return domain.Topic(hex.EncodeToString(b[:])), nil
}

// RandomSymKey returns a fresh random symmetric key.
func RandomSymKey() (domain.SymmetricKey, error) {
	var k domain.SymmetricKey
	if _, err := rand.Read(k[:]); err != nil {
		return domain.SymmetricKey{}, err
	}
	return k, nil
}
