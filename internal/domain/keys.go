package domain

import "encoding/hex"

// Topic is a 256-bit hex-encoded channel identifier addressing an encrypted
// pub/sub stream on the relay.
type Topic string

// TopicHexLen is the length of a topic string (32 bytes, hex).
const TopicHexLen = 64

// Valid reports whether the topic is 64 lowercase-insensitive hex characters.
func (t Topic) Valid() bool {
	if len(t) != TopicHexLen {
		return false
	}
	_, err := hex.DecodeString(string(t))
	return err == nil
}

// SymmetricKey is a 32-byte key for the sealbox codec.
type SymmetricKey [32]byte

func (k SymmetricKey) Slice() []byte { return k[:] }

// Hex returns the lowercase hex encoding of the key.
func (k SymmetricKey) Hex() string { return hex.EncodeToString(k[:]) }

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

func (p X25519Public) Slice() []byte { return p[:] }

// Hex returns the lowercase hex encoding of the public key.
func (p X25519Public) Hex() string { return hex.EncodeToString(p[:]) }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

func (k X25519Private) Slice() []byte { return k[:] }

// AgreementSecret is the outcome of an X25519 handshake for one topic: the
// derived symmetric key plus the local public half used to derive it.
type AgreementSecret struct {
	SharedKey     SymmetricKey
	SelfPublicKey X25519Public
}
