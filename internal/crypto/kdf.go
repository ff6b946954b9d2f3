package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"wclink/internal/domain"
)

// DeriveSymKey hashes a raw X25519 shared secret into a 32-byte symmetric key
// via HKDF-SHA256. Raw DH output is never used as a cipher key directly.
func DeriveSymKey(sharedSecret [32]byte) (domain.SymmetricKey, error) {
	var key domain.SymmetricKey
	r := hkdf.New(sha256.New, sharedSecret[:], nil, nil)
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return domain.SymmetricKey{}, err
	}
	return key, nil
}

// ExpandKey derives outLen bytes from key with HKDF-SHA256 and a context
// string. The legacy codec uses this to split one symmetric key into
// independent encryption and MAC keys.
func ExpandKey(key domain.SymmetricKey, info string, outLen int) ([]byte, error) {
	out := make([]byte, outLen)
	r := hkdf.New(sha256.New, key.Slice(), nil, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
