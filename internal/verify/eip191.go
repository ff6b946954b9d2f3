package verify

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/sha3"
)

var (
	// ErrInvalidSignature covers malformed signatures, failed recovery, and
	// address mismatches alike. Callers get no finer distinction.
	ErrInvalidSignature = errors.New("verify: invalid signature")
)

const signatureLength = 65

// HashPersonalMessage applies the EIP-191 personal-sign prefix and hashes
// with keccak256. The prefix is applied here exactly once; callers pass the
// raw message.
func HashPersonalMessage(message []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "\x19Ethereum Signed Message:\n%d", len(message))
	h.Write(message)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// RecoverAddress recovers the signing address from a 65-byte R||S||V
// signature over the given hash. V may be 0/1 or 27/28.
func RecoverAddress(signature []byte, hash [32]byte) (string, error) {
	if len(signature) != signatureLength {
		return "", fmt.Errorf("%w: length %d", ErrInvalidSignature, len(signature))
	}
	v := signature[64]
	if v < 27 {
		v += 27
	}
	// RecoverCompact wants the recovery byte first.
	compact := make([]byte, signatureLength)
	compact[0] = v
	copy(compact[1:], signature[:64])

	pub, _, err := btcecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return pubKeyAddress(pub), nil
}

// VerifyEIP191 checks a personal-sign signature against the claimed address.
// The comparison is case insensitive; checksummed and lowercase forms match.
func VerifyEIP191(signature []byte, message []byte, address string) error {
	recovered, err := RecoverAddress(signature, HashPersonalMessage(message))
	if err != nil {
		return err
	}
	if !strings.EqualFold(recovered, address) {
		return fmt.Errorf("%w: recovered %s, claimed %s", ErrInvalidSignature, recovered, address)
	}
	return nil
}

// pubKeyAddress derives the Ethereum address: the last 20 bytes of the
// keccak256 of the uncompressed public key without its 0x04 prefix.
func pubKeyAddress(pub *btcec.PublicKey) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub.SerializeUncompressed()[1:])
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[12:])
}
