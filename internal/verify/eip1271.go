package verify

import (
	"bytes"
	"context"
	"fmt"

	"wclink/internal/domain"
)

// isValidSignature(bytes32,bytes) selector, which a conforming contract also
// returns as its magic value.
var eip1271Magic = []byte{0x16, 0x26, 0xba, 0x7e}

// VerifyEIP1271 asks the claimed contract account whether it considers the
// signature valid for the hash, via an eth_call to
// isValidSignature(bytes32,bytes). Any remote failure or a non-magic return
// is an invalid signature.
func VerifyEIP1271(ctx context.Context, caller domain.EthereumCaller, signature []byte, hash [32]byte, address, chainID string) error {
	data := encodeIsValidSignature(hash, signature)
	out, err := caller.Call(ctx, chainID, address, data)
	if err != nil {
		return fmt.Errorf("%w: eth_call: %v", ErrInvalidSignature, err)
	}
	if len(out) < 4 || !bytes.Equal(out[:4], eip1271Magic) {
		return fmt.Errorf("%w: contract returned %x", ErrInvalidSignature, out)
	}
	return nil
}

// encodeIsValidSignature hand-builds the ABI call data: selector, the hash as
// a static bytes32, then the signature as a dynamic bytes argument (offset,
// length, payload padded to a 32-byte boundary).
func encodeIsValidSignature(hash [32]byte, signature []byte) []byte {
	padded := len(signature)
	if rem := padded % 32; rem != 0 {
		padded += 32 - rem
	}
	data := make([]byte, 0, 4+32*3+padded)
	data = append(data, eip1271Magic...)
	data = append(data, hash[:]...)
	data = append(data, abiWord(0x40)...)
	data = append(data, abiWord(uint64(len(signature)))...)
	data = append(data, signature...)
	data = append(data, make([]byte, padded-len(signature))...)
	return data
}

func abiWord(v uint64) []byte {
	var w [32]byte
	for i := 0; i < 8; i++ {
		w[31-i] = byte(v >> (8 * i))
	}
	return w[:]
}
