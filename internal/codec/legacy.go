package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"wclink/internal/crypto"
	"wclink/internal/domain"
)

const (
	legacyIVSize  = aes.BlockSize
	legacyPubSize = 32
	legacyMACSize = sha256.Size

	// iv + pubkey + mac + one AES block of ciphertext.
	legacyMinBody = legacyIVSize + legacyPubSize + legacyMACSize + aes.BlockSize

	legacyKDFInfo = "wclink-legacy-v1"
)

// EncodeLegacy seals plaintext into a version-1 sealbox:
// version || iv || senderPub || mac || ciphertext, where
// mac = HMAC-SHA256(macKey, iv || senderPub || ciphertext). Encryption and MAC
// keys are expanded independently from the symmetric key. A nil iv is drawn
// from crypto/rand.
func EncodeLegacy(plaintext []byte, key domain.SymmetricKey, senderPub domain.X25519Public, iv []byte) ([]byte, error) {
	encKey, macKey, err := legacyKeys(key)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(encKey)
	defer crypto.Wipe(macKey)

	if iv == nil {
		iv = make([]byte, legacyIVSize)
		if _, err := rand.Read(iv); err != nil {
			return nil, err
		}
	}
	if len(iv) != legacyIVSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes", ErrMalformedSealbox, legacyIVSize)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	mac := legacyMAC(macKey, iv, senderPub, ct)

	out := make([]byte, 0, 1+legacyIVSize+legacyPubSize+legacyMACSize+len(ct))
	out = append(out, VersionLegacy)
	out = append(out, iv...)
	out = append(out, senderPub[:]...)
	out = append(out, mac...)
	out = append(out, ct...)
	return out, nil
}

func openLegacy(body []byte, key domain.SymmetricKey) ([]byte, error) {
	if len(body) < legacyMinBody {
		return nil, ErrMessageTooShort
	}
	iv := body[:legacyIVSize]
	var pub domain.X25519Public
	copy(pub[:], body[legacyIVSize:legacyIVSize+legacyPubSize])
	mac := body[legacyIVSize+legacyPubSize : legacyIVSize+legacyPubSize+legacyMACSize]
	ct := body[legacyIVSize+legacyPubSize+legacyMACSize:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext not block aligned", ErrMalformedSealbox)
	}

	encKey, macKey, err := legacyKeys(key)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(encKey)
	defer crypto.Wipe(macKey)

	// Verify before decrypting; hmac.Equal is constant time.
	if !hmac.Equal(mac, legacyMAC(macKey, iv, pub, ct)) {
		return nil, ErrMACAuthentication
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	padded := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ct)
	return pkcs7Unpad(padded, aes.BlockSize)
}

func legacyKeys(key domain.SymmetricKey) (encKey, macKey []byte, err error) {
	okm, err := crypto.ExpandKey(key, legacyKDFInfo, 64)
	if err != nil {
		return nil, nil, err
	}
	return okm[:32], okm[32:], nil
}

func legacyMAC(macKey, iv []byte, pub domain.X25519Public, ct []byte) []byte {
	h := hmac.New(sha256.New, macKey)
	h.Write(iv)
	h.Write(pub[:])
	h.Write(ct)
	return h.Sum(nil)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, fmt.Errorf("%w: bad padded length", ErrMalformedSealbox)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, fmt.Errorf("%w: bad padding byte", ErrMalformedSealbox)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: inconsistent padding", ErrMalformedSealbox)
		}
	}
	return b[:len(b)-n], nil
}
