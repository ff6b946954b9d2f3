package codec_test

import (
	"bytes"
	"errors"
	"testing"

	"wclink/internal/codec"
	"wclink/internal/domain"
)

func testKey(b byte) domain.SymmetricKey {
	var k domain.SymmetricKey
	for i := range k {
		k[i] = b
	}
	return k
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	key := testKey(0x42)
	for _, pt := range [][]byte{
		[]byte("hi"),
		[]byte(`{"id":1,"jsonrpc":"2.0","method":"wc_sessionPropose"}`),
		bytes.Repeat([]byte{0x00}, 1024),
	} {
		box, err := codec.Encode(pt, key, nil)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := codec.Decode(box, key)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !bytes.Equal(got, pt) {
			t.Fatalf("round trip mismatch: got %q want %q", got, pt)
		}
	}
}

func TestEncode_FixedNonceDeterministic(t *testing.T) {
	key := testKey(0x01)
	nonce := bytes.Repeat([]byte{0x07}, 12)

	a, err := codec.Encode([]byte("payload"), key, nonce)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := codec.Encode([]byte("payload"), key, nonce)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("fixed nonce did not produce deterministic output")
	}
}

func TestDecode_WrongKeyFails(t *testing.T) {
	box, err := codec.Encode([]byte("secret"), testKey(0x11), nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := codec.Decode(box, testKey(0x22)); !errors.Is(err, codec.ErrMACAuthentication) {
		t.Fatalf("want ErrMACAuthentication, got %v", err)
	}
}

func TestDecode_TooShort(t *testing.T) {
	for _, box := range [][]byte{nil, {codec.VersionAEAD}, {codec.VersionAEAD, 1, 2, 3}, {codec.VersionLegacy, 0xff}} {
		if _, err := codec.Decode(box, testKey(0)); !errors.Is(err, codec.ErrMessageTooShort) {
			t.Fatalf("box %v: want ErrMessageTooShort, got %v", box, err)
		}
	}
}

func TestDecode_UnknownVersion(t *testing.T) {
	if _, err := codec.Decode([]byte{9, 1, 2, 3}, testKey(0)); !errors.Is(err, codec.ErrMalformedSealbox) {
		t.Fatalf("want ErrMalformedSealbox, got %v", err)
	}
}

func TestLegacy_RoundTrip(t *testing.T) {
	key := testKey(0x33)
	var pub domain.X25519Public
	pub[0] = 0xaa

	box, err := codec.EncodeLegacy([]byte("legacy payload"), key, pub, nil)
	if err != nil {
		t.Fatalf("EncodeLegacy: %v", err)
	}
	got, err := codec.Decode(box, key)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got) != "legacy payload" {
		t.Fatalf("got %q", got)
	}
}

// Flipping any bit of the envelope body must surface as a MAC failure, never
// as wrong plaintext.
func TestLegacy_TamperDetection(t *testing.T) {
	key := testKey(0x44)
	var pub domain.X25519Public

	box, err := codec.EncodeLegacy([]byte("do not tamper"), key, pub, nil)
	if err != nil {
		t.Fatalf("EncodeLegacy: %v", err)
	}

	for i := 1; i < len(box); i++ {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), box...)
			mutated[i] ^= 1 << bit
			if _, err := codec.Decode(mutated, key); !errors.Is(err, codec.ErrMACAuthentication) {
				t.Fatalf("byte %d bit %d: want ErrMACAuthentication, got %v", i, bit, err)
			}
		}
	}
}

func TestAEAD_TamperDetection(t *testing.T) {
	key := testKey(0x55)
	box, err := codec.Encode([]byte("sealed"), key, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	mutated := append([]byte(nil), box...)
	mutated[len(mutated)-1] ^= 0x01
	if _, err := codec.Decode(mutated, key); !errors.Is(err, codec.ErrMACAuthentication) {
		t.Fatalf("want ErrMACAuthentication, got %v", err)
	}
}
